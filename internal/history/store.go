// Package history provides Postgres-backed persistence of past scan
// runs, so repeated scans of a site can be compared over time.
package history

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pcameron/webscan/internal/scanner"
)

// ErrNotFound indicates the requested scan record does not exist.
var ErrNotFound = errors.New("scan record not found")

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StoreConfig controls the Postgres connection pool used for scan records.
type StoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ScanRecord is one persisted scan run.
type ScanRecord struct {
	ScanID       string
	RootURL      string
	Status       string
	StartedAt    time.Time
	FinishedAt   time.Time
	PagesFetched int
	PagesFailed  int
	Findings     int
	ErrorMessage *string
}

// Store writes scan records into Postgres.
type Store struct {
	pool  pgxPool
	table string
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "scans"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily
// for testing).
func NewStoreWithPool(pool pgxPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "scans"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// RecordScan inserts one completed scan run.
func (s *Store) RecordScan(ctx context.Context, meta scanner.CrawlMetadata) error {
	findings := 0
	for _, p := range meta.Pages {
		findings += p.Findings
	}
	var errMsg *string
	if len(meta.Errors) > 0 {
		errMsg = &meta.Errors[0]
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (scan_id, root_url, status, started_at, finished_at,
			pages_fetched, pages_failed, findings, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`, s.table)
	_, err := s.pool.Exec(ctx, query,
		meta.ScanID,
		meta.Job.RootURL,
		string(meta.Status),
		meta.Started,
		meta.Finished,
		meta.Counters.FetchedOK,
		meta.Counters.FetchedFailed,
		findings,
		errMsg,
	)
	if err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

// GetScan retrieves a single scan record by its ID.
func (s *Store) GetScan(ctx context.Context, scanID string) (ScanRecord, error) {
	query := fmt.Sprintf(`
		SELECT scan_id, root_url, status, started_at, finished_at,
			pages_fetched, pages_failed, findings, error_message
		FROM %s
		WHERE scan_id = $1;
	`, s.table)
	var rec ScanRecord
	err := s.pool.QueryRow(ctx, query, scanID).Scan(
		&rec.ScanID,
		&rec.RootURL,
		&rec.Status,
		&rec.StartedAt,
		&rec.FinishedAt,
		&rec.PagesFetched,
		&rec.PagesFailed,
		&rec.Findings,
		&rec.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScanRecord{}, ErrNotFound
		}
		return ScanRecord{}, fmt.Errorf("get scan: %w", err)
	}
	return rec, nil
}

// ListScans retrieves recent scans of a root URL, newest first. Pass
// rootURL "" to list across all sites.
func (s *Store) ListScans(ctx context.Context, rootURL string, limit, offset int) ([]ScanRecord, error) {
	query := fmt.Sprintf(`
		SELECT scan_id, root_url, status, started_at, finished_at,
			pages_fetched, pages_failed, findings, error_message
		FROM %s
		WHERE ($1 = '' OR root_url = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`, s.table)
	rows, err := s.pool.Query(ctx, query, rootURL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		err := rows.Scan(
			&rec.ScanID,
			&rec.RootURL,
			&rec.Status,
			&rec.StartedAt,
			&rec.FinishedAt,
			&rec.PagesFetched,
			&rec.PagesFailed,
			&rec.Findings,
			&rec.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
