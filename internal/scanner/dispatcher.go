package scanner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Dispatcher routes a crawled page through the registered extractors and
// then the registered analyzers. Stages are isolated: one failing stage
// is recorded and the remaining stages still run.
type Dispatcher struct {
	extractors []Extractor
	analyzers  []Analyzer
	logger     *zap.Logger
}

// NewDispatcher builds a dispatcher over the given stage sets. Either
// slice may be empty.
func NewDispatcher(extractors []Extractor, analyzers []Analyzer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		extractors: extractors,
		analyzers:  analyzers,
		logger:     logger,
	}
}

// Run processes one page through every stage and returns the combined
// result. Pages that were not fetched successfully bypass the stages and
// carry only the fetch outcome.
func (d *Dispatcher) Run(ctx context.Context, page CrawledPage) PageResult {
	result := PageResult{Page: page}
	if page.Status != FetchSuccess {
		return result
	}

	artifacts := make(map[string]ArtifactRef, len(d.extractors))
	for _, ext := range d.extractors {
		ref, err := d.runExtractor(ctx, ext, page)
		if errors.Is(err, ErrStageSkipped) {
			continue
		}
		if err != nil {
			TotalStageFailures.Inc()
			d.logger.Warn("extractor failed",
				zap.String("extractor", ext.Name()),
				zap.String("url", page.URL),
				zap.Error(err),
			)
			result.StageErrors = append(result.StageErrors, StageError{
				Stage: "extract",
				Name:  ext.Name(),
				Err:   err.Error(),
			})
			continue
		}
		artifacts[ext.Name()] = ref
		result.Artifacts = append(result.Artifacts, ref)
	}

	input := AnalyzerInput{Page: page, Artifacts: artifacts}
	for _, an := range d.analyzers {
		findings, err := d.runAnalyzer(ctx, an, input)
		if errors.Is(err, ErrStageSkipped) {
			continue
		}
		if err != nil {
			TotalStageFailures.Inc()
			d.logger.Warn("analyzer failed",
				zap.String("analyzer", an.Name()),
				zap.String("url", page.URL),
				zap.Error(err),
			)
			result.StageErrors = append(result.StageErrors, StageError{
				Stage: "analyze",
				Name:  an.Name(),
				Err:   err.Error(),
			})
			continue
		}
		result.Findings = append(result.Findings, findings...)
	}

	return result
}

// runExtractor confines a stage panic to a StageError instead of taking
// the worker down.
func (d *Dispatcher) runExtractor(ctx context.Context, ext Extractor, page CrawledPage) (ref ArtifactRef, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("extractor panic: %v", rec)
		}
	}()
	return ext.Extract(ctx, page)
}

func (d *Dispatcher) runAnalyzer(ctx context.Context, an Analyzer, input AnalyzerInput) (findings []Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("analyzer panic: %v", rec)
		}
	}()
	return an.Analyze(ctx, input)
}
