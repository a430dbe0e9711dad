// Package cmd defines and implements the CLI commands for the webscan
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webscan",
		Short: "A concurrent website scan engine.",
		Long: `webscan crawls a website starting from a root URL, saves page
artifacts (HTML, text, screenshots), and analyzes every page for broken
links, grammar issues, and text baked into images. Results land in a
per-scan output directory; optionally a scan history is kept in
Postgres.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus WEBSCAN_* env)")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute is the main entry point. It installs signal handling so an
// interrupt cancels the running scan gracefully.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
