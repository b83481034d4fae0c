package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/insead-events/internal/app"
	"github.com/pfrederiksen/insead-events/internal/config"
	"github.com/pfrederiksen/insead-events/internal/logger"
	"github.com/pfrederiksen/insead-events/internal/metrics"
	"github.com/pfrederiksen/insead-events/internal/syncer"
)

const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitSyncFailures = 2
)

// exitCodeError carries a non-default exit code out of a command
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

type rootOptions struct {
	configPath string
	verbose    bool
	browser    bool
	trace      bool
}

type syncOptions struct {
	store       string
	dryRun      bool
	format      string
	metricsFile string
}

type scrapeOptions struct {
	format     string
	sortOrder  string
	regionOnly bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	root := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "insead-events",
		Short: "Scrape INSEAD events and sync them to a datastore",
		Long: `A CLI tool that scrapes the INSEAD events listing, follows its AJAX
pagination until no new events appear, and upserts every event into a
tabular datastore keyed on a stable unique id.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&root.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().BoolVar(&root.verbose, "verbose", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolVar(&root.browser, "browser", false, "Render the listing page in headless Chrome")
	cmd.PersistentFlags().BoolVar(&root.trace, "trace", false, "Write OpenTelemetry spans as JSON to stderr")

	cmd.AddCommand(newSyncCmd(root), newScrapeCmd(root))
	return cmd
}

func newSyncCmd(root *rootOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scrape the listing and upsert every event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.store, "store", "", "Store backend: airtable, dynamodb, postgres, file or dryrun")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print records instead of writing them (same as --store dryrun)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	return cmd
}

func newScrapeCmd(root *rootOptions) *cobra.Command {
	opts := &scrapeOptions{}

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the listing and print the events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json or ics")
	cmd.Flags().StringVar(&opts.sortOrder, "sort", "date", "Sort order: date, title or location")
	cmd.Flags().BoolVar(&opts.regionOnly, "region-only", false, "Only print region-related events")
	return cmd
}

func runSync(cmd *cobra.Command, root *rootOptions, opts *syncOptions) error {
	format := OutputFormat(strings.ToLower(opts.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
	}

	cfg, err := config.Read(root.configPath)
	if err != nil {
		return err
	}
	root.apply(&cfg)
	if opts.store != "" {
		cfg.Store.Backend = strings.ToLower(opts.store)
	}
	if opts.dryRun {
		cfg.Store.Backend = config.BackendDryRun
	}
	if opts.metricsFile != "" {
		cfg.Metrics.Textfile = opts.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := root.logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	summary, err := app.Run(cmd.Context(), cfg, app.Options{
		Log:      log,
		Out:      cmd.OutOrStdout(),
		TraceOut: cmd.ErrOrStderr(),
		Metrics:  metrics.New(),
	})
	if err != nil {
		return err
	}

	if err := WriteSyncOutput(cmd.OutOrStdout(), summary, format, root.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if summary.SyncFailed() {
		n := summary.Report.Count(syncer.OutcomeFailed)
		return &exitCodeError{code: ExitSyncFailures, err: fmt.Errorf("%d record(s) failed to sync", n)}
	}
	return nil
}

func runScrape(cmd *cobra.Command, root *rootOptions, opts *scrapeOptions) error {
	format := OutputFormat(strings.ToLower(opts.format))
	if format != FormatText && format != FormatJSON && format != FormatICS {
		return fmt.Errorf("invalid format: %s (must be 'text', 'json' or 'ics')", opts.format)
	}
	order := SortOrder(strings.ToLower(opts.sortOrder))
	if order != SortByDate && order != SortByTitle && order != SortByLocation {
		return fmt.Errorf("invalid sort order: %s (must be 'date', 'title' or 'location')", opts.sortOrder)
	}

	cfg, err := config.Read(root.configPath)
	if err != nil {
		return err
	}
	root.apply(&cfg)
	// Scraping never touches a store, so skip backend credential checks.
	cfg.Store.Backend = config.BackendDryRun
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := root.logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	summary, err := app.Run(cmd.Context(), cfg, app.Options{
		Log:        log,
		ScrapeOnly: true,
		TraceOut:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	events := summary.Events
	if opts.regionOnly {
		events = filterRegion(events)
	}
	sortEvents(events, order)

	result := &EventsResult{
		CheckedAt:  summary.FinishedAt,
		State:      string(summary.State),
		SetupError: summary.SetupError,
		Events:     events,
		EventCount: len(events),
	}
	if err := WriteEventsOutput(cmd.OutOrStdout(), result, format, root.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func (o *rootOptions) apply(cfg *config.Config) {
	if o.browser {
		cfg.Crawl.Browser = true
	}
	if o.verbose {
		cfg.Log.Level = string(logger.LevelDebug)
	}
	if o.trace {
		cfg.Trace.Enabled = true
	}
}

func (o *rootOptions) logger(cfg config.Config, w io.Writer) (*logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	log := logger.New(level, w)
	logger.SetDefault(log)
	return log, nil
}

// Run executes the CLI with args and returns the process exit code
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitError
}

// Execute runs the CLI and exits. SIGINT and SIGTERM cancel the run.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
