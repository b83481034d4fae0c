// Package app wires one scrape-and-sync run together.
//
// Run builds the scraper, drives pagination, opens the configured store and
// upserts every aggregated event. The CLI and the Lambda handler are thin
// wrappers around it.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pfrederiksen/insead-events/internal/config"
	"github.com/pfrederiksen/insead-events/internal/event"
	"github.com/pfrederiksen/insead-events/internal/logger"
	"github.com/pfrederiksen/insead-events/internal/metrics"
	"github.com/pfrederiksen/insead-events/internal/pipeline"
	"github.com/pfrederiksen/insead-events/internal/scraper"
	"github.com/pfrederiksen/insead-events/internal/storage"
	"github.com/pfrederiksen/insead-events/internal/syncer"
)

// Options customize a run. The zero value scrapes the configured site and
// syncs to the configured store.
type Options struct {
	Log *logger.Logger
	// Out receives dry-run store output; defaults to os.Stdout
	Out io.Writer

	// ScrapeOnly stops after pagination without opening a store
	ScrapeOnly bool

	// TraceOut receives spans when cfg.Trace.Enabled; defaults to os.Stderr
	TraceOut io.Writer
	// TracerProvider overrides the provider chosen from cfg.Trace
	TracerProvider trace.TracerProvider

	// Overrides, mainly for tests
	Source     pipeline.Source
	Store      storage.Store
	HTTPClient *http.Client
	Sleep      pipeline.SleepFunc
	Metrics    *metrics.Recorder
	Now        func() time.Time
}

// Summary describes a finished run
type Summary struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Duration   string                 `json:"duration"`
	State      pipeline.State         `json:"state"`
	SetupError string                 `json:"setup_error,omitempty"`
	Pages      int                    `json:"pages"`
	PageStats  []pipeline.PageStat    `json:"page_stats"`
	EventCount int                    `json:"event_count"`
	Outcomes   map[syncer.Outcome]int `json:"outcomes,omitempty"`

	Events []*event.Event `json:"-"`
	Report *syncer.Report `json:"-"`
}

// SyncFailed reports whether any record failed to sync
func (s *Summary) SyncFailed() bool {
	return s != nil && s.Report != nil && s.Report.Failed()
}

// newAdapter is replaced in tests
var newAdapter = syncer.New

// Run performs one scrape and, unless opts.ScrapeOnly is set, one sync.
// The error is non-nil when the run could not be set up or was cancelled;
// upstream and per-record failures are reported in the Summary.
func Run(ctx context.Context, cfg config.Config, opts Options) (*Summary, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	base := opts.Log
	if base == nil {
		base = logger.Default()
	}

	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: now().UTC(),
	}
	log := base.With(logger.Fields{"run_id": summary.RunID})
	m := opts.Metrics

	tp, shutdown, err := tracerProvider(cfg, opts.TracerProvider, opts.TraceOut)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.WarnErr("Failed to flush traces", nil, err)
		}
	}()

	ctx, span := tp.Tracer(tracerName).Start(ctx, "app.Run", trace.WithAttributes(
		attribute.String("run_id", summary.RunID),
		attribute.String("store", cfg.Store.Backend),
		attribute.Bool("scrape_only", opts.ScrapeOnly),
	))
	defer func() {
		span.SetAttributes(
			attribute.String("state", string(summary.State)),
			attribute.Int("pages", summary.Pages),
			attribute.Int("events", summary.EventCount),
		)
		if summary.SyncFailed() {
			span.SetStatus(codes.Error, "records failed to sync")
		}
		span.End()
	}()

	src := opts.Source
	if src == nil {
		scOpts := []scraper.Option{scraper.WithLogger(log), scraper.WithClock(now)}
		if opts.HTTPClient != nil {
			scOpts = append(scOpts, scraper.WithHTTPClient(opts.HTTPClient))
		}
		sc, err := scraper.New(cfg, scOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating scraper: %w", err)
		}
		src = sc
	}

	drOpts := []pipeline.Option{
		pipeline.WithDelay(cfg.Crawl.Delay),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
		pipeline.WithTracer(tp.Tracer(pipeline.TracerName)),
	}
	if opts.Sleep != nil {
		drOpts = append(drOpts, pipeline.WithSleep(opts.Sleep))
	}

	log.Info("Starting run", logger.Fields{
		"listing": cfg.Site.ListingURL,
		"store":   cfg.Store.Backend,
	})

	res, err := pipeline.New(src, drOpts...).Run(ctx)
	if res != nil {
		summary.State = res.State
		summary.Pages = res.Pages
		summary.PageStats = res.PageStats
		summary.Events = res.Events
		summary.EventCount = len(res.Events)
		if res.SetupErr != nil {
			summary.SetupError = res.SetupErr.Error()
		}
	}
	if err != nil {
		finish(summary, now, m, false, log, cfg.Metrics.Textfile)
		return summary, fmt.Errorf("scraping: %w", err)
	}

	if opts.ScrapeOnly {
		finish(summary, now, m, true, log, cfg.Metrics.Textfile)
		return summary, nil
	}

	store := opts.Store
	if store == nil {
		store, err = storage.Open(ctx, cfg, out, log)
		if err != nil {
			finish(summary, now, m, false, log, cfg.Metrics.Textfile)
			return summary, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
		}
		defer store.Close()
	}

	adapter, err := newAdapter(store, syncer.WithLogger(log), syncer.WithMetrics(m))
	if err != nil {
		finish(summary, now, m, false, log, cfg.Metrics.Textfile)
		return summary, fmt.Errorf("creating syncer: %w", err)
	}

	summary.Report = adapter.Sync(ctx, summary.Events)
	summary.Outcomes = summary.Report.Counts()

	finish(summary, now, m, !summary.Report.Failed(), log, cfg.Metrics.Textfile)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("syncing: %w", err)
	}
	return summary, nil
}

func finish(s *Summary, now func() time.Time, m *metrics.Recorder, ok bool, log *logger.Logger, textfile string) {
	s.FinishedAt = now().UTC()
	d := s.FinishedAt.Sub(s.StartedAt)
	s.Duration = d.Round(time.Millisecond).String()

	m.ObserveRun(d, s.FinishedAt, ok)
	if textfile != "" {
		if err := m.WriteTextfile(textfile); err != nil {
			log.WarnErr("Failed to write metrics textfile", logger.Fields{"path": textfile}, err)
		}
	}

	fields := logger.Fields{
		"state":    string(s.State),
		"pages":    s.Pages,
		"events":   s.EventCount,
		"duration": s.Duration,
	}
	for outcome, n := range s.Outcomes {
		fields[string(outcome)] = n
	}
	log.Info("Run finished", fields)
}
