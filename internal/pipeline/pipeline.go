// Package pipeline drives one crawl of the listing and its AJAX pages.
//
// The Driver is a small state machine:
//
//	INIT -> INITIAL_PAGE -> PAGING -> DONE
//	              \-> FAILED_SETUP
//
// The initial listing page is always fetched. Paging starts at page 1 and
// continues until a page contributes no event the run has not already seen.
// A page that fails to fetch counts as contributing nothing. The number of
// pages is never known in advance and never used to stop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pfrederiksen/insead-events/internal/aggregate"
	"github.com/pfrederiksen/insead-events/internal/event"
	"github.com/pfrederiksen/insead-events/internal/logger"
	"github.com/pfrederiksen/insead-events/internal/metrics"
	"github.com/pfrederiksen/insead-events/internal/scraper"
)

// State of the pagination driver
type State string

const (
	StateInit        State = "INIT"
	StateInitialPage State = "INITIAL_PAGE"
	StatePaging      State = "PAGING"
	StateDone        State = "DONE"
	StateFailedSetup State = "FAILED_SETUP"
)

// DefaultDelay is the politeness pause between AJAX pages
const DefaultDelay = 2 * time.Second

// ErrNoToken means the listing page carried no pagination token
var ErrNoToken = errors.New("pagination token not found in listing page")

// SetupError reports why paging could not start
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("pagination setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Source fetches the listing and its AJAX pages
type Source interface {
	FetchListing(ctx context.Context) (*scraper.Listing, error)
	FetchPage(ctx context.Context, token string, page int) ([]*event.Event, error)
}

// PageStat describes one fetched page
type PageStat struct {
	Page      int    `json:"page"`
	Source    string `json:"source"`
	Extracted int    `json:"extracted"`
	New       int    `json:"new"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a crawl
type Result struct {
	State State
	// Events is the deduplicated set in first-seen order
	Events    []*event.Event
	Pages     int
	PageStats []PageStat
	// SetupErr is set when the run ended in StateFailedSetup
	SetupErr error
}

// TracerName is the instrumentation name of the page spans
const TracerName = "github.com/pfrederiksen/insead-events/internal/pipeline"

// SleepFunc pauses for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Driver runs the crawl state machine
type Driver struct {
	src     Source
	delay   time.Duration
	sleep   SleepFunc
	log     *logger.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer
	state   State
}

// Option customizes a Driver
type Option func(*Driver)

// WithDelay sets the pause between AJAX pages
func WithDelay(d time.Duration) Option {
	return func(dr *Driver) { dr.delay = d }
}

// WithSleep replaces the pause implementation
func WithSleep(fn SleepFunc) Option {
	return func(dr *Driver) { dr.sleep = fn }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(dr *Driver) { dr.log = l }
}

// WithMetrics records page fetches on m
func WithMetrics(m *metrics.Recorder) Option {
	return func(dr *Driver) { dr.metrics = m }
}

// WithTracer sets the tracer used for page spans
func WithTracer(t trace.Tracer) Option {
	return func(dr *Driver) { dr.tracer = t }
}

// New creates a Driver reading from src
func New(src Source, opts ...Option) *Driver {
	d := &Driver{
		src:    src,
		delay:  DefaultDelay,
		sleep:  sleepContext,
		log:    logger.Default(),
		tracer: otel.Tracer(TracerName),
		state:  StateInit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes the crawl. The returned error is non-nil only when ctx is
// cancelled; upstream failures are reported in the Result.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	set := aggregate.New()
	res := &Result{}
	finish := func(state State) *Result {
		d.transition(state)
		res.State = state
		res.Events = set.Events()
		return res
	}

	d.state = StateInit
	d.transition(StateInitialPage)

	listing, err := d.fetchListing(ctx)
	res.Pages++
	if err != nil {
		if ctx.Err() != nil {
			return finish(d.state), ctx.Err()
		}
		d.record(res, PageStat{Page: 0, Source: scraper.SourceListing, Error: err.Error()}, err)
		res.SetupErr = &SetupError{Err: err}
		d.log.WarnErr("Could not fetch listing page", nil, err)
		return finish(StateFailedSetup), nil
	}

	added := set.MergeAll(listing.Events)
	d.record(res, PageStat{Page: 0, Source: scraper.SourceListing, Extracted: len(listing.Events), New: added}, nil)

	if listing.Token == "" {
		res.SetupErr = &SetupError{Err: ErrNoToken}
		d.log.Warn("No pagination token on listing page, keeping initial results only", logger.Fields{
			"events": set.Len(),
		})
		return finish(StateFailedSetup), nil
	}

	d.log.Debug("Discovered pagination token", logger.Fields{"token": listing.Token})
	d.transition(StatePaging)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return finish(d.state), err
		}

		events, err := d.fetchPage(ctx, listing.Token, page)
		res.Pages++
		if err != nil {
			if ctx.Err() != nil {
				return finish(d.state), ctx.Err()
			}
			d.record(res, PageStat{Page: page, Source: scraper.SourceAJAX(page), Error: err.Error()}, err)
			d.log.WarnErr("Page fetch failed, ending pagination", logger.Fields{"page": page}, err)
			break
		}

		added := set.MergeAll(events)
		d.record(res, PageStat{Page: page, Source: scraper.SourceAJAX(page), Extracted: len(events), New: added}, nil)

		if added == 0 {
			d.log.Info("No new events, pagination complete", logger.Fields{
				"page":      page,
				"extracted": len(events),
			})
			break
		}

		if err := d.sleep(ctx, d.delay); err != nil {
			return finish(d.state), err
		}
	}

	return finish(StateDone), nil
}

func (d *Driver) transition(to State) {
	if d.state == to {
		return
	}
	d.log.Debug("Pipeline state change", logger.Fields{
		"from": string(d.state),
		"to":   string(to),
	})
	d.state = to
}

func (d *Driver) record(res *Result, stat PageStat, err error) {
	res.PageStats = append(res.PageStats, stat)

	kind := "ajax"
	if stat.Page == 0 {
		kind = "listing"
	}
	d.metrics.ObservePage(kind, stat.Extracted, stat.New, err)

	d.log.Info("Processed page", logger.Fields{
		"page":      stat.Page,
		"source":    stat.Source,
		"extracted": stat.Extracted,
		"new":       stat.New,
	})
}

func (d *Driver) fetchListing(ctx context.Context) (*scraper.Listing, error) {
	ctx, span := d.tracer.Start(ctx, "pipeline.FetchListing")
	defer span.End()

	listing, err := d.src.FetchListing(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("events", len(listing.Events)),
		attribute.Bool("token_found", listing.Token != ""),
	)
	return listing, nil
}

func (d *Driver) fetchPage(ctx context.Context, token string, page int) ([]*event.Event, error) {
	ctx, span := d.tracer.Start(ctx, "pipeline.FetchPage", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()

	events, err := d.src.FetchPage(ctx, token, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("events", len(events)))
	return events, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
