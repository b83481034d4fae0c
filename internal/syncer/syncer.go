// Package syncer upserts a run's events into a storage.Store.
//
// Each event is looked up by unique id, created when absent and updated
// when a tracked field differs. Every record ends with exactly one outcome
// in the Report, and a failing record never stops the ones after it.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/pfrederiksen/insead-events/internal/event"
	"github.com/pfrederiksen/insead-events/internal/logger"
	"github.com/pfrederiksen/insead-events/internal/metrics"
	"github.com/pfrederiksen/insead-events/internal/storage"
)

// Outcome of syncing one record
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Outcomes lists every outcome in report order
var Outcomes = []Outcome{OutcomeCreated, OutcomeUpdated, OutcomeUnchanged, OutcomeSkipped, OutcomeFailed}

// Result is the outcome for one event
type Result struct {
	UniqueID string         `json:"unique_id"`
	Title    string         `json:"title"`
	RecordID string         `json:"record_id,omitempty"`
	Outcome  Outcome        `json:"outcome"`
	Changes  []event.Change `json:"changes,omitempty"`
	Error    string         `json:"error,omitempty"`
	Err      error          `json:"-"`
}

// Report collects the per-record results of a sync
type Report struct {
	Results []Result `json:"results"`
}

// Count returns how many results have outcome o
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Counts returns the number of results per outcome
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes))
	for _, o := range Outcomes {
		counts[o] = 0
	}
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}

// Failed reports whether any record failed
func (r *Report) Failed() bool {
	return r.Count(OutcomeFailed) > 0
}

// Adapter syncs events into a store
type Adapter struct {
	store   storage.Store
	log     *logger.Logger
	metrics *metrics.Recorder
}

// Option customizes an Adapter
type Option func(*Adapter)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// WithMetrics records outcomes on m
func WithMetrics(m *metrics.Recorder) Option {
	return func(a *Adapter) { a.metrics = m }
}

// New creates an Adapter for store
func New(store storage.Store, opts ...Option) (*Adapter, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	a := &Adapter{store: store, log: logger.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Sync upserts every event in order. Once ctx is done the remaining
// events are reported as failed without touching the store.
func (a *Adapter) Sync(ctx context.Context, events []*event.Event) *Report {
	report := &Report{Results: make([]Result, 0, len(events))}

	for i, evt := range events {
		var res Result
		if err := ctx.Err(); err != nil {
			res = failed(evt, fmt.Errorf("sync interrupted: %w", err))
		} else {
			res = a.SyncOne(ctx, evt)
		}

		a.metrics.IncrementOutcome(string(res.Outcome))
		a.logResult(i+1, len(events), res)
		report.Results = append(report.Results, res)
	}

	return report
}

// SyncOne upserts a single event
func (a *Adapter) SyncOne(ctx context.Context, evt *event.Event) Result {
	if evt == nil || evt.URL == "" || evt.UniqueID == "" {
		res := Result{Outcome: OutcomeSkipped, Error: "missing url or unique id"}
		if evt != nil {
			res.UniqueID, res.Title = evt.UniqueID, evt.Title
		}
		return res
	}

	rec := storage.FromEvent(evt)

	existing, err := a.store.FindByUniqueID(ctx, evt.UniqueID)
	if errors.Is(err, storage.ErrNotFound) {
		id, err := a.store.Create(ctx, rec)
		if err != nil {
			return failed(evt, fmt.Errorf("creating record: %w", err))
		}
		return Result{UniqueID: evt.UniqueID, Title: evt.Title, RecordID: id, Outcome: OutcomeCreated}
	}
	if err != nil {
		return failed(evt, fmt.Errorf("looking up record: %w", err))
	}

	changes := event.DetectChanges(existing.Event(), evt)
	if len(changes) == 0 {
		return Result{UniqueID: evt.UniqueID, Title: evt.Title, RecordID: existing.ID, Outcome: OutcomeUnchanged}
	}

	// The first time a record was added survives later runs
	if !existing.AddedAt.IsZero() {
		rec.AddedAt = existing.AddedAt
	}
	if err := a.store.Update(ctx, existing.ID, rec); err != nil {
		res := failed(evt, fmt.Errorf("updating record: %w", err))
		res.RecordID = existing.ID
		return res
	}
	return Result{UniqueID: evt.UniqueID, Title: evt.Title, RecordID: existing.ID, Outcome: OutcomeUpdated, Changes: changes}
}

func failed(evt *event.Event, err error) Result {
	res := Result{Outcome: OutcomeFailed, Err: err, Error: err.Error()}
	if evt != nil {
		res.UniqueID, res.Title = evt.UniqueID, evt.Title
	}
	return res
}

func (a *Adapter) logResult(n, total int, res Result) {
	fields := logger.Fields{
		"n":         n,
		"total":     total,
		"unique_id": res.UniqueID,
		"outcome":   string(res.Outcome),
	}
	if res.RecordID != "" {
		fields["record_id"] = res.RecordID
	}

	switch res.Outcome {
	case OutcomeFailed:
		a.log.Error("Record sync failed", fields, res.Err)
	case OutcomeSkipped:
		a.log.Warn("Skipping record without url or unique id", fields)
	case OutcomeUpdated:
		changed := make([]string, 0, len(res.Changes))
		for _, c := range res.Changes {
			changed = append(changed, c.Field)
		}
		fields["changed"] = changed
		a.log.Info("Updated record", fields)
	case OutcomeCreated:
		a.log.Info("Created record", fields)
	default:
		a.log.Debug("Record unchanged", fields)
	}
}
