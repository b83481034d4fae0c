// Package metrics exposes Prometheus collectors for scrape and sync runs.
//
// Collectors live on a private registry so a run can be exported to a
// node-exporter textfile without touching the global default registry.
// All Recorder methods are safe to call on a nil receiver.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the collectors for one process
type Recorder struct {
	registry *prometheus.Registry

	// Pages fetched by kind ("listing", "ajax") and result ("ok", "error")
	PagesFetched *prometheus.CounterVec

	// Events extracted from pages, before deduplication
	EventsExtracted prometheus.Counter

	// Events that were new to the run's aggregate set
	EventsNew prometheus.Counter

	// Sync outcomes per record
	SyncOutcomes *prometheus.CounterVec

	RunDuration prometheus.Histogram

	LastSuccess prometheus.Gauge
}

// New creates a Recorder with every collector registered on a fresh registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insead_events_pages_fetched_total",
			Help: "Upstream pages fetched by kind and result",
		}, []string{"kind", "result"}),

		EventsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "insead_events_extracted_total",
			Help: "Events extracted from upstream pages before deduplication",
		}),

		EventsNew: factory.NewCounter(prometheus.CounterOpts{
			Name: "insead_events_new_total",
			Help: "Events newly inserted into the run's aggregate set",
		}),

		SyncOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insead_events_sync_outcomes_total",
			Help: "Store sync outcomes per record",
		}, []string{"outcome"}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "insead_events_run_duration_seconds",
			Help:    "Duration of a complete scrape and sync run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insead_events_last_success_timestamp_seconds",
			Help: "Unix time of the last run that finished without sync failures",
		}),
	}
}

// Registry returns the private registry backing the collectors
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObservePage records one page fetch and the events it produced
func (r *Recorder) ObservePage(kind string, extracted, added int, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.PagesFetched.WithLabelValues(kind, result).Inc()
	r.EventsExtracted.Add(float64(extracted))
	r.EventsNew.Add(float64(added))
}

// IncrementOutcome records a sync outcome
func (r *Recorder) IncrementOutcome(outcome string) {
	if r != nil {
		r.SyncOutcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveRun records the run duration and, when ok, the completion time
func (r *Recorder) ObserveRun(d time.Duration, finished time.Time, ok bool) {
	if r == nil {
		return
	}
	r.RunDuration.Observe(d.Seconds())
	if ok {
		r.LastSuccess.Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes every collector to path in the text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
