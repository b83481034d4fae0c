package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/insead-events/internal/app"
	"github.com/pfrederiksen/insead-events/internal/calendar"
	"github.com/pfrederiksen/insead-events/internal/event"
	"github.com/pfrederiksen/insead-events/internal/syncer"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatICS  OutputFormat = "ics"
)

// EventsResult contains the events printed by the scrape command
type EventsResult struct {
	CheckedAt  time.Time      `json:"checked_at"`
	State      string         `json:"state"`
	SetupError string         `json:"setup_error,omitempty"`
	EventCount int            `json:"event_count"`
	Events     []*event.Event `json:"events"`
}

// syncResult is the JSON shape of a sync run
type syncResult struct {
	*app.Summary
	Results []syncer.Result `json:"results"`
}

// WriteEventsOutput writes scraped events in the specified format
func WriteEventsOutput(w io.Writer, result *EventsResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatICS:
		return calendar.Write(w, result.Events, result.CheckedAt)
	case FormatText:
		return writeEventsText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteSyncOutput writes a sync run summary in the specified format
func WriteSyncOutput(w io.Writer, summary *app.Summary, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		out := syncResult{Summary: summary}
		if summary.Report != nil {
			out.Results = summary.Report.Results
		}
		return writeJSON(w, out)
	case FormatText:
		return writeSyncText(w, summary, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeEventsText(w io.Writer, result *EventsResult, verbose bool) error {
	if result.SetupError != "" {
		fmt.Fprintf(w, "Warning: %s (initial page only)\n\n", result.SetupError)
	}

	if result.EventCount == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}

	for _, evt := range result.Events {
		marker := ""
		if evt.RegionRelated {
			marker = " [region]"
		}
		fmt.Fprintf(w, "%-10s  %s%s\n", orTBD(evt.Date), evt.Title, marker)
		if evt.Location != "" {
			fmt.Fprintf(w, "            %s\n", evt.Location)
		}
		if verbose {
			fmt.Fprintf(w, "            URL: %s\n", evt.URL)
			fmt.Fprintf(w, "            ID: %s\n", evt.UniqueID)
			if evt.DateText != "" {
				fmt.Fprintf(w, "            Date text: %s\n", evt.DateText)
			}
			fmt.Fprintf(w, "            Source: %s\n", evt.Source)
		}
	}

	fmt.Fprintf(w, "\nTotal: %d events\n", result.EventCount)
	return nil
}

func writeSyncText(w io.Writer, s *app.Summary, verbose bool) error {
	fmt.Fprintf(w, "Run %s finished in %s (%s)\n", s.RunID, s.Duration, s.State)
	if s.SetupError != "" {
		fmt.Fprintf(w, "Warning: %s (initial page only)\n", s.SetupError)
	}
	fmt.Fprintf(w, "Pages fetched: %d, events found: %d\n", s.Pages, s.EventCount)

	if s.Report == nil {
		return nil
	}

	fmt.Fprintf(w, "Created: %d, updated: %d, unchanged: %d, skipped: %d, failed: %d\n",
		s.Report.Count(syncer.OutcomeCreated),
		s.Report.Count(syncer.OutcomeUpdated),
		s.Report.Count(syncer.OutcomeUnchanged),
		s.Report.Count(syncer.OutcomeSkipped),
		s.Report.Count(syncer.OutcomeFailed),
	)

	for _, res := range s.Report.Results {
		switch {
		case res.Outcome == syncer.OutcomeFailed:
			fmt.Fprintf(w, "  FAILED: %s: %s\n", res.Title, res.Error)
		case res.Outcome == syncer.OutcomeSkipped:
			fmt.Fprintf(w, "  SKIPPED: %s: %s\n", res.Title, res.Error)
		case verbose:
			fmt.Fprintf(w, "  %s: %s", res.Outcome, res.Title)
			if res.RecordID != "" {
				fmt.Fprintf(w, " (%s)", res.RecordID)
			}
			fmt.Fprintln(w)
			for _, c := range res.Changes {
				fmt.Fprintf(w, "       %s: %q -> %q\n", c.Field, c.OldValue, c.NewValue)
			}
		}
	}
	return nil
}

func orTBD(date string) string {
	if date == "" {
		return "TBD"
	}
	return date
}
