package event

import (
	"sort"
	"strconv"
)

// Change describes one field that differs between a stored and a scraped event
type Change struct {
	Field    string `json:"field"` // "title", "url", "date", "location", "region_related"
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// DetectChanges compares a previously stored event with the current one.
// Timestamps and bookkeeping fields (DiscoveredAt, Source, DateText) are ignored,
// so re-syncing identical data reports no changes.
func DetectChanges(previous, current *Event) []Change {
	if previous == nil {
		return []Change{{Field: "new", NewValue: current.Title}}
	}

	var changes []Change

	if previous.Title != current.Title {
		changes = append(changes, Change{Field: "title", OldValue: previous.Title, NewValue: current.Title})
	}

	if previous.URL != current.URL {
		changes = append(changes, Change{Field: "url", OldValue: previous.URL, NewValue: current.URL})
	}

	if previous.Date != current.Date {
		changes = append(changes, Change{Field: "date", OldValue: previous.Date, NewValue: current.Date})
	}

	if previous.Location != current.Location {
		changes = append(changes, Change{Field: "location", OldValue: previous.Location, NewValue: current.Location})
	}

	if previous.RegionRelated != current.RegionRelated {
		changes = append(changes, Change{
			Field:    "region_related",
			OldValue: strconv.FormatBool(previous.RegionRelated),
			NewValue: strconv.FormatBool(current.RegionRelated),
		})
	}

	return changes
}

// SortByDate orders events by Date ascending. Undated events go last and
// keep their relative order.
func SortByDate(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		di, dj := events[i].Date, events[j].Date
		if di == "" {
			return false
		}
		if dj == "" {
			return true
		}
		return di < dj
	})
}
