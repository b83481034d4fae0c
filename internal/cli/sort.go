package cli

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/insead-events/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate     SortOrder = "date"
	SortByTitle    SortOrder = "title"
	SortByLocation SortOrder = "location"
)

// sortEvents sorts a slice of events based on the specified sort order
func sortEvents(events []*event.Event, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		sort.SliceStable(events, func(i, j int) bool {
			return compareByDate(events[i], events[j])
		})
	case SortByTitle:
		sort.SliceStable(events, func(i, j int) bool {
			ti, tj := strings.ToLower(events[i].Title), strings.ToLower(events[j].Title)
			if ti != tj {
				return ti < tj
			}
			return compareByDate(events[i], events[j])
		})
	case SortByLocation:
		sort.SliceStable(events, func(i, j int) bool {
			li, lj := strings.ToLower(events[i].Location), strings.ToLower(events[j].Location)
			if li != lj {
				// Unknown locations go last
				if li == "" || lj == "" {
					return lj == ""
				}
				return li < lj
			}
			return compareByDate(events[i], events[j])
		})
	}
}

// compareByDate reports whether i should come before j.
// Dated events come first, earliest first; ties fall back to the title.
func compareByDate(i, j *event.Event) bool {
	if i.Date != j.Date {
		if i.Date == "" || j.Date == "" {
			return j.Date == ""
		}
		// YYYY-MM-DD sorts lexically
		return i.Date < j.Date
	}
	return strings.ToLower(i.Title) < strings.ToLower(j.Title)
}

func filterRegion(events []*event.Event) []*event.Event {
	filtered := make([]*event.Event, 0, len(events))
	for _, evt := range events {
		if evt.RegionRelated {
			filtered = append(filtered, evt)
		}
	}
	return filtered
}
