// Package aggregate maintains the deduplicated set of events discovered during one run.
//
// Events arrive from the initial listing page and from every AJAX page after it.
// The set keys them by (title, URL), inserts unseen events verbatim and merges
// repeats by filling only the fields the stored copy is missing. Populated fields
// are never overwritten: the first non-empty value seen wins.
package aggregate

import (
	"github.com/pfrederiksen/insead-events/internal/event"
)

// Set is an insertion-ordered, deduplicated collection of events.
// It is not safe for concurrent use; a run mutates it from a single goroutine.
type Set struct {
	events map[event.Key]*event.Event
	order  []event.Key
}

// New creates an empty Set
func New() *Set {
	return &Set{
		events: make(map[event.Key]*event.Event),
	}
}

// Merge adds evt to the set. It reports true only when evt was newly inserted.
// Events without a title or URL are rejected and report false.
func (s *Set) Merge(evt *event.Event) bool {
	if !evt.Valid() {
		return false
	}

	key := evt.Key()
	existing, ok := s.events[key]
	if !ok {
		s.events[key] = evt.Clone()
		s.order = append(s.order, key)
		return true
	}

	fillGaps(existing, evt)
	return false
}

// MergeAll merges every event in order and returns how many were newly inserted
func (s *Set) MergeAll(events []*event.Event) int {
	added := 0
	for _, evt := range events {
		if s.Merge(evt) {
			added++
		}
	}
	return added
}

// get returns the stored event for key, if any
func (s *Set) get(key event.Key) (*event.Event, bool) {
	evt, ok := s.events[key]
	return evt, ok
}

// Len returns the number of distinct events
func (s *Set) Len() int {
	return len(s.order)
}

// Events returns the stored events in first-seen order
func (s *Set) Events() []*event.Event {
	out := make([]*event.Event, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.events[key])
	}
	return out
}

// fillGaps copies fields from incoming into existing where existing has nothing.
// Each field is handled explicitly: a generic union would let later pages
// overwrite values the first source already provided.
func fillGaps(existing, incoming *event.Event) {
	if existing.UniqueID == "" && incoming.UniqueID != "" {
		existing.UniqueID = incoming.UniqueID
	}
	if existing.Date == "" && incoming.Date != "" {
		existing.Date = incoming.Date
	}
	if existing.DateText == "" && incoming.DateText != "" {
		existing.DateText = incoming.DateText
	}
	if existing.Location == "" && incoming.Location != "" {
		existing.Location = incoming.Location
	}
	// The region flag only ever moves from false to true.
	if !existing.RegionRelated && incoming.RegionRelated {
		existing.RegionRelated = true
	}
	if existing.DiscoveredAt.IsZero() && !incoming.DiscoveredAt.IsZero() {
		existing.DiscoveredAt = incoming.DiscoveredAt
	}
	if existing.Source == "" && incoming.Source != "" {
		existing.Source = incoming.Source
	}
}
