package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pfrederiksen/insead-events/internal/event"
)

// ErrNotFound is returned by FindByUniqueID when no record carries the id
var ErrNotFound = errors.New("record not found")

// ErrExists is returned by Create when a record with the unique id is already stored
var ErrExists = errors.New("record already exists")

// Record is the store-facing representation of an event
type Record struct {
	// ID is assigned by the store on create
	ID            string    `json:"id,omitempty"`
	UniqueID      string    `json:"unique_id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Date          string    `json:"date,omitempty"`
	Location      string    `json:"location,omitempty"`
	RegionRelated bool      `json:"region_related"`
	AddedAt       time.Time `json:"added_at"`
}

// FromEvent builds the record for an event. AddedAt is the run's discovery time.
func FromEvent(e *event.Event) Record {
	return Record{
		UniqueID:      e.UniqueID,
		Title:         e.Title,
		URL:           e.URL,
		Date:          e.Date,
		Location:      e.Location,
		RegionRelated: e.RegionRelated,
		AddedAt:       e.DiscoveredAt,
	}
}

// Event converts a stored record back into an event for comparison
func (r Record) Event() *event.Event {
	return &event.Event{
		UniqueID:      r.UniqueID,
		Title:         r.Title,
		URL:           r.URL,
		Date:          r.Date,
		Location:      r.Location,
		RegionRelated: r.RegionRelated,
		DiscoveredAt:  r.AddedAt,
	}
}

// Store is an external datastore keyed on the event unique id
type Store interface {
	// FindByUniqueID returns the stored record or ErrNotFound
	FindByUniqueID(ctx context.Context, uniqueID string) (*Record, error)
	// Create stores a new record and returns its store id
	Create(ctx context.Context, rec Record) (string, error)
	// Update replaces the fields of the record with the given store id
	Update(ctx context.Context, id string, rec Record) error
	// Close releases connections held by the store
	Close() error
}

// addedAtLayout is how stores that keep text timestamps render AddedAt
const addedAtLayout = "2006-01-02 15:04:05"
