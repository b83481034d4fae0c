package event

import (
	"crypto/sha1"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date layout used for Event.Date.
const DateLayout = "2006-01-02"

// Event represents one INSEAD event as discovered during a run
type Event struct {
	UniqueID      string    `json:"unique_id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Date          string    `json:"date,omitempty"`      // YYYY-MM-DD, empty when unknown
	DateText      string    `json:"date_text,omitempty"` // raw text the date was parsed from
	Location      string    `json:"location,omitempty"`
	RegionRelated bool      `json:"region_related"`
	DiscoveredAt  time.Time `json:"discovered_at"`
	Source        string    `json:"source,omitempty"` // "listing" or "ajax:<page>"
}

// Key identifies an event within a run's aggregate set
type Key struct {
	Title string
	URL   string
}

// Key returns the aggregation key of the event
func (e *Event) Key() Key {
	return Key{Title: e.Title, URL: e.URL}
}

// Valid reports whether the event carries the fields its identity needs
func (e *Event) Valid() bool {
	return e != nil && e.Title != "" && e.URL != ""
}

// Clone returns a shallow copy of the event
func (e *Event) Clone() *Event {
	c := *e
	return &c
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeTitle lower-cases a title and strips every non-alphanumeric character
func NormalizeTitle(title string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(title), "")
}

// ComputeUniqueID creates the deterministic identifier used as the upsert key.
// The title is normalized, the URL is used verbatim.
func ComputeUniqueID(title, url string) string {
	return NormalizeTitle(title) + "-" + url
}

// Fingerprint returns a fixed-width SHA1 digest of a unique ID
func Fingerprint(uniqueID string) string {
	h := sha1.New()
	h.Write([]byte(uniqueID))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Candidate holds the raw text pulled from one listing card before normalization
type Candidate struct {
	Title    string
	URL      string
	DateText string
	Location string
}

// NewEvent creates a new Event with Date, RegionRelated and UniqueID populated
func (n *Normalizer) NewEvent(c Candidate, source string, discoveredAt time.Time) *Event {
	title := collapseSpace(c.Title)
	location := collapseSpace(c.Location)
	dateText := collapseSpace(c.DateText)

	evt := &Event{
		Title:         title,
		URL:           strings.TrimSpace(c.URL),
		DateText:      dateText,
		Date:          n.Date(dateText),
		Location:      location,
		RegionRelated: n.ClassifyRegion(location),
		DiscoveredAt:  discoveredAt.UTC(),
		Source:        source,
	}
	if evt.Valid() {
		evt.UniqueID = ComputeUniqueID(evt.Title, evt.URL)
	}
	return evt
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
