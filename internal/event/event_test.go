package event

import (
	"testing"
	"time"

	"github.com/pfrederiksen/insead-events/internal/logger"
)

func TestComputeUniqueID(t *testing.T) {
	tests := []struct {
		name  string
		title string
		url   string
		want  string
	}{
		{
			name:  "punctuation and case stripped",
			title: "Leadership Summit: Asia 2025!",
			url:   "https://www.insead.edu/events/leadership-summit",
			want:  "leadershipsummitasia2025-https://www.insead.edu/events/leadership-summit",
		},
		{
			name:  "url kept verbatim",
			title: "Info Session",
			url:   "https://www.insead.edu/Events/Info?x=1",
			want:  "infosession-https://www.insead.edu/Events/Info?x=1",
		},
		{
			name:  "non-ascii letters dropped",
			title: "Café Talk",
			url:   "https://x/1",
			want:  "caftalk-https://x/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeUniqueID(tt.title, tt.url); got != tt.want {
				t.Errorf("ComputeUniqueID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComputeUniqueID_Deterministic(t *testing.T) {
	id1 := ComputeUniqueID("MBA Open Day", "https://www.insead.edu/events/open-day")
	id2 := ComputeUniqueID("MBA Open Day", "https://www.insead.edu/events/open-day")
	if id1 != id2 {
		t.Errorf("ComputeUniqueID not deterministic: %q != %q", id1, id2)
	}

	// Titles that normalize identically share an ID for the same URL
	id3 := ComputeUniqueID("mba open-day", "https://www.insead.edu/events/open-day")
	if id1 != id3 {
		t.Errorf("expected normalized titles to match: %q != %q", id1, id3)
	}

	// Different URL, different ID
	id4 := ComputeUniqueID("MBA Open Day", "https://www.insead.edu/events/open-day-2")
	if id1 == id4 {
		t.Error("different URLs should produce different IDs")
	}

	// Different title, different ID
	id5 := ComputeUniqueID("EMBA Open Day", "https://www.insead.edu/events/open-day")
	if id1 == id5 {
		t.Error("different titles should produce different IDs")
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("abc-https://x")
	if len(fp) != 40 {
		t.Errorf("Fingerprint() length = %d, want 40", len(fp))
	}
	if fp != Fingerprint("abc-https://x") {
		t.Error("Fingerprint() should be deterministic")
	}
}

func TestNormalizer_NewEvent(t *testing.T) {
	n := NewNormalizer(DefaultRegionKeywords, logger.Discard())
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	evt := n.NewEvent(Candidate{
		Title:    "  Alumni   Forum ",
		URL:      "https://www.insead.edu/events/alumni-forum",
		DateText: "04 - 25 Jun '25",
		Location: "Singapore Campus",
	}, "ajax:2", at)

	if evt.Title != "Alumni Forum" {
		t.Errorf("Title = %q, want collapsed whitespace", evt.Title)
	}
	if evt.Date != "2025-06-04" {
		t.Errorf("Date = %q, want 2025-06-04", evt.Date)
	}
	if !evt.RegionRelated {
		t.Error("RegionRelated = false, want true")
	}
	if evt.UniqueID != "alumniforum-https://www.insead.edu/events/alumni-forum" {
		t.Errorf("UniqueID = %q", evt.UniqueID)
	}
	if !evt.DiscoveredAt.Equal(at) {
		t.Errorf("DiscoveredAt = %v, want %v", evt.DiscoveredAt, at)
	}
	if evt.Source != "ajax:2" {
		t.Errorf("Source = %q, want ajax:2", evt.Source)
	}
}

func TestNormalizer_NewEvent_MissingIdentity(t *testing.T) {
	n := NewNormalizer(DefaultRegionKeywords, logger.Discard())

	evt := n.NewEvent(Candidate{Title: "No link"}, "listing", time.Now())
	if evt.Valid() {
		t.Error("event without URL should not be valid")
	}
	if evt.UniqueID != "" {
		t.Errorf("UniqueID = %q, want empty for invalid event", evt.UniqueID)
	}
}

func TestNormalizer_ClassifyRegion(t *testing.T) {
	n := NewNormalizer(DefaultRegionKeywords, logger.Discard())

	tests := []struct {
		location string
		want     bool
	}{
		{"Singapore Campus", true},
		{"Paris", false},
		{"INSEAD Asia Campus", true},
		{"Tokyo, JAPAN", true},
		{"Online", false},
		{"", false},
		{"Fontainebleau, France", false},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			if got := n.ClassifyRegion(tt.location); got != tt.want {
				t.Errorf("ClassifyRegion(%q) = %v, want %v", tt.location, got, tt.want)
			}
		})
	}
}

func TestNormalizer_CustomKeywords(t *testing.T) {
	n := NewNormalizer([]string{" Europe ", "", "FRANCE"}, logger.Discard())

	if !n.ClassifyRegion("Fontainebleau, France") {
		t.Error("expected custom keyword to match case-insensitively")
	}
	if n.ClassifyRegion("Singapore") {
		t.Error("default keywords should not apply when overridden")
	}
	if n.ClassifyRegion("anything") {
		t.Error("empty keyword must not match everything")
	}
}
