package scraper

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/insead-events/internal/config"
	"github.com/pfrederiksen/insead-events/internal/event"
	"github.com/pfrederiksen/insead-events/internal/logger"
)

var fixedTime = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	cfg := config.Default()
	norm := event.NewNormalizer(cfg.Keywords(), logger.Discard())
	x, err := NewExtractor(cfg.Site.Origin, cfg.Site.Selectors, norm, logger.Discard())
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	return x
}

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return data
}

func TestExtract_ListingFixture(t *testing.T) {
	x := newTestExtractor(t)

	events, err := x.ExtractString(string(loadFixture(t, "listing.html")), SourceListing, fixedTime)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []struct {
		title    string
		url      string
		date     string
		location string
		region   bool
	}{
		{"Asia Leadership Forum", "https://www.insead.edu/events/asia-leadership-forum", "2025-06-04", "Singapore Campus", true},
		{"Paris Evening Talk", "https://www.insead.edu/events/paris-talk", "2025-06-10", "Paris, France", false},
		{"Alumni Reunion", "https://www.insead.edu/events/alumni-reunion", "2025-03-01", "", false},
	}

	if len(events) != len(want) {
		t.Fatalf("Extract() returned %d events, want %d", len(events), len(want))
	}

	for i, w := range want {
		evt := events[i]
		if evt.Title != w.title {
			t.Errorf("event[%d].Title = %q, want %q", i, evt.Title, w.title)
		}
		if evt.URL != w.url {
			t.Errorf("event[%d].URL = %q, want %q", i, evt.URL, w.url)
		}
		if evt.Date != w.date {
			t.Errorf("event[%d].Date = %q, want %q (raw %q)", i, evt.Date, w.date, evt.DateText)
		}
		if evt.Location != w.location {
			t.Errorf("event[%d].Location = %q, want %q", i, evt.Location, w.location)
		}
		if evt.RegionRelated != w.region {
			t.Errorf("event[%d].RegionRelated = %v, want %v", i, evt.RegionRelated, w.region)
		}
		if evt.UniqueID != event.ComputeUniqueID(w.title, w.url) {
			t.Errorf("event[%d].UniqueID = %q", i, evt.UniqueID)
		}
		if !evt.DiscoveredAt.Equal(fixedTime) {
			t.Errorf("event[%d].DiscoveredAt = %v, want %v", i, evt.DiscoveredAt, fixedTime)
		}
		if evt.Source != SourceListing {
			t.Errorf("event[%d].Source = %q, want %q", i, evt.Source, SourceListing)
		}
	}
}

func TestExtract_DateContainerDropsSeparator(t *testing.T) {
	x := newTestExtractor(t)

	markup := `<div class="event-card-full">
		<a class="h5__link list-object__heading-link" href="/events/x">X</a>
		<span class="event__date-container__label"><b>04</b> - <b>25</b> <i>Jun</i> <i>'25</i></span>
		<div class="event-card-full__datetime"><span class="link">ignored fallback</span></div>
	</div>`

	events, err := x.ExtractString(markup, SourceListing, fixedTime)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].DateText != "04 25 Jun '25" {
		t.Errorf("DateText = %q, want %q", events[0].DateText, "04 25 Jun '25")
	}
	if events[0].Date != "2025-06-04" {
		t.Errorf("Date = %q, want 2025-06-04", events[0].Date)
	}
}

func TestExtract_DiscardsUnresolvableCards(t *testing.T) {
	tests := []struct {
		name string
		card string
	}{
		{"empty href", `<a class="h5__link list-object__heading-link" href="">T</a>`},
		{"missing href", `<a class="h5__link list-object__heading-link">T</a>`},
		{"fragment", `<a class="h5__link list-object__heading-link" href="#">T</a>`},
		{"javascript", `<a class="h5__link list-object__heading-link" href="JavaScript:void(0)">T</a>`},
		{"empty title", `<a class="h5__link list-object__heading-link" href="/events/t">   </a>`},
		{"no link", `<span>T</span>`},
	}

	x := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := `<div class="event-card-full">` + tt.card + `</div>`
			events, err := x.ExtractString(markup, SourceListing, fixedTime)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if len(events) != 0 {
				t.Errorf("got %d events, want 0", len(events))
			}
		})
	}
}

func TestExtract_UnparseableDateKeepsEvent(t *testing.T) {
	x := newTestExtractor(t)

	markup := `<div class="event-card-full">
		<a class="h5__link list-object__heading-link" href="/events/tba">Coming soon</a>
		<div class="event-card-full__datetime"><span class="link">Date to be announced</span></div>
	</div>`

	events, err := x.ExtractString(markup, SourceListing, fixedTime)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Date != "" {
		t.Errorf("Date = %q, want empty", events[0].Date)
	}
	if events[0].DateText != "Date to be announced" {
		t.Errorf("DateText = %q", events[0].DateText)
	}
}

func TestNewExtractor_RejectsRelativeOrigin(t *testing.T) {
	cfg := config.Default()
	norm := event.NewNormalizer(nil, logger.Discard())
	if _, err := NewExtractor("/relative", cfg.Site.Selectors, norm, nil); err == nil {
		t.Error("NewExtractor() expected error for relative origin")
	}
}

func TestExtractAJAX_Fixture(t *testing.T) {
	x := newTestExtractor(t)

	events, err := x.ExtractAJAX(strings.NewReader(string(loadFixture(t, "ajax_page.json"))), SourceAJAX(1), fixedTime)
	if err != nil {
		t.Fatalf("ExtractAJAX() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	tokyo, summit := events[0], events[1]
	if tokyo.Title != "Tokyo Alumni Evening" || tokyo.Date != "2025-06-28" || !tokyo.RegionRelated {
		t.Errorf("unexpected first event: %+v", tokyo)
	}
	if summit.URL != "https://www.insead.edu/events/finance-summit" || summit.Date != "2025-07-12" {
		t.Errorf("unexpected second event: %+v", summit)
	}
	if tokyo.Source != "ajax:1" {
		t.Errorf("Source = %q, want ajax:1", tokyo.Source)
	}
}

func TestDecodeCommands(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr bool
	}{
		{
			name: "string data",
			body: `[{"command":"insert","data":"<p>a</p>"}]`,
			want: []string{"<p>a</p>"},
		},
		{
			name: "array data is concatenated",
			body: `[{"command":"insert","data":["<p>", "a", 7, null, "</p>"]}]`,
			want: []string{"<p>a</p>"},
		},
		{
			name: "commands without data are skipped",
			body: `[{"command":"settings","settings":{}},{"command":"invoke","data":null},{"command":"insert","data":""}]`,
			want: []string{},
		},
		{
			name: "non-object entries are skipped",
			body: `["stray", 5, {"command":"insert","data":"<p>b</p>"}]`,
			want: []string{"<p>b</p>"},
		},
		{
			name:    "not json",
			body:    `<html>maintenance</html>`,
			wantErr: true,
		},
		{
			name:    "object instead of list",
			body:    `{"command":"insert"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommands(strings.NewReader(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeCommands() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("DecodeCommands() = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("fragment[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDiscoverToken(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
		found  bool
	}{
		{"present", `<div class="view js-view-dom-id-ab12cd34">`, "ab12cd34", true},
		{"first wins", `js-view-dom-id-aaa js-view-dom-id-bbb`, "aaa", true},
		{"absent", `<div class="view">`, "", false},
		{"non-hex", `js-view-dom-id-XYZ`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DiscoverToken(nil, tt.markup)
			if got != tt.want || ok != tt.found {
				t.Errorf("DiscoverToken() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestCompileTokenPattern(t *testing.T) {
	if _, err := CompileTokenPattern(`dom-id-([a-f0-9]+)`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := CompileTokenPattern(`dom-id-[a-f0-9]+`); err == nil {
		t.Error("expected error for pattern without a capture group")
	}
	if _, err := CompileTokenPattern(`(`); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
