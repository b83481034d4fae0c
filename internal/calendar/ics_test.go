package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/insead-events/internal/event"
)

var stamp = time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)

func testEvent(title, date, location string) *event.Event {
	url := "https://www.insead.edu/events/" + strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	return &event.Event{
		UniqueID: event.ComputeUniqueID(title, url),
		Title:    title,
		URL:      url,
		Date:     date,
		Location: location,
	}
}

func TestGenerateICS(t *testing.T) {
	forum := testEvent("Asia Leadership Forum", "2025-06-04", "Singapore Campus")
	forum.RegionRelated = true
	forum.DateText = "04 - 25 Jun '25"

	ics := GenerateICS([]*event.Event{forum}, stamp)

	requiredFields := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//INSEAD Events//insead-events//EN",
		"BEGIN:VEVENT",
		"UID:" + event.Fingerprint(forum.UniqueID) + "@insead-events",
		"DTSTAMP:20250501T083000Z",
		"DTSTART;VALUE=DATE:20250604",
		"DTEND;VALUE=DATE:20250605",
		"SUMMARY:Asia Leadership Forum",
		"LOCATION:Singapore Campus",
		"CATEGORIES:Asia",
		"URL:" + forum.URL,
		"END:VEVENT",
		"END:VCALENDAR",
	}

	for _, field := range requiredFields {
		if !strings.Contains(ics, field+"\r\n") {
			t.Errorf("ICS missing line: %s", field)
		}
	}
}

func TestGenerateICS_SkipsUndatedEvents(t *testing.T) {
	events := []*event.Event{
		testEvent("Dated", "2025-06-10", "Paris"),
		testEvent("Undated", "", "Paris"),
		testEvent("Garbage", "not-a-date", ""),
	}

	ics := GenerateICS(events, stamp)

	if n := strings.Count(ics, "BEGIN:VEVENT"); n != 1 {
		t.Errorf("got %d VEVENTs, want 1", n)
	}
	if strings.Contains(ics, "Undated") {
		t.Error("undated event should not be exported")
	}
}

func TestGenerateICS_EmptyEvents(t *testing.T) {
	ics := GenerateICS(nil, stamp)

	if !strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(ics, "END:VCALENDAR\r\n") {
		t.Errorf("empty calendar malformed: %q", ics)
	}
	if strings.Contains(ics, "BEGIN:VEVENT") {
		t.Error("empty calendar should have no events")
	}
}

func TestGenerateICS_MonthEnd(t *testing.T) {
	ics := GenerateICS([]*event.Event{testEvent("Year End", "2025-12-31", "")}, stamp)

	if !strings.Contains(ics, "DTEND;VALUE=DATE:20260101\r\n") {
		t.Error("DTEND should roll over to the next year")
	}
	if strings.Contains(ics, "LOCATION:") {
		t.Error("LOCATION should be omitted when unknown")
	}
}

func TestGenerateICS_LineFolding(t *testing.T) {
	long := testEvent(strings.Repeat("Leadership ", 12)+"Summit", "2025-06-04", "")

	ics := GenerateICS([]*event.Event{long}, stamp)

	for _, l := range strings.Split(strings.TrimSuffix(ics, "\r\n"), "\r\n") {
		if len(l) > maxLineOctets {
			t.Errorf("line exceeds %d octets: %q", maxLineOctets, l)
		}
	}

	unfolded := strings.ReplaceAll(ics, "\r\n ", "")
	if !strings.Contains(unfolded, "SUMMARY:"+long.Title+"\r\n") {
		t.Error("unfolding should restore the full SUMMARY line")
	}
}

func TestLine_DoesNotSplitRunes(t *testing.T) {
	var b strings.Builder
	line(&b, "SUMMARY:"+strings.Repeat("é", 60))

	for _, l := range strings.Split(strings.TrimSuffix(b.String(), "\r\n"), "\r\n") {
		if !utf8.ValidString(strings.TrimPrefix(l, " ")) {
			t.Errorf("folded line is not valid UTF-8: %q", l)
		}
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	events := []*event.Event{testEvent("Paris Evening Talk", "2025-06-10", "Paris, France")}

	if err := Write(&buf, events, stamp); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.String() != GenerateICS(events, stamp) {
		t.Error("Write() output differs from GenerateICS()")
	}
}

func TestFormatICSTime(t *testing.T) {
	loc := time.FixedZone("SGT", 8*60*60)
	got := formatICSTime(time.Date(2025, 6, 4, 17, 0, 0, 0, loc))
	if got != "20250604T090000Z" {
		t.Errorf("formatICSTime() = %q, want 20250604T090000Z", got)
	}
}

func TestEscapeICS(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Simple text", "Simple text"},
		{"Paris, France", "Paris\\, France"},
		{"a;b", "a\\;b"},
		{"line1\nline2", "line1\\nline2"},
		{"back\\slash", "back\\\\slash"},
	}

	for _, tt := range tests {
		if got := escapeICS(tt.input); got != tt.want {
			t.Errorf("escapeICS(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
