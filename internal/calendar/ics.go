// Package calendar exports scraped events as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pfrederiksen/insead-events/internal/event"
)

const (
	prodID    = "-//INSEAD Events//insead-events//EN"
	uidDomain = "insead-events"
	// RFC 5545 content lines are limited to 75 octets
	maxLineOctets = 75
)

// GenerateICS renders every dated event as an all-day VEVENT in one calendar.
// Events without a parsed date are left out.
func GenerateICS(events []*event.Event, stamp time.Time) string {
	var ics strings.Builder

	line(&ics, "BEGIN:VCALENDAR")
	line(&ics, "VERSION:2.0")
	line(&ics, "PRODID:"+prodID)
	line(&ics, "CALSCALE:GREGORIAN")
	line(&ics, "METHOD:PUBLISH")
	line(&ics, "X-WR-CALNAME:INSEAD Events")

	for _, evt := range events {
		writeEvent(&ics, evt, stamp)
	}

	line(&ics, "END:VCALENDAR")
	return ics.String()
}

// Write writes the calendar for events to w
func Write(w io.Writer, events []*event.Event, stamp time.Time) error {
	_, err := io.WriteString(w, GenerateICS(events, stamp))
	return err
}

func writeEvent(ics *strings.Builder, evt *event.Event, stamp time.Time) {
	start, err := time.Parse(event.DateLayout, evt.Date)
	if err != nil {
		return
	}

	line(ics, "BEGIN:VEVENT")
	line(ics, fmt.Sprintf("UID:%s@%s", event.Fingerprint(evt.UniqueID), uidDomain))
	line(ics, "DTSTAMP:"+formatICSTime(stamp))
	// All-day: DTEND is exclusive
	line(ics, "DTSTART;VALUE=DATE:"+start.Format("20060102"))
	line(ics, "DTEND;VALUE=DATE:"+start.AddDate(0, 0, 1).Format("20060102"))
	line(ics, "SUMMARY:"+escapeICS(evt.Title))

	description := evt.URL
	if evt.DateText != "" {
		description = fmt.Sprintf("Date: %s\n%s", evt.DateText, evt.URL)
	}
	line(ics, "DESCRIPTION:"+escapeICS(description))

	if evt.Location != "" {
		line(ics, "LOCATION:"+escapeICS(evt.Location))
	}
	if evt.RegionRelated {
		line(ics, "CATEGORIES:Asia")
	}
	line(ics, "URL:"+evt.URL)
	line(ics, "STATUS:CONFIRMED")
	line(ics, "TRANSP:TRANSPARENT")
	line(ics, "END:VEVENT")
}

// line writes one content line terminated by CRLF, folded so no physical
// line exceeds 75 octets. Continuation lines start with a space.
func line(ics *strings.Builder, s string) {
	limit := maxLineOctets
	for len(s) > limit {
		cut := limit
		for cut > 1 && s[cut]&0xC0 == 0x80 {
			cut--
		}
		ics.WriteString(s[:cut])
		ics.WriteString("\r\n ")
		s = s[cut:]
		limit = maxLineOctets - 1
	}
	ics.WriteString(s)
	ics.WriteString("\r\n")
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
