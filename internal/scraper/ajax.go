package scraper

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pfrederiksen/insead-events/internal/event"
)

// command is one entry of a Drupal AJAX response
type command struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

// DecodeCommands reads a Drupal AJAX command list and returns the HTML
// carried by each command's data member. A data member may be a string or
// an array of strings, which is concatenated. Commands without HTML data
// are skipped.
func DecodeCommands(r io.Reader) ([]string, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding AJAX response: %w", err)
	}

	fragments := make([]string, 0, len(raw))
	for _, item := range raw {
		var cmd command
		if err := json.Unmarshal(item, &cmd); err != nil {
			continue
		}
		if markup := commandHTML(cmd.Data); markup != "" {
			fragments = append(fragments, markup)
		}
	}
	return fragments, nil
}

func commandHTML(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}

	var parts []any
	if err := json.Unmarshal(data, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if s, ok := p.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

// ExtractAJAX decodes an AJAX response and extracts the events of every fragment
func (x *Extractor) ExtractAJAX(r io.Reader, source string, discoveredAt time.Time) ([]*event.Event, error) {
	fragments, err := DecodeCommands(r)
	if err != nil {
		return nil, err
	}

	events := make([]*event.Event, 0)
	for _, fragment := range fragments {
		batch, err := x.ExtractString(fragment, source, discoveredAt)
		if err != nil {
			return nil, err
		}
		events = append(events, batch...)
	}
	return events, nil
}
