package scraper

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pfrederiksen/insead-events/internal/config"
	"github.com/pfrederiksen/insead-events/internal/event"
	"github.com/pfrederiksen/insead-events/internal/logger"
)

// Extractor pulls event cards out of listing markup
type Extractor struct {
	origin *url.URL
	sel    config.Selectors
	norm   *event.Normalizer
	log    *logger.Logger
}

// NewExtractor creates an Extractor that resolves relative links against origin
func NewExtractor(origin string, sel config.Selectors, norm *event.Normalizer, log *logger.Logger) (*Extractor, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parsing site origin: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("site origin %q is not absolute", origin)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Extractor{origin: u, sel: sel, norm: norm, log: log}, nil
}

// Extract parses one HTML document or fragment and returns its events.
// Every event is stamped with source and discoveredAt.
func (x *Extractor) Extract(r io.Reader, source string, discoveredAt time.Time) ([]*event.Event, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	events := make([]*event.Event, 0)
	doc.Find(x.sel.Card).Each(func(i int, card *goquery.Selection) {
		c, ok := x.candidate(card)
		if !ok {
			return
		}
		events = append(events, x.norm.NewEvent(c, source, discoveredAt))
	})

	return events, nil
}

// ExtractString is Extract over an in-memory fragment
func (x *Extractor) ExtractString(markup, source string, discoveredAt time.Time) ([]*event.Event, error) {
	return x.Extract(strings.NewReader(markup), source, discoveredAt)
}

func (x *Extractor) candidate(card *goquery.Selection) (event.Candidate, bool) {
	link := card.Find(x.sel.TitleLink).First()
	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")

	resolved, ok := x.resolve(href)
	if !ok || title == "" {
		x.log.Debug("Discarding card without title or link", logger.Fields{
			"title": title,
			"href":  href,
		})
		return event.Candidate{}, false
	}

	c := event.Candidate{
		Title:    title,
		URL:      resolved,
		DateText: x.dateText(card),
	}
	if x.sel.Location != "" {
		c.Location = strings.TrimSpace(card.Find(x.sel.Location).First().Text())
	}
	return c, true
}

// resolve turns an href into an absolute URL.
// Empty, fragment-only and javascript: links do not resolve.
func (x *Extractor) resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return x.origin.ResolveReference(ref).String(), true
}

// dateText prefers the structured date container and falls back to the
// plain date link.
func (x *Extractor) dateText(card *goquery.Selection) string {
	if x.sel.DateContainer != "" {
		if container := card.Find(x.sel.DateContainer).First(); container.Length() > 0 {
			return strings.Join(textFragments(container.Nodes[0]), " ")
		}
	}
	if x.sel.DateFallback != "" {
		return strings.TrimSpace(card.Find(x.sel.DateFallback).First().Text())
	}
	return ""
}

// textFragments collects the trimmed text nodes below n in document order,
// dropping empty fragments and lone separator dashes.
func textFragments(n *html.Node) []string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" && s != "-" {
				parts = append(parts, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return parts
}
