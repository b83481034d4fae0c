package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/pfrederiksen/insead-events/internal/config"
	"github.com/pfrederiksen/insead-events/internal/event"
	"github.com/pfrederiksen/insead-events/internal/httpclient"
	"github.com/pfrederiksen/insead-events/internal/logger"
)

// Source labels stamped on extracted events
const SourceListing = "listing"

// SourceAJAX returns the source label for an AJAX page
func SourceAJAX(page int) string {
	return "ajax:" + strconv.Itoa(page)
}

const maxBodySize = 16 << 20

// FetchError reports a failed upstream request.
// Status is zero when no HTTP response was received.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: unexpected status code: %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Listing is the result of fetching the initial listing page
type Listing struct {
	Events []*event.Event
	// Token is the view DOM id needed for AJAX pagination; empty when absent.
	Token string
}

// Scraper handles fetching and parsing INSEAD event pages
type Scraper struct {
	client    *http.Client
	policy    httpclient.Policy
	site      config.SiteConfig
	userAgent string
	tokenRe   *regexp.Regexp
	extractor *Extractor
	renderer  Renderer
	now       func() time.Time
	log       *logger.Logger
}

// Option customizes a Scraper
type Option func(*Scraper)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithRenderer fetches the listing page through r instead of plain HTTP
func WithRenderer(r Renderer) Option {
	return func(s *Scraper) { s.renderer = r }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Scraper) { s.log = l }
}

// WithClock sets the clock used for DiscoveredAt stamps
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// New creates a Scraper for the configured site
func New(cfg config.Config, opts ...Option) (*Scraper, error) {
	s := &Scraper{
		client: httpclient.New(cfg.Crawl.Timeout),
		policy: httpclient.Policy{
			MaxRetries: cfg.Crawl.MaxRetries,
			Initial:    cfg.Crawl.RetryBackoff,
		},
		site:      cfg.Site,
		userAgent: cfg.Crawl.UserAgent,
		now:       time.Now,
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.policy.Log = s.log

	if cfg.Crawl.Browser && s.renderer == nil {
		s.renderer = ChromeRenderer{
			UserAgent:    cfg.Crawl.UserAgent,
			Timeout:      cfg.Crawl.Timeout,
			WaitSelector: cfg.Site.Selectors.Card,
		}
	}

	re, err := CompileTokenPattern(cfg.Site.TokenPattern)
	if err != nil {
		return nil, err
	}
	s.tokenRe = re

	norm := event.NewNormalizer(cfg.Keywords(), s.log)
	x, err := NewExtractor(cfg.Site.Origin, cfg.Site.Selectors, norm, s.log)
	if err != nil {
		return nil, err
	}
	s.extractor = x

	return s, nil
}

// FetchListing fetches the initial listing page, extracts its events and
// discovers the pagination token.
func (s *Scraper) FetchListing(ctx context.Context) (*Listing, error) {
	var markup []byte

	if s.renderer != nil {
		rendered, err := s.renderer.Render(ctx, s.site.ListingURL)
		if err != nil {
			return nil, &FetchError{URL: s.site.ListingURL, Err: err}
		}
		markup = []byte(rendered)
	} else {
		body, err := s.get(ctx, s.site.ListingURL, nil)
		if err != nil {
			return nil, err
		}
		markup = body
	}

	events, err := s.extractor.Extract(bytes.NewReader(markup), SourceListing, s.now())
	if err != nil {
		return nil, err
	}

	token, _ := DiscoverToken(s.tokenRe, string(markup))
	return &Listing{Events: events, Token: token}, nil
}

// FetchPage requests one AJAX page and extracts its events
func (s *Scraper) FetchPage(ctx context.Context, token string, page int) ([]*event.Event, error) {
	headers := http.Header{}
	headers.Set("X-Requested-With", "XMLHttpRequest")
	headers.Set("Referer", s.site.ListingURL+"?page="+strconv.Itoa(page))
	headers.Set("Accept", "application/json, text/javascript, */*; q=0.01")

	body, err := s.get(ctx, s.PageURL(token, page), headers)
	if err != nil {
		return nil, err
	}

	events, err := s.extractor.ExtractAJAX(bytes.NewReader(body), SourceAJAX(page), s.now())
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return events, nil
}

// PageURL builds the views AJAX request URL for one page
func (s *Scraper) PageURL(token string, page int) string {
	q := url.Values{}
	q.Set("_wrapper_format", "drupal_ajax")
	q.Set("view_name", s.site.ViewName)
	q.Set("view_display_id", s.site.ViewDisplayID)
	q.Set("view_args", "")
	q.Set("view_path", s.site.ViewPath)
	q.Set("view_base_path", s.site.ViewBasePath)
	q.Set("view_dom_id", token)
	q.Set("pager_element", "0")
	q.Set("page", strconv.Itoa(page))
	q.Set("_drupal_ajax", "1")
	q.Set("ajax_page_state[theme]", s.site.Theme)
	q.Set("ajax_page_state[theme_token]", "")
	q.Set("ajax_page_state[libraries]", "")
	return s.site.AJAXURL + "?" + q.Encode()
}

func (s *Scraper) get(ctx context.Context, target string, headers http.Header) ([]byte, error) {
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", s.userAgent)
		for k, v := range headers {
			req.Header[k] = v
		}
		return req, nil
	}

	resp, err := httpclient.Do(ctx, s.client, s.policy, build)
	if err != nil {
		fe := &FetchError{URL: target, Err: err}
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			fe.Status = se.StatusCode
		}
		return nil, fe
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			URL:    target,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	return body, nil
}
