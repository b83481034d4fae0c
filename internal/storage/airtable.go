package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pfrederiksen/insead-events/internal/config"
	"github.com/pfrederiksen/insead-events/internal/httpclient"
)

// AirtableError is a non-success response from the Airtable API.
// The response body is not kept beyond the error type to avoid leaking data.
type AirtableError struct {
	Status int
	Type   string
}

func (e *AirtableError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("airtable API error (status %d, %s)", e.Status, e.Type)
	}
	return fmt.Sprintf("airtable API error (status %d)", e.Status)
}

// Airtable implements Store on one Airtable table
type Airtable struct {
	tableURL    string
	apiKey      string
	fields      config.FieldMap
	uniqueField string
	httpClient  *http.Client
	policy      httpclient.Policy
}

// AirtableOption customizes an Airtable store
type AirtableOption func(*Airtable)

// WithAirtableClient replaces the HTTP client
func WithAirtableClient(c *http.Client) AirtableOption {
	return func(a *Airtable) { a.httpClient = c }
}

// WithAirtableRetry sets the retry policy for transient API failures
func WithAirtableRetry(p httpclient.Policy) AirtableOption {
	return func(a *Airtable) { a.policy = p }
}

// NewAirtable creates an Airtable store
func NewAirtable(cfg config.AirtableConfig, opts ...AirtableOption) (*Airtable, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("airtable API key is required")
	}
	if cfg.BaseID == "" || cfg.TableID == "" {
		return nil, fmt.Errorf("airtable base and table ids are required")
	}
	if cfg.Fields.UniqueID == "" || cfg.Fields.UniqueID == config.PlaceholderFieldID {
		return nil, fmt.Errorf("airtable unique id field is not configured")
	}

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.airtable.com/v0"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	a := &Airtable{
		tableURL:    fmt.Sprintf("%s/%s/%s", apiURL, url.PathEscape(cfg.BaseID), url.PathEscape(cfg.TableID)),
		apiKey:      cfg.APIKey,
		fields:      cfg.Fields,
		uniqueField: cfg.UniqueIDFieldName,
		httpClient:  httpclient.New(timeout),
		policy:      httpclient.Policy{MaxRetries: 3, Initial: 500 * time.Millisecond},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type airtableRecord struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

// FindByUniqueID looks the record up with a filterByFormula on the unique id field
func (a *Airtable) FindByUniqueID(ctx context.Context, uniqueID string) (*Record, error) {
	q := url.Values{}
	q.Set("filterByFormula", fmt.Sprintf("{%s}='%s'", a.uniqueField, escapeFormula(uniqueID)))
	q.Set("maxRecords", "1")
	q.Set("returnFieldsByFieldId", "true")

	var resp struct {
		Records []airtableRecord `json:"records"`
	}
	if err := a.do(ctx, http.MethodGet, a.tableURL+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("looking up record: %w", err)
	}
	if len(resp.Records) == 0 {
		return nil, ErrNotFound
	}

	rec := a.decode(resp.Records[0])
	return &rec, nil
}

// Create posts a new record
func (a *Airtable) Create(ctx context.Context, rec Record) (string, error) {
	var created airtableRecord
	if err := a.do(ctx, http.MethodPost, a.tableURL, airtableRecord{Fields: a.encode(rec)}, &created); err != nil {
		return "", fmt.Errorf("creating record: %w", err)
	}
	return created.ID, nil
}

// Update patches the fields of an existing record
func (a *Airtable) Update(ctx context.Context, id string, rec Record) error {
	target := a.tableURL + "/" + url.PathEscape(id)
	if err := a.do(ctx, http.MethodPatch, target, airtableRecord{Fields: a.encode(rec)}, nil); err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}
	return nil
}

// Close is a no-op
func (a *Airtable) Close() error {
	return nil
}

func (a *Airtable) encode(rec Record) map[string]any {
	var date any
	if rec.Date != "" {
		date = rec.Date
	}
	addedAt := ""
	if !rec.AddedAt.IsZero() {
		addedAt = rec.AddedAt.UTC().Format(addedAtLayout)
	}
	return map[string]any{
		a.fields.Title:         rec.Title,
		a.fields.Date:          date,
		a.fields.Location:      rec.Location,
		a.fields.URL:           rec.URL,
		a.fields.AddedAt:       addedAt,
		a.fields.RegionRelated: rec.RegionRelated,
		a.fields.UniqueID:      rec.UniqueID,
	}
}

func (a *Airtable) decode(r airtableRecord) Record {
	str := func(field string) string {
		s, _ := r.Fields[field].(string)
		return s
	}
	rec := Record{
		ID:       r.ID,
		UniqueID: str(a.fields.UniqueID),
		Title:    str(a.fields.Title),
		URL:      str(a.fields.URL),
		Date:     str(a.fields.Date),
		Location: str(a.fields.Location),
	}
	// Airtable omits unchecked checkboxes
	rec.RegionRelated, _ = r.Fields[a.fields.RegionRelated].(bool)
	if t, err := time.Parse(addedAtLayout, str(a.fields.AddedAt)); err == nil {
		rec.AddedAt = t
	}
	return rec
}

func (a *Airtable) do(ctx context.Context, method, target string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
	}

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	resp, err := httpclient.Do(ctx, a.httpClient, a.policy, build)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &AirtableError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Type string `json:"type"`
			} `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope) == nil {
			apiErr.Type = envelope.Error.Type
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// escapeFormula quotes a value for use inside a single-quoted formula string
func escapeFormula(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
