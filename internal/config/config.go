// Package config loads the immutable run configuration.
//
// Defaults cover the public INSEAD listing. A YAML file can override any of
// them, and a handful of environment variables override the file so secrets
// never need to live in it. The resulting Config is validated once and then
// passed by value to every component.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/insead-events/internal/event"
)

// Store backends
const (
	BackendAirtable = "airtable"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendDryRun   = "dryrun"
)

// PlaceholderFieldID marks an Airtable field id that was never filled in
const PlaceholderFieldID = "fldXXXXXXX"

// Environment variables that override file settings
const (
	EnvAirtableAPIKey  = "AIRTABLE_API_KEY"
	EnvAirtableBaseID  = "AIRTABLE_BASE_ID"
	EnvAirtableTableID = "AIRTABLE_TABLE_ID"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvDynamoDBTable   = "DYNAMODB_TABLE"
	EnvStore           = "INSEAD_EVENTS_STORE"
	EnvLogLevel        = "INSEAD_EVENTS_LOG_LEVEL"
)

// Config is the complete run configuration
type Config struct {
	Site    SiteConfig    `yaml:"site" validate:"required"`
	Region  RegionConfig  `yaml:"region"`
	Crawl   CrawlConfig   `yaml:"crawl" validate:"required"`
	Store   StoreConfig   `yaml:"store" validate:"required"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Trace   TraceConfig   `yaml:"trace"`
}

// SiteConfig describes the upstream listing and its Drupal view
type SiteConfig struct {
	Origin        string    `yaml:"origin" validate:"required,url"`      // https://www.insead.edu
	ListingURL    string    `yaml:"listing_url" validate:"required,url"` // https://www.insead.edu/events/listing
	AJAXURL       string    `yaml:"ajax_url" validate:"required,url"`    // https://www.insead.edu/views/ajax
	ViewName      string    `yaml:"view_name" validate:"required"`
	ViewDisplayID string    `yaml:"view_display_id" validate:"required"`
	ViewPath      string    `yaml:"view_path"`
	ViewBasePath  string    `yaml:"view_base_path"`
	Theme         string    `yaml:"theme"`
	TokenPattern  string    `yaml:"token_pattern" validate:"required"` // regexp with one capture group
	Selectors     Selectors `yaml:"selectors" validate:"required"`
}

// Selectors are the CSS selectors used to pull fields out of an event card
type Selectors struct {
	Card          string `yaml:"card" validate:"required"`
	TitleLink     string `yaml:"title_link" validate:"required"`
	DateContainer string `yaml:"date_container"`
	DateFallback  string `yaml:"date_fallback"`
	Location      string `yaml:"location"`
}

// RegionConfig holds the keywords that mark a location as region-related
type RegionConfig struct {
	Keywords []string `yaml:"keywords"`
}

// CrawlConfig controls request pacing and transport
type CrawlConfig struct {
	Delay        time.Duration `yaml:"delay" validate:"gte=0"`        // politeness pause between AJAX pages
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`       // per request
	MaxRetries   int           `yaml:"max_retries" validate:"gte=0"`  // transport retries per request
	RetryBackoff time.Duration `yaml:"retry_backoff" validate:"gte=0"` // initial retry interval
	UserAgent    string        `yaml:"user_agent" validate:"required"`
	Browser      bool          `yaml:"browser"` // render the listing page in headless Chrome
}

// StoreConfig selects and configures the sync target
type StoreConfig struct {
	Backend  string         `yaml:"backend" validate:"required,oneof=airtable dynamodb postgres file dryrun"`
	Airtable AirtableConfig `yaml:"airtable"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	Postgres PostgresConfig `yaml:"postgres"`
	File     FileConfig     `yaml:"file"`
}

// AirtableConfig describes the Airtable base and its field ids
type AirtableConfig struct {
	APIURL  string        `yaml:"api_url"`
	BaseID  string        `yaml:"base_id"`
	TableID string        `yaml:"table_id"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	// UniqueIDFieldName is the human-readable field name used in filterByFormula.
	UniqueIDFieldName string   `yaml:"unique_id_field_name"`
	Fields            FieldMap `yaml:"fields" validate:"-"`
}

// FieldMap maps record attributes to Airtable field ids
type FieldMap struct {
	Title         string `yaml:"title" validate:"required"`
	Date          string `yaml:"date" validate:"required"`
	Location      string `yaml:"location" validate:"required"`
	URL           string `yaml:"url" validate:"required"`
	AddedAt       string `yaml:"added_at" validate:"required"`
	RegionRelated string `yaml:"region_related" validate:"required"`
	UniqueID      string `yaml:"unique_id" validate:"required"`
}

// DynamoDBConfig names the table used by the DynamoDB backend
type DynamoDBConfig struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // optional, for DynamoDB Local
}

// PostgresConfig holds the PostgreSQL connection string
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// FileConfig points at the JSON file used by the file backend
type FileConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
}

// MetricsConfig controls the Prometheus textfile export
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// TraceConfig controls OpenTelemetry span export
type TraceConfig struct {
	// Enabled writes every span as JSON to stderr
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration for the INSEAD events listing
func Default() Config {
	return Config{
		Site: SiteConfig{
			Origin:        "https://www.insead.edu",
			ListingURL:    "https://www.insead.edu/events/listing",
			AJAXURL:       "https://www.insead.edu/views/ajax",
			ViewName:      "events_listing",
			ViewDisplayID: "events_listing",
			ViewPath:      "/events/listing",
			ViewBasePath:  "events/listing",
			Theme:         "insead_core",
			TokenPattern:  `js-view-dom-id-([a-f0-9]+)`,
			Selectors: Selectors{
				Card:          ".event-card-full",
				TitleLink:     ".h5__link.list-object__heading-link",
				DateContainer: ".event__date-container__label",
				DateFallback:  ".event-card-full__datetime .link",
				Location:      ".event-card-full__location .link",
			},
		},
		Region: RegionConfig{
			Keywords: append([]string(nil), event.DefaultRegionKeywords...),
		},
		Crawl: CrawlConfig{
			Delay:        2 * time.Second,
			Timeout:      30 * time.Second,
			MaxRetries:   2,
			RetryBackoff: 500 * time.Millisecond,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Store: StoreConfig{
			Backend: BackendAirtable,
			Airtable: AirtableConfig{
				APIURL:            "https://api.airtable.com/v0",
				Timeout:           15 * time.Second,
				UniqueIDFieldName: "Event Unique ID",
				Fields: FieldMap{
					Title:         "fldtf8ZLoMws7T2Kb",
					Date:          "fldbPvdBcLOYveRCb",
					Location:      "fld1oH8ryr7mPJyWM",
					URL:           "fldGhcjpsG70VKrPd",
					AddedAt:       "fldZ8o1YMKacrc2aG",
					RegionRelated: "fldcMTZJFG4C6dJDw",
					UniqueID:      "fldT2yKdU4FYHBAZp",
				},
			},
			DynamoDB: DynamoDBConfig{
				Table: "insead-events",
			},
			File: FileConfig{
				Path: "~/.local/share/insead-events/events.json",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment, then validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that apply further
// overrides such as command-line flags before validating.
func Read(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables looked up via getenv
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Store.Backend, EnvStore)
	set(&c.Store.Airtable.APIKey, EnvAirtableAPIKey)
	set(&c.Store.Airtable.BaseID, EnvAirtableBaseID)
	set(&c.Store.Airtable.TableID, EnvAirtableTableID)
	set(&c.Store.Postgres.URL, EnvDatabaseURL)
	set(&c.Store.DynamoDB.Table, EnvDynamoDBTable)
	set(&c.Log.Level, EnvLogLevel)
}

var validate = validator.New()

// Validate checks field constraints and the settings the selected backend needs
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	switch c.Store.Backend {
	case BackendAirtable:
		a := c.Store.Airtable
		if a.APIKey == "" {
			errs = append(errs, fmt.Errorf("airtable api key is required (set %s)", EnvAirtableAPIKey))
		}
		if a.BaseID == "" {
			errs = append(errs, fmt.Errorf("airtable base id is required (set %s)", EnvAirtableBaseID))
		}
		if a.TableID == "" {
			errs = append(errs, fmt.Errorf("airtable table id is required (set %s)", EnvAirtableTableID))
		}
		if a.UniqueIDFieldName == "" {
			errs = append(errs, errors.New("airtable unique_id_field_name is required"))
		}
		if err := validate.Struct(a.Fields); err != nil {
			errs = append(errs, fmt.Errorf("airtable fields: %w", err))
		}
		if a.Fields.UniqueID == PlaceholderFieldID {
			errs = append(errs, errors.New("airtable unique_id field id is still the fldXXXXXXX placeholder"))
		}
	case BackendDynamoDB:
		if c.Store.DynamoDB.Table == "" {
			errs = append(errs, fmt.Errorf("dynamodb table is required (set %s)", EnvDynamoDBTable))
		}
	case BackendPostgres:
		if c.Store.Postgres.URL == "" {
			errs = append(errs, fmt.Errorf("postgres url is required (set %s)", EnvDatabaseURL))
		}
	case BackendFile:
		if c.Store.File.Path == "" {
			errs = append(errs, errors.New("file store path is required"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Keywords returns a copy of the region keywords
func (c Config) Keywords() []string {
	return append([]string(nil), c.Region.Keywords...)
}
