package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault_ValidWithCredentials(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{
		EnvAirtableAPIKey:  "pat123",
		EnvAirtableBaseID:  "app123",
		EnvAirtableTableID: "tbl123",
	}))

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "pat123", cfg.Store.Airtable.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Crawl.Delay)
	assert.Contains(t, cfg.Region.Keywords, "singapore")
}

func TestValidate_AirtableRequiresCredentials(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvAirtableAPIKey)
	assert.Contains(t, err.Error(), EnvAirtableBaseID)
	assert.Contains(t, err.Error(), EnvAirtableTableID)
}

func TestValidate_PlaceholderUniqueIDField(t *testing.T) {
	cfg := Default()
	cfg.Store.Airtable.APIKey = "k"
	cfg.Store.Airtable.BaseID = "b"
	cfg.Store.Airtable.TableID = "t"
	cfg.Store.Airtable.Fields.UniqueID = PlaceholderFieldID

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
}

func TestValidate_Backends(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "dry run needs nothing",
			mutate: func(c *Config) { c.Store.Backend = BackendDryRun },
		},
		{
			name: "postgres requires url",
			mutate: func(c *Config) {
				c.Store.Backend = BackendPostgres
			},
			wantErr: EnvDatabaseURL,
		},
		{
			name: "postgres with url",
			mutate: func(c *Config) {
				c.Store.Backend = BackendPostgres
				c.Store.Postgres.URL = "postgres://localhost/events"
			},
		},
		{
			name: "dynamodb requires table",
			mutate: func(c *Config) {
				c.Store.Backend = BackendDynamoDB
				c.Store.DynamoDB.Table = ""
			},
			wantErr: EnvDynamoDBTable,
		},
		{
			name: "file requires path",
			mutate: func(c *Config) {
				c.Store.Backend = BackendFile
				c.Store.File.Path = ""
			},
			wantErr: "file store path",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "sheets" },
			wantErr: "Backend",
		},
		{
			name: "negative delay",
			mutate: func(c *Config) {
				c.Store.Backend = BackendDryRun
				c.Crawl.Delay = -time.Second
			},
			wantErr: "Delay",
		},
		{
			name: "bad listing url",
			mutate: func(c *Config) {
				c.Store.Backend = BackendDryRun
				c.Site.ListingURL = "not a url"
			},
			wantErr: "ListingURL",
		},
		{
			name: "bad log level",
			mutate: func(c *Config) {
				c.Store.Backend = BackendDryRun
				c.Log.Level = "loud"
			},
			wantErr: "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
region:
  keywords: [europe, france]
crawl:
  delay: 500ms
  max_retries: 4
store:
  backend: file
  file:
    path: ` + filepath.Join(dir, "events.json") + `
log:
  level: debug
trace:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvStore, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"europe", "france"}, cfg.Region.Keywords)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawl.Delay)
	assert.Equal(t, 4, cfg.Crawl.MaxRetries)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, "warn", cfg.Log.Level, "environment overrides the file")
	assert.True(t, cfg.Trace.Enabled)
	// Untouched defaults survive the overlay
	assert.Equal(t, "https://www.insead.edu/events/listing", cfg.Site.ListingURL)
	assert.Equal(t, 30*time.Second, cfg.Crawl.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestKeywords_ReturnsCopy(t *testing.T) {
	cfg := Default()
	kw := cfg.Keywords()
	kw[0] = "mutated"

	assert.NotEqual(t, "mutated", cfg.Region.Keywords[0])
}

func TestRead_DoesNotValidate(t *testing.T) {
	t.Setenv(EnvAirtableAPIKey, "")
	t.Setenv(EnvStore, "")

	cfg, err := Read("")
	require.NoError(t, err)
	assert.Equal(t, BackendAirtable, cfg.Store.Backend)
	assert.Error(t, cfg.Validate(), "credentials are still missing")
}
