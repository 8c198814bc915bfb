package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_ReadsAdapterAndStorage(t *testing.T) {
	t.Setenv("ADAPTER_BASE_URL", "https://api.woodshed.example")
	t.Setenv("ADAPTER_REQUEST_TIMEOUT", "20s")
	t.Setenv("STORAGE_DB_DATABASE_URI", "/tmp/woodshed.db")
	t.Setenv("WORKERS_SYNC_INTERVAL", "2m")

	cfg := &ClientConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "https://api.woodshed.example", cfg.Adapter.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, "/tmp/woodshed.db", cfg.Storage.DB.DSN)
	assert.Equal(t, 2*time.Minute, cfg.Workers.SyncInterval)
}

func TestParseFlags_ReadsAllFlags(t *testing.T) {
	cfg := parseFlags([]string{
		"-base-url", "http://localhost:8080",
		"-d", "client.db",
		"-sync-interval", "90s",
		"-c", "cfg.json",
	})

	assert.Equal(t, "http://localhost:8080", cfg.Adapter.BaseURL)
	assert.Equal(t, "client.db", cfg.Storage.DB.DSN)
	assert.Equal(t, 90*time.Second, cfg.Workers.SyncInterval)
	assert.Equal(t, "cfg.json", cfg.JSONFilePath)
}

func TestParseJSON_StringDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	payload := `{
		"adapter": {"base_url": "https://api.woodshed.example", "request_timeout": "25s"},
		"storage": {"db": {"dsn": "file.db"}},
		"workers": {"sync_interval": "10m", "probe_interval": "45s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.woodshed.example", cfg.Adapter.BaseURL)
	assert.Equal(t, 25*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, "file.db", cfg.Storage.DB.DSN)
	assert.Equal(t, 10*time.Minute, cfg.Workers.SyncInterval)
	assert.Equal(t, 45*time.Second, cfg.Workers.ProbeInterval)
}

func TestParseJSON_MissingFile(t *testing.T) {
	_, err := parseJSON(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestDuration_UnmarshalVariants(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1h"`), &d))
	assert.Equal(t, time.Hour, time.Duration(d))

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, time.Duration(d))

	require.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
}

func TestValidate_RequiresBaseURL(t *testing.T) {
	cfg := &ClientConfig{}
	cfg.applyDefaults()

	err := cfg.validate()
	require.ErrorIs(t, err, ErrInvalidAdapterConfigs)
}

func TestValidate_RejectsMalformedBaseURL(t *testing.T) {
	cfg := &ClientConfig{Adapter: Adapter{BaseURL: "not a url"}}
	cfg.applyDefaults()

	err := cfg.validate()
	require.ErrorIs(t, err, ErrInvalidAdapterConfigs)
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	cfg := &ClientConfig{Adapter: Adapter{BaseURL: "https://api.woodshed.example"}}
	cfg.applyDefaults()

	require.NoError(t, cfg.validate())
	assert.Equal(t, 15*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Adapter.RefreshTimeout)
	assert.Equal(t, "woodshed.db", cfg.Storage.DB.DSN)
	assert.Equal(t, 5*time.Minute, cfg.Workers.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.Workers.ProbeInterval)
}
