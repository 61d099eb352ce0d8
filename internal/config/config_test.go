package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 9000
log_level = "trace"
logs_path = ""
log_to_stdout = true
sentry_enabled = false
prometheus_metrics_host = "localhost"
prometheus_metrics_port = "2112"
strava_base_url = "https://www.strava.com"
strava_redirect_url = "http://localhost:9000/auth/callback"
date_mode = "local"
storage_backend = "file"
file_store_path = "./athletes.json"
max_upload_size_mb = 25
analysis_model = "gpt-4o"

[production]
host = "localhost"
port = 9000
log_level = "debug"
logs_path = "/var/log/paceline/service.log"
log_to_stdout = false
sentry_enabled = true
prometheus_metrics_host = "localhost"
prometheus_metrics_port = "2112"
strava_base_url = "https://www.strava.com"
strava_redirect_url = "https://paceline.run/auth/callback"
date_mode = "local"
storage_backend = "sheets"
spreadsheet_id = "sheet-id-placeholder"
sheets_credentials_path = "/etc/paceline/sheets-credentials.json"
file_store_path = "/var/lib/paceline/athletes.json"
max_upload_size_mb = 25
analysis_model = "gpt-4o"
`

func TestLoadFromString(t *testing.T) {
	cfg, err := LoadFromString("development", testConfigContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.False(t, cfg.SentryEnabled)
	assert.Equal(t, "2112", cfg.PrometheusMetricsPort)
	assert.Equal(t, "https://www.strava.com", cfg.StravaBaseURL)
	assert.Equal(t, "http://localhost:9000/auth/callback", cfg.StravaRedirectURL)
	assert.Equal(t, "local", cfg.DateMode)
	assert.Equal(t, "file", cfg.StorageBackend)
	assert.Equal(t, "./athletes.json", cfg.FileStorePath)
	assert.Equal(t, int64(25), cfg.MaxUploadSizeMB)
	assert.Equal(t, "gpt-4o", cfg.AnalysisModel)

	cfg, err = LoadFromString("prod", testConfigContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "sheets", cfg.StorageBackend)
	assert.Equal(t, "sheet-id-placeholder", cfg.SpreadsheetID)
	assert.Equal(t, "/etc/paceline/sheets-credentials.json", cfg.SheetsCredentialsPath)
	assert.True(t, cfg.SentryEnabled)
}

func TestLoadFromString_unknownEnv(t *testing.T) {
	cfg, err := LoadFromString("staging", testConfigContent)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "unknown env")
}

func TestLoad_missingFile(t *testing.T) {
	cfg, err := Load("development", "/invalid/path/config.toml")
	require.Error(t, err)
	assert.Nil(t, cfg)
}
