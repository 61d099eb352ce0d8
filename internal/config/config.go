package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// set from the env argument on load, not from the TOML file
	Environment string

	Host string `toml:"host"`
	Port int    `toml:"port"`

	// logging
	LogLevel    string `toml:"log_level"`
	LogsPath    string `toml:"logs_path"`
	LogToStdout bool   `toml:"log_to_stdout"`

	SentryEnabled bool `toml:"sentry_enabled"`

	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// strava
	StravaBaseURL     string `toml:"strava_base_url"`
	StravaRedirectURL string `toml:"strava_redirect_url"`
	// local -> activities filtered by the athlete's local start date,
	// utc -> filtered by the UTC start date
	DateMode string `toml:"date_mode"`

	// credential / stats storage: "sheets" or "file"
	StorageBackend        string `toml:"storage_backend"`
	SpreadsheetID         string `toml:"spreadsheet_id"`
	SheetsCredentialsPath string `toml:"sheets_credentials_path"`
	FileStorePath         string `toml:"file_store_path"`

	// fit file uploads
	MaxUploadSizeMB int64 `toml:"max_upload_size_mb"`

	// llm analysis
	AnalysisModel string `toml:"analysis_model"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func Load(env, path string) (*Config, error) {
	configFileContent, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg, err := LoadFromString(env, string(configFileContent))
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFromString(env, configContent string) (*Config, error) {
	var configToml Toml
	if _, err := toml.Decode(configContent, &configToml); err != nil {
		return nil, fmt.Errorf("decode config content: %w", err)
	}

	cfg, err := configToml.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env %s is empty", env)
	}

	return cfg, nil
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		if t.Development != nil {
			t.Development.Environment = "development"
		}
		return t.Development, nil
	case "prod", "production":
		if t.Production != nil {
			t.Production.Environment = "production"
		}
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}
