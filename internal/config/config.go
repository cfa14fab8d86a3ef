package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"heartprev/internal/errors"
)

const (
	defaultSnapshotSource   = "https://raw.githubusercontent.com/healthbiodatascientist/heart_health/refs/heads/main/heart_prev_mapped.csv"
	defaultTimeSeriesSource = "https://raw.githubusercontent.com/healthbiodatascientist/heart_health/refs/heads/main/heart_prev_timeseries.csv"
	defaultVideoURL         = "https://github.com/healthbiodatascientist/heart_health/raw/refs/heads/main/heart_prev_mapped_video.mp4"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Data      DataConfig      `yaml:"data"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

// APIConfig holds settings for the standalone JSON API binary
type APIConfig struct {
	Port string `yaml:"port"`
}

// DataConfig describes where the two datasets come from and how they are fetched.
// A source is either an http(s) URL or a local .csv/.xlsx path.
type DataConfig struct {
	SnapshotSource   string        `yaml:"snapshot_source"`
	TimeSeriesSource string        `yaml:"timeseries_source"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	// CacheTTL of zero fetches the datasets fresh on every request.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// DashboardConfig holds the initial control values and page assets
type DashboardConfig struct {
	DefaultHealthBoard string `yaml:"default_healthboard"`
	DefaultFactorX     string `yaml:"default_factor_x"`
	DefaultFactorY     string `yaml:"default_factor_y"`
	// HeatmapYear selects the year of the cross-board heatmap; zero means the latest year present.
	HeatmapYear int    `yaml:"heatmap_year"`
	MapHTMLPath string `yaml:"map_html_path"`
	VideoURL    string `yaml:"video_url"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    "8080",
			GinMode: "debug",
		},
		API: APIConfig{
			Port: "8081",
		},
		Data: DataConfig{
			SnapshotSource:   defaultSnapshotSource,
			TimeSeriesSource: defaultTimeSeriesSource,
			FetchTimeout:     15 * time.Second,
		},
		Dashboard: DashboardConfig{
			DefaultHealthBoard: "Ayrshire and Arran",
			DefaultFactorX:     "Rate_Hypertension",
			DefaultFactorY:     "Rate_Heart Failure",
			HeatmapYear:        2025,
			MapHTMLPath:        "heartprevmap.html",
			VideoURL:           defaultVideoURL,
		},
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile layers defaults, an optional YAML/JSON/TOML file and environment variables,
// in that order, and validates the result.
func LoadFile(path string) (*Config, error) {
	config := Default()

	if path != "" {
		if err := applyFile(config, path); err != nil {
			return nil, errors.Wrap(err, "failed to load configuration file")
		}
	}

	applyEnv(config)

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func applyFile(config *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(errors.ConfigInvalid(err.Error()), "read %s", path)
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}

	setString("server.port", &config.Server.Port)
	setString("server.gin_mode", &config.Server.GinMode)
	setString("api.port", &config.API.Port)
	setString("data.snapshot_source", &config.Data.SnapshotSource)
	setString("data.timeseries_source", &config.Data.TimeSeriesSource)
	setDuration("data.fetch_timeout", &config.Data.FetchTimeout)
	setDuration("data.cache_ttl", &config.Data.CacheTTL)
	setString("dashboard.default_healthboard", &config.Dashboard.DefaultHealthBoard)
	setString("dashboard.default_factor_x", &config.Dashboard.DefaultFactorX)
	setString("dashboard.default_factor_y", &config.Dashboard.DefaultFactorY)
	setString("dashboard.map_html_path", &config.Dashboard.MapHTMLPath)
	setString("dashboard.video_url", &config.Dashboard.VideoURL)
	if v.IsSet("dashboard.heatmap_year") {
		config.Dashboard.HeatmapYear = v.GetInt("dashboard.heatmap_year")
	}
	return nil
}

func applyEnv(config *Config) {
	config.Server.Port = getEnvOrDefault("PORT", config.Server.Port)
	config.Server.GinMode = getEnvOrDefault("GIN_MODE", config.Server.GinMode)
	config.API.Port = getEnvOrDefault("API_PORT", config.API.Port)

	config.Data.SnapshotSource = getEnvOrDefault("SNAPSHOT_SOURCE", config.Data.SnapshotSource)
	config.Data.TimeSeriesSource = getEnvOrDefault("TIMESERIES_SOURCE", config.Data.TimeSeriesSource)
	config.Data.FetchTimeout = getEnvDurationOrDefault("FETCH_TIMEOUT", config.Data.FetchTimeout)
	config.Data.CacheTTL = getEnvDurationOrDefault("CACHE_TTL", config.Data.CacheTTL)

	config.Dashboard.DefaultHealthBoard = getEnvOrDefault("DEFAULT_HEALTHBOARD", config.Dashboard.DefaultHealthBoard)
	config.Dashboard.HeatmapYear = getEnvIntOrDefault("HEATMAP_YEAR", config.Dashboard.HeatmapYear)
	config.Dashboard.MapHTMLPath = getEnvOrDefault("MAP_HTML_PATH", config.Dashboard.MapHTMLPath)
	config.Dashboard.VideoURL = getEnvOrDefault("VIDEO_URL", config.Dashboard.VideoURL)
}

func validateConfig(config *Config) error {
	if config.Data.SnapshotSource == "" {
		return errors.ConfigInvalid("snapshot source is required")
	}
	if config.Data.TimeSeriesSource == "" {
		return errors.ConfigInvalid("time series source is required")
	}
	if _, err := strconv.Atoi(config.Server.Port); err != nil {
		return errors.ConfigInvalid("server port must be numeric")
	}
	if _, err := strconv.Atoi(config.API.Port); err != nil {
		return errors.ConfigInvalid("api port must be numeric")
	}
	if config.Data.FetchTimeout <= 0 {
		return errors.ConfigInvalid("fetch timeout must be positive")
	}
	if config.Data.CacheTTL < 0 {
		return errors.ConfigInvalid("cache TTL cannot be negative")
	}
	if config.Dashboard.HeatmapYear < 0 {
		return errors.ConfigInvalid("heatmap year cannot be negative")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
