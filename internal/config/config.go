package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAPIURL           = "http://localhost:5000"
	defaultHTTPAddr         = ":8080"
	defaultDBPath           = "./data/roadcams.db"
	defaultFrontendDist     = "./frontend/dist"
	defaultHistoryRetention = 7 * 24 * time.Hour
)

// Config stores runtime settings from environment variables and an optional
// config file. Environment wins over the file.
type Config struct {
	APIURL           string
	HTTPAddr         string
	DBPath           string
	FrontendDist     string
	LogLevel         slog.Level
	HistoryRetention time.Duration
}

// Load builds Config using stable defaults. configFile may be empty.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetDefault("api_url", defaultAPIURL)
	v.SetDefault("http_addr", defaultHTTPAddr)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("frontend_dist", defaultFrontendDist)
	v.SetDefault("log_level", "info")
	v.SetDefault("history_retention", defaultHistoryRetention.String())
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	return Config{
		APIURL:           getString(v, "api_url", defaultAPIURL),
		HTTPAddr:         getString(v, "http_addr", defaultHTTPAddr),
		DBPath:           getString(v, "db_path", defaultDBPath),
		FrontendDist:     getString(v, "frontend_dist", defaultFrontendDist),
		LogLevel:         parseLogLevel(v.GetString("log_level")),
		HistoryRetention: parseDuration(v.GetString("history_retention"), defaultHistoryRetention),
	}, nil
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func getString(v *viper.Viper, key string, fallback string) string {
	if trimmed := strings.TrimSpace(v.GetString(key)); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
