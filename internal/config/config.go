// Package config resolves the runtime configuration from flags, environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/naka-gawa/loc-stats/internal/gateway"
	"github.com/naka-gawa/loc-stats/internal/store"
	"github.com/naka-gawa/loc-stats/internal/usecase"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key read from the environment,
// e.g. stats-file is read from LOC_STATS_STATS_FILE.
const EnvPrefix = "LOC_STATS"

const (
	KeyStatsFile     = "stats-file"
	KeyAPIURL        = "api-url"
	KeyBytesPerLine  = "bytes-per-line"
	KeyRetryAttempts = "retry-attempts"
	KeyRetryDelay    = "retry-delay"
	KeyVerbose       = "verbose"
	KeyNoColor       = "no-color"
)

// TokenEnvVars are checked in order; the first non-empty one supplies the token.
var TokenEnvVars = []string{"GH_TOKEN", "GITHUB_TOKEN"}

// Config holds the application configuration.
type Config struct {
	Token string
	// TokenEnv is the variable the token was read from, empty when there is no token.
	TokenEnv      string
	StatsFile     string
	APIURL        string
	BytesPerLine  int
	RetryAttempts int
	RetryDelay    time.Duration
	Verbose       bool
	NoColor       bool
}

// NewViper returns a viper instance with defaults and environment binding set up.
// Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyStatsFile, store.DefaultPath)
	v.SetDefault(KeyAPIURL, "")
	v.SetDefault(KeyBytesPerLine, usecase.DefaultBytesPerLine)
	v.SetDefault(KeyRetryAttempts, gateway.DefaultRetryAttempts)
	v.SetDefault(KeyRetryDelay, gateway.DefaultRetryDelay)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyNoColor, false)
	return v
}

// LoadDotEnv loads path into the process environment when it exists.
// Variables that are already set are not overridden.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load builds and validates a Config. lookupEnv is normally os.LookupEnv.
func Load(v *viper.Viper, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{
		StatsFile:     v.GetString(KeyStatsFile),
		APIURL:        v.GetString(KeyAPIURL),
		BytesPerLine:  v.GetInt(KeyBytesPerLine),
		RetryAttempts: v.GetInt(KeyRetryAttempts),
		RetryDelay:    v.GetDuration(KeyRetryDelay),
		Verbose:       v.GetBool(KeyVerbose),
		NoColor:       v.GetBool(KeyNoColor),
	}
	cfg.Token, cfg.TokenEnv = resolveToken(lookupEnv)

	if cfg.StatsFile == "" {
		return nil, fmt.Errorf("%s must not be empty", KeyStatsFile)
	}
	if cfg.BytesPerLine <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", KeyBytesPerLine, cfg.BytesPerLine)
	}
	if cfg.RetryAttempts < 1 {
		return nil, fmt.Errorf("%s must be at least 1, got %d", KeyRetryAttempts, cfg.RetryAttempts)
	}
	if cfg.RetryDelay < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %s", KeyRetryDelay, cfg.RetryDelay)
	}
	return cfg, nil
}

func resolveToken(lookupEnv func(string) (string, bool)) (token, from string) {
	for _, name := range TokenEnvVars {
		if value, ok := lookupEnv(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), name
		}
	}
	return "", ""
}
