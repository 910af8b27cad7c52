package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"speech-analytics-go/internal/scoring"
	"speech-analytics-go/internal/types"
)

type Config struct {
	Env            string
	LogLevel       string
	Port           string
	HistoryBackend string // file, sqlite or memory
	HistoryDir     string
	HistoryDSN     string
	HistoryRetry   time.Duration
	ScoringPath    string // empty when defaults are in use
	Scoring        scoring.Config
}

// Load reads .env (if present), the environment and the scoring YAML file.
// The scoring file is SCORING_CONFIG, else config/<CONFIG_ENV>/scoring.yaml
// if it exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Env:            os.Getenv("ENVIRONMENT"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		Port:           envOr("PORT", "8080"),
		HistoryBackend: envOr("HISTORY_BACKEND", "file"),
		HistoryDir:     envOr("HISTORY_DIR", "history"),
		HistoryDSN:     envOr("HISTORY_DSN", "history.db"),
		Scoring:        scoring.DefaultConfig(),
	}
	retry, err := time.ParseDuration(envOr("HISTORY_RETRY", "2s"))
	if err != nil {
		return nil, fmt.Errorf("HISTORY_RETRY: %w", err)
	}
	c.HistoryRetry = retry

	path := os.Getenv("SCORING_CONFIG")
	if path == "" {
		guess := filepath.Join("config", envOr("CONFIG_ENV", "dev"), "scoring.yaml")
		if _, err := os.Stat(guess); err == nil {
			path = guess
		}
	}
	if path != "" {
		sc, err := LoadScoring(path, c.Scoring)
		if err != nil {
			return nil, err
		}
		c.Scoring = sc
		c.ScoringPath = path
	}
	if v := os.Getenv("PAUSE_THRESHOLD_S"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &types.InvalidConfigError{Field: "pause_threshold_s", Message: err.Error()}
		}
		c.Scoring.PauseThreshold = f
	}
	if err := c.Scoring.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadScoring applies the YAML file at path on top of base.
func LoadScoring(path string, base scoring.Config) (scoring.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read scoring config: %w", err)
	}
	return ParseScoring(data, base)
}

// ParseScoring applies YAML scoring options on top of base and validates
// the result.
func ParseScoring(data []byte, base scoring.Config) (scoring.Config, error) {
	var o scoring.Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return base, &types.InvalidConfigError{Field: "yaml", Message: err.Error()}
	}
	return o.Apply(base)
}

var errUnknownBackend = errors.New("unknown history backend")

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
