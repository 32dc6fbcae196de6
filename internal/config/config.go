// Package config loads plagscan configuration and sets up logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Scorer backends.
const (
	ScorerLexical   = "lexical"
	ScorerEmbedding = "embedding"
)

// Embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	Port           string `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	// Filesystem
	WorkDir    string `yaml:"work_dir"`
	ResultsDir string `yaml:"results_dir"`

	// Archive extraction
	MaxEntries         int   `yaml:"max_entries"`
	MaxEntryBytes      int64 `yaml:"max_entry_bytes"`
	AbortOnCopyFailure bool  `yaml:"abort_on_copy_failure"`

	// Scoring
	Scorer         string  `yaml:"scorer"`
	EmbedProvider  string  `yaml:"embed_provider"`
	EmbedModel     string  `yaml:"embed_model"`
	OllamaHost     string  `yaml:"ollama_host"`
	OpenAIAPIKey   string  `yaml:"-"`
	MaxInputChars  int     `yaml:"max_input_chars"`
	Workers        int     `yaml:"workers"`
	DefaultPercent float64 `yaml:"default_threshold"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:           "5000",
		MaxUploadBytes: 100 << 20,
		WorkDir:        filepath.Join(os.TempDir(), "plagscan"),
		ResultsDir:     "results",
		MaxEntries:     10000,
		MaxEntryBytes:  64 << 20,
		Scorer:         ScorerLexical,
		EmbedProvider:  ProviderOllama,
		EmbedModel:     "all-minilm:l6-v2",
		OllamaHost:     "http://localhost:11434",
		MaxInputChars:  2048,
		Workers:        1,
		DefaultPercent: 70,
		LogFile:        filepath.Join(os.TempDir(), "plagscan.log"),
		LogLevel:       slog.LevelInfo,
	}
}

// Load reads configuration from a .env file (if present), the YAML file named by
// PLAGSCAN_CONFIG (if set) and environment variables, in increasing priority.
func Load() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("PLAGSCAN_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file struct {
		Config   `yaml:",inline"`
		LogLevel string `yaml:"log_level"`
	}
	file.Config = *cfg
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	*cfg = file.Config
	if file.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(file.LogLevel)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PLAGSCAN_PORT", getEnv("PORT", cfg.Port))
	cfg.WorkDir = getEnv("PLAGSCAN_WORK_DIR", cfg.WorkDir)
	cfg.ResultsDir = getEnv("PLAGSCAN_RESULTS_DIR", cfg.ResultsDir)
	cfg.Scorer = strings.ToLower(getEnv("PLAGSCAN_SCORER", cfg.Scorer))
	cfg.EmbedProvider = strings.ToLower(getEnv("PLAGSCAN_EMBED_PROVIDER", cfg.EmbedProvider))
	cfg.EmbedModel = getEnv("PLAGSCAN_EMBED_MODEL", cfg.EmbedModel)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.LogFile = getEnv("PLAGSCAN_LOG_FILE", cfg.LogFile)
	if lvl := os.Getenv("PLAGSCAN_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = parseLogLevel(lvl)
	}

	var err error
	if cfg.MaxInputChars, err = getEnvInt("PLAGSCAN_MAX_INPUT_CHARS", cfg.MaxInputChars); err != nil {
		return err
	}
	if cfg.Workers, err = getEnvInt("PLAGSCAN_WORKERS", cfg.Workers); err != nil {
		return err
	}
	if cfg.MaxEntries, err = getEnvInt("PLAGSCAN_MAX_ENTRIES", cfg.MaxEntries); err != nil {
		return err
	}
	mb, err := getEnvInt("PLAGSCAN_MAX_UPLOAD_MB", int(cfg.MaxUploadBytes>>20))
	if err != nil {
		return err
	}
	cfg.MaxUploadBytes = int64(mb) << 20
	if mb, err = getEnvInt("PLAGSCAN_MAX_ENTRY_MB", int(cfg.MaxEntryBytes>>20)); err != nil {
		return err
	}
	cfg.MaxEntryBytes = int64(mb) << 20
	if cfg.AbortOnCopyFailure, err = getEnvBool("PLAGSCAN_ABORT_ON_COPY_FAILURE", cfg.AbortOnCopyFailure); err != nil {
		return err
	}
	if val := os.Getenv("PLAGSCAN_DEFAULT_THRESHOLD"); val != "" {
		pct, err := strconv.ParseFloat(val, 64)
		if err != nil || pct < 0 || pct > 100 {
			return fmt.Errorf("PLAGSCAN_DEFAULT_THRESHOLD: invalid percentage %q", val)
		}
		cfg.DefaultPercent = pct
	}

	switch cfg.Scorer {
	case ScorerLexical, ScorerEmbedding:
	default:
		return fmt.Errorf("unknown scorer %q (want %s or %s)", cfg.Scorer, ScorerLexical, ScorerEmbedding)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, val)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, val)
	}
	return b, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
