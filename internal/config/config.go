// Package config provides application configuration management with support for
// command-line flags, environment variables, .env files and an optional TOML file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/DokushoHQ/backends/internal/domain"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig       `toml:"app"`
	Logger    LoggerConfig    `toml:"logger"`
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Queue     QueueConfig     `toml:"queue"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Storage   StorageConfig   `toml:"storage"`
	Search    SearchConfig    `toml:"search"`
	Sources   SourcesConfig   `toml:"sources"`
	Deletion  DeletionConfig  `toml:"deletion"`
	Images    ImagesConfig    `toml:"images"`

	// Path of the TOML file the config was read from, empty when none.
	File string `toml:"-"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `toml:"environment"`
	// DataPath is the base directory for the catalog, job store, search index and lock file.
	DataPath string `toml:"data_path"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or pretty, empty picks from environment
}

// ServerConfig holds the admin HTTP server configuration.
type ServerConfig struct {
	Port         string        `toml:"port"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	IdleTimeout  time.Duration `toml:"idle_timeout"`
	CORSOrigins  []string      `toml:"cors_origins"`
}

// DatabaseConfig holds persistence paths. Empty paths derive from App.DataPath.
type DatabaseConfig struct {
	CatalogPath string `toml:"catalog_path"` // sqlite file
	JobsPath    string `toml:"jobs_path"`    // badger directory
}

// QueueConfig holds job runtime tuning.
type QueueConfig struct {
	PromoteInterval    time.Duration `toml:"promote_interval"`
	CompletedRetention time.Duration `toml:"completed_retention"`
	FailedRetention    time.Duration `toml:"failed_retention"`
}

// SchedulerConfig holds update scheduler settings.
type SchedulerConfig struct {
	Enabled         bool          `toml:"enabled"`
	FetchLatestCron string        `toml:"fetch_latest_cron"`
	RefreshAllCron  string        `toml:"refresh_all_cron"`
	RetryPagesCron  string        `toml:"retry_pages_cron"`
	MaxPages        int           `toml:"max_pages"`
	FingerprintSize int           `toml:"fingerprint_size"`
	RecentlyChecked time.Duration `toml:"recently_checked"`
	RefreshSpread   time.Duration `toml:"refresh_spread"`
	RetryBatchSize  int           `toml:"retry_batch_size"`
	RetryStagger    time.Duration `toml:"retry_stagger"`
}

// StorageConfig selects the object store backend.
type StorageConfig struct {
	Backend   string   `toml:"backend"` // local or s3
	LocalPath string   `toml:"local_path"`
	PublicURL string   `toml:"public_url"`
	S3        S3Config `toml:"s3"`
}

// S3Config holds S3-compatible bucket settings.
type S3Config struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// SearchConfig holds search index settings.
type SearchConfig struct {
	IndexPath string `toml:"index_path"`
}

// SourcesConfig holds catalog adapter settings. Languages and ForceDisabled
// are reloaded at runtime when the config file changes.
type SourcesConfig struct {
	Languages        []string      `toml:"languages"`
	PrimaryLanguage  string        `toml:"primary_language"`
	FallbackLanguage string        `toml:"fallback_language"`
	ForceDisabled    []string      `toml:"force_disabled"`
	SuwayomiURL      string        `toml:"suwayomi_url"`
	// SuwayomiDisabled lists Suwayomi catalog ids never exposed as sources.
	SuwayomiDisabled []string      `toml:"suwayomi_disabled"`
	ByparrURL        string        `toml:"byparr_url"`
	UserAgent        string        `toml:"user_agent"`
	Timeout          time.Duration `toml:"timeout"`
}

// DeletionConfig holds the soft-delete grace period.
type DeletionConfig struct {
	GraceDays int `toml:"grace_days"`
}

// ImagesConfig holds page and cover transcoding settings.
type ImagesConfig struct {
	Quality          float32 `toml:"quality"`
	DownloadAttempts int     `toml:"download_attempts"`
	PageConcurrency  int     `toml:"page_concurrency"`
	MaxGIFBytes      int64   `toml:"max_gif_bytes"`
}

// Default returns the configuration used when nothing overrides a value.
func Default() Config {
	return Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Queue: QueueConfig{
			PromoteInterval:    time.Second,
			CompletedRetention: 7 * 24 * time.Hour,
			FailedRetention:    30 * 24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			FetchLatestCron: "*/30 * * * *",
			RefreshAllCron:  "0 3 * * 0",
			RetryPagesCron:  "0 */6 * * *",
			MaxPages:        5,
			FingerprintSize: 50,
			RecentlyChecked: 15 * time.Minute,
			RefreshSpread:   24 * time.Hour,
			RetryBatchSize:  100,
			RetryStagger:    5 * time.Second,
		},
		Storage: StorageConfig{Backend: "local"},
		Sources: SourcesConfig{
			Languages:        []string{string(domain.LanguageEn)},
			PrimaryLanguage:  string(domain.LanguageEn),
			FallbackLanguage: string(domain.LanguageJpRo),
			UserAgent:        "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0",
			Timeout:          30 * time.Second,
		},
		Deletion: DeletionConfig{GraceDays: 7},
		Images: ImagesConfig{
			Quality:          80,
			DownloadAttempts: 5,
			PageConcurrency:  2,
			MaxGIFBytes:      10 << 20,
		},
	}
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. TOML file (--config or DOKUSHO_CONFIG).
// 5. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("dokusho", flag.ContinueOnError)

	configFile := fs.String("config", "", "Path to TOML config file")
	envFile := fs.String("env-file", ".env", "Path to .env file")
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	dataPath := fs.String("data-path", "", "Base path for persistent data")
	port := fs.String("port", "", "Admin server port (default: 8080)")
	storageBackend := fs.String("storage", "", "Object storage backend (local, s3)")
	scheduler := fs.String("scheduler", "", "Run the update scheduler (default: true)")
	languages := fs.String("languages", "", "Comma separated enabled languages")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := Default()

	path := getConfigValue(*configFile, "DOKUSHO_CONFIG", "")
	if path != "" {
		expanded, err := expandPath(path, "")
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		if err := decodeFile(expanded, &cfg); err != nil {
			return nil, err
		}
		cfg.File = expanded
	}

	cfg.App.Environment = getConfigValue(*env, "ENV", cfg.App.Environment)
	cfg.App.DataPath = getConfigValue(*dataPath, "DATA_PATH", cfg.App.DataPath)
	cfg.Logger.Level = getConfigValue(*logLevel, "LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Format = getConfigValue(*logFormat, "LOG_FORMAT", cfg.Logger.Format)
	cfg.Server.Port = getConfigValue(*port, "SERVER_PORT", cfg.Server.Port)
	cfg.Database.CatalogPath = getConfigValue("", "CATALOG_PATH", cfg.Database.CatalogPath)
	cfg.Database.JobsPath = getConfigValue("", "JOBS_PATH", cfg.Database.JobsPath)
	cfg.Search.IndexPath = getConfigValue("", "SEARCH_INDEX_PATH", cfg.Search.IndexPath)

	cfg.Scheduler.Enabled = getBoolConfigValue(*scheduler, "SCHEDULER_ENABLED", cfg.Scheduler.Enabled)
	cfg.Scheduler.FetchLatestCron = getConfigValue("", "FETCH_LATEST_CRON", cfg.Scheduler.FetchLatestCron)
	cfg.Scheduler.RefreshAllCron = getConfigValue("", "REFRESH_ALL_CRON", cfg.Scheduler.RefreshAllCron)
	cfg.Scheduler.RetryPagesCron = getConfigValue("", "RETRY_PAGES_CRON", cfg.Scheduler.RetryPagesCron)

	cfg.Storage.Backend = getConfigValue(*storageBackend, "STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.LocalPath = getConfigValue("", "STORAGE_LOCAL_PATH", cfg.Storage.LocalPath)
	cfg.Storage.PublicURL = getConfigValue("", "STORAGE_PUBLIC_URL", cfg.Storage.PublicURL)
	cfg.Storage.S3.Endpoint = getConfigValue("", "S3_ENDPOINT", cfg.Storage.S3.Endpoint)
	cfg.Storage.S3.Region = getConfigValue("", "S3_REGION", cfg.Storage.S3.Region)
	cfg.Storage.S3.Bucket = getConfigValue("", "S3_BUCKET", cfg.Storage.S3.Bucket)
	cfg.Storage.S3.AccessKeyID = getConfigValue("", "S3_ACCESS_KEY_ID", cfg.Storage.S3.AccessKeyID)
	cfg.Storage.S3.SecretAccessKey = getConfigValue("", "S3_SECRET_ACCESS_KEY", cfg.Storage.S3.SecretAccessKey)

	if v := getConfigValue(*languages, "ENABLED_LANGUAGES", ""); v != "" {
		cfg.Sources.Languages = splitList(v)
	}
	if v := getConfigValue("", "FORCE_DISABLED_SOURCES", ""); v != "" {
		cfg.Sources.ForceDisabled = splitList(v)
	}
	cfg.Sources.PrimaryLanguage = getConfigValue("", "PRIMARY_LANGUAGE", cfg.Sources.PrimaryLanguage)
	cfg.Sources.FallbackLanguage = getConfigValue("", "FALLBACK_LANGUAGE", cfg.Sources.FallbackLanguage)
	cfg.Sources.SuwayomiURL = getConfigValue("", "SUWAYOMI_URL", cfg.Sources.SuwayomiURL)
	if v := getConfigValue("", "SUWAYOMI_DISABLED_SOURCES", ""); v != "" {
		cfg.Sources.SuwayomiDisabled = splitList(v)
	}
	cfg.Sources.ByparrURL = getConfigValue("", "BYPARR_URL", cfg.Sources.ByparrURL)

	cfg.Deletion.GraceDays = getIntConfigValue("", "DELETE_GRACE_DAYS", cfg.Deletion.GraceDays)

	durations := []struct {
		envKey string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout},
		{"SOURCE_TIMEOUT", &cfg.Sources.Timeout},
	}
	for _, d := range durations {
		raw := getConfigValue("", d.envKey, "")
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.target = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 storage backend")
		}
		if c.Storage.PublicURL == "" {
			return errors.New("STORAGE_PUBLIC_URL is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be local or s3)", c.Storage.Backend)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"fetch latest cron": c.Scheduler.FetchLatestCron,
		"refresh all cron":  c.Scheduler.RefreshAllCron,
		"retry pages cron":  c.Scheduler.RetryPagesCron,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}

	if c.Scheduler.MaxPages < 1 {
		return errors.New("scheduler max pages must be at least 1")
	}
	if c.Scheduler.FingerprintSize < 1 {
		return errors.New("scheduler fingerprint size must be at least 1")
	}
	if c.Deletion.GraceDays < 0 {
		return errors.New("deletion grace days cannot be negative")
	}

	for _, l := range c.Sources.Languages {
		if !domain.Language(l).Valid() {
			return fmt.Errorf("invalid language: %s", l)
		}
	}

	return nil
}

// LanguagePolicy returns the multi-language resolution policy for the sources section.
func (c *Config) LanguagePolicy() domain.LanguagePolicy {
	return c.Sources.LanguagePolicy()
}

// EnabledLanguages returns the configured languages, skipping unknown ones.
func (s SourcesConfig) EnabledLanguages() []domain.Language {
	enabled := make([]domain.Language, 0, len(s.Languages))
	for _, l := range s.Languages {
		if lang := domain.Language(l); lang.Valid() {
			enabled = append(enabled, lang)
		}
	}
	return enabled
}

// LanguagePolicy returns the multi-language resolution policy.
func (s SourcesConfig) LanguagePolicy() domain.LanguagePolicy {
	return domain.LanguagePolicy{
		Enabled:  s.EnabledLanguages(),
		Primary:  domain.Language(s.PrimaryLanguage),
		Fallback: domain.Language(s.FallbackLanguage),
	}
}

// GracePeriod returns the soft-delete grace period.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Deletion.GraceDays) * 24 * time.Hour
}

// LockPath is the instance lock file guarding the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.App.DataPath, "dokusho.lock")
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path) //#nosec G304 -- config path is operator supplied
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data directory and every path derived from it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.App.DataPath, filepath.Join(homeDir, ".dokusho"))
	if err != nil {
		return err
	}
	c.App.DataPath = base

	derived := []struct {
		target *string
		def    string
	}{
		{&c.Database.CatalogPath, filepath.Join(base, "catalog.db")},
		{&c.Database.JobsPath, filepath.Join(base, "jobs")},
		{&c.Search.IndexPath, filepath.Join(base, "search")},
		{&c.Storage.LocalPath, filepath.Join(base, "objects")},
	}
	for _, d := range derived {
		expanded, err := expandPath(*d.target, d.def)
		if err != nil {
			return err
		}
		*d.target = expanded
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getConfigValue returns the first non-empty value from flag, env var, or fallback.
func getConfigValue(flagValue, envKey, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return fallback
}

// getBoolConfigValue returns a bool from flag, env var, or fallback.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, fallback bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return fallback
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or fallback.
func getIntConfigValue(flagValue, envKey string, fallback int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return fallback
	}
	v, err := strconv.Atoi(strValue)
	if err != nil {
		return fallback
	}
	return v
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- env file path is operator supplied
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
