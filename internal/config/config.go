package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kpiscout/internal/errors"
	"kpiscout/internal/factor"
	"kpiscout/internal/insight"
	"kpiscout/internal/profiling"
	"kpiscout/internal/roles"
)

// Config represents the complete application configuration
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Analysis    AnalysisConfig
	Recommender RecommenderConfig
	Watch       WatchConfig
	Logging     LoggingConfig
}

// DatabaseConfig selects the results store. A non-empty URL means Postgres,
// otherwise the embedded SQLite file at SQLitePath is used.
type DatabaseConfig struct {
	URL        string
	SQLitePath string
}

// Driver returns the sqlx driver name for the configured store
func (d DatabaseConfig) Driver() string {
	if d.URL != "" {
		return "postgres"
	}
	return "sqlite"
}

// DSN returns the data source name for the configured store
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return d.SQLitePath
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port                  string
	GinMode               string
	MaxConcurrentAnalyses int
	MaxUploadMB           int
	ShutdownTimeout       time.Duration
}

// MaxUploadBytes returns the upload cap in bytes
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// AnalysisConfig holds pipeline defaults and heuristic constants
type AnalysisConfig struct {
	DefaultFactors int
	HeuristicsFile string
	Heuristics     HeuristicsConfig
}

// HeuristicsConfig collects every tunable constant of the analysis core
type HeuristicsConfig struct {
	Profiler profiling.Config `yaml:"profiler"`
	Roles    roles.Config     `yaml:"roles"`
	Factor   factor.Config    `yaml:"factor"`
	Selector insight.Config   `yaml:"selector"`
}

// DefaultHeuristics returns the stock constants of every stage
func DefaultHeuristics() HeuristicsConfig {
	return HeuristicsConfig{
		Profiler: profiling.DefaultConfig(),
		Roles:    roles.DefaultConfig(),
		Factor:   factor.DefaultConfig(),
		Selector: insight.DefaultConfig(),
	}
}

// RecommenderConfig points at the optional card recommender artifact
type RecommenderConfig struct {
	ModelPath string
	Threshold float64
	TopN      int
}

// WatchConfig holds the watch-folder settings
type WatchConfig struct {
	Dir      string
	Debounce time.Duration
}

// LoggingConfig holds zap settings
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	heuristics, err := loadHeuristics(os.Getenv("HEURISTICS_FILE"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load heuristics configuration")
	}

	config := &Config{
		Database: DatabaseConfig{
			URL:        getEnvOrDefault("DATABASE_URL", ""),
			SQLitePath: getEnvOrDefault("SQLITE_PATH", "kpiscout.db"),
		},
		Server: ServerConfig{
			Port:                  getEnvOrDefault("PORT", "8080"),
			GinMode:               getEnvOrDefault("GIN_MODE", "release"),
			MaxConcurrentAnalyses: getEnvIntOrDefault("MAX_CONCURRENT_ANALYSES", 4),
			MaxUploadMB:           getEnvIntOrDefault("MAX_UPLOAD_MB", 50),
			ShutdownTimeout:       getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Analysis: AnalysisConfig{
			DefaultFactors: getEnvIntOrDefault("DEFAULT_FACTORS", 3),
			HeuristicsFile: os.Getenv("HEURISTICS_FILE"),
			Heuristics:     heuristics,
		},
		Recommender: RecommenderConfig{
			ModelPath: getEnvOrDefault("RECOMMENDER_MODEL", ""),
			Threshold: getEnvFloatOrDefault("RECOMMENDER_THRESHOLD", 0.35),
			TopN:      getEnvIntOrDefault("RECOMMENDER_TOP_N", 10),
		},
		Watch: WatchConfig{
			Dir:      getEnvOrDefault("WATCH_DIR", ""),
			Debounce: getEnvDurationOrDefault("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "INFO"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// loadHeuristics overlays the YAML file, when given, on the defaults. Keys
// absent from the file keep their default values.
func loadHeuristics(path string) (HeuristicsConfig, error) {
	h := DefaultHeuristics()
	if path == "" {
		return h, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return h, errors.Wrapf(err, "read %s", path)
	}
	if err := ParseHeuristics(raw, &h); err != nil {
		return h, err
	}
	return h, nil
}

// ParseHeuristics decodes YAML into h in place
func ParseHeuristics(raw []byte, h *HeuristicsConfig) error {
	if err := yaml.Unmarshal(raw, h); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

func validateConfig(config *Config) error {
	if config.Database.DSN() == "" {
		return errors.ConfigInvalid("DATABASE_URL or SQLITE_PATH is required")
	}
	if config.Database.URL != "" && !strings.HasPrefix(config.Database.URL, "postgres") {
		return errors.ConfigInvalid("DATABASE_URL must be a postgres:// URL")
	}
	if config.Server.MaxConcurrentAnalyses < 1 {
		return errors.ConfigInvalid("MAX_CONCURRENT_ANALYSES must be at least 1")
	}
	if config.Server.MaxUploadMB < 1 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be at least 1")
	}
	if config.Analysis.DefaultFactors < 1 {
		return errors.ConfigInvalid("DEFAULT_FACTORS must be at least 1")
	}
	if t := config.Recommender.Threshold; t < 0 || t > 1 {
		return errors.ConfigInvalid("RECOMMENDER_THRESHOLD must be within [0, 1]")
	}
	if config.Recommender.TopN < 1 {
		return errors.ConfigInvalid("RECOMMENDER_TOP_N must be at least 1")
	}
	if p := config.Analysis.Heuristics.Profiler.ParseThreshold; p <= 0 || p > 1 {
		return errors.ConfigInvalid("profiler.parse_threshold must be within (0, 1]")
	}
	if config.Analysis.Heuristics.Factor.MinColumns < 2 {
		return errors.ConfigInvalid("factor.min_columns must be at least 2")
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

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
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
