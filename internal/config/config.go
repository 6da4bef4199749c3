// Package config loads service settings from defaults, an optional YAML
// file, environment variables and bound command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/api/option"
)

// EnvPrefix prefixes every environment variable, e.g. STATEMENT_IMPORT_LOG_LEVEL.
const EnvPrefix = "STATEMENT_IMPORT"

const (
	BackendMemory   = "memory"
	BackendBigQuery = "bigquery"
)

type Config struct {
	GCP        GCPConfig        `mapstructure:"gcp"`
	BigQuery   BigQueryConfig   `mapstructure:"bigquery"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Import     ImportConfig     `mapstructure:"import"`
	Store      StoreConfig      `mapstructure:"store"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Server     ServerConfig     `mapstructure:"server"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Log        LogConfig        `mapstructure:"log"`
}

type GCPConfig struct {
	Project         string `mapstructure:"project"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type BigQueryConfig struct {
	Dataset string `mapstructure:"dataset"`
}

type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// ExtractionConfig selects the Gemini backend. With an API key the Gemini
// API is used, otherwise Vertex AI in GCP.Project and Location.
type ExtractionConfig struct {
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Location string        `mapstructure:"location"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ImportConfig struct {
	PlaceholderCategory string `mapstructure:"placeholder_category"`
	MappingsFile        string `mapstructure:"mappings_file"`
	MaxBytes            int64  `mapstructure:"max_bytes"`

	// SessionTTL is how long an untouched import session is kept by the API.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// MemoryConfig seeds the directories of the in-memory backend.
type MemoryConfig struct {
	Accounts   []AccountSeed  `mapstructure:"accounts"`
	Categories []CategorySeed `mapstructure:"categories"`
}

type AccountSeed struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Currency string `mapstructure:"currency"`
}

type CategorySeed struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Parent string `mapstructure:"parent"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type JobsConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Loader wraps a viper instance so commands can bind flags before Load.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults and environment bindings.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variables the deployment already sets.
	_ = v.BindEnv("gcp.project", EnvPrefix+"_GCP_PROJECT", "GOOGLE_CLOUD_PROJECT")
	_ = v.BindEnv("storage.bucket", EnvPrefix+"_STORAGE_BUCKET", "GCS_BUCKET")
	_ = v.BindEnv("extraction.api_key", EnvPrefix+"_EXTRACTION_API_KEY", "GEMINI_API_KEY")

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gcp.project", "")
	v.SetDefault("gcp.credentials_file", "")
	v.SetDefault("bigquery.dataset", "finance")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("extraction.model", "gemini-2.5-flash")
	v.SetDefault("extraction.api_key", "")
	v.SetDefault("extraction.location", "europe-west2")
	v.SetDefault("extraction.timeout", 2*time.Minute)
	v.SetDefault("import.placeholder_category", "uncategorized")
	v.SetDefault("import.mappings_file", "")
	v.SetDefault("import.max_bytes", 20<<20)
	v.SetDefault("import.session_ttl", 24*time.Hour)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("memory.accounts", []map[string]string{})
	v.SetDefault("memory.categories", []map[string]string{})
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 3*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("jobs.queue_size", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads path, if set, and returns the merged, validated configuration.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return &cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMemory:
	case BackendBigQuery:
		if c.GCP.Project == "" {
			errs = append(errs, errors.New("gcp.project is required for the bigquery backend"))
		}
		if c.BigQuery.Dataset == "" {
			errs = append(errs, errors.New("bigquery.dataset is required for the bigquery backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", BackendMemory, BackendBigQuery, c.Store.Backend))
	}

	if c.Extraction.Timeout <= 0 {
		errs = append(errs, errors.New("extraction.timeout must be positive"))
	}
	if c.Import.PlaceholderCategory == "" {
		errs = append(errs, errors.New("import.placeholder_category must not be empty"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port must not be empty"))
	}
	if c.Jobs.QueueSize <= 0 {
		errs = append(errs, errors.New("jobs.queue_size must be positive"))
	}

	return errors.Join(errs...)
}

// ClientOptions returns the Google API options for the configured credentials.
func (c *Config) ClientOptions() []option.ClientOption {
	if c.GCP.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.GCP.CredentialsFile)}
}

// UseVertex reports whether extraction goes through Vertex AI.
func (c *Config) UseVertex() bool {
	return c.Extraction.APIKey == ""
}
