package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gopattern/domain/discovery"
	"gopattern/internal/errors"
)

// Config represents the complete process configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Log       LogConfig
	Discovery DiscoveryConfig
}

// DatabaseConfig holds database connection settings. An empty URL disables persistence.
type DatabaseConfig struct {
	URL            string
	ConnectTimeout time.Duration
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	// DataDir is the only directory API requests may read source files from
	DataDir string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// DiscoveryConfig holds engine defaults applied to every run started by this process
type DiscoveryConfig struct {
	Seed        int64
	MaxResults  int
	Folds       int
	OptionsFile string
}

// LoadDotEnv loads .env files into the environment. Missing files are ignored; variables
// already set are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			ConnectTimeout: getEnvDurationOrDefault("DATABASE_CONNECT_TIMEOUT", 10*time.Second),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "8080"),
			ReadTimeout:     getEnvDurationOrDefault("READ_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
			DataDir:         getEnvOrDefault("DATA_DIR", "data"),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "INFO"),
		},
		Discovery: DiscoveryConfig{
			Seed:        getEnvInt64OrDefault("DISCOVERY_SEED", 42),
			MaxResults:  getEnvIntOrDefault("DISCOVERY_MAX_RESULTS", 0),
			Folds:       getEnvIntOrDefault("DISCOVERY_FOLDS", 0),
			OptionsFile: os.Getenv("DISCOVERY_OPTIONS_FILE"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT cannot be empty")
	}
	if config.Discovery.MaxResults < 0 {
		return errors.ConfigInvalid("DISCOVERY_MAX_RESULTS must not be negative")
	}
	if config.Discovery.Folds < 0 || config.Discovery.Folds == 1 {
		return errors.ConfigInvalid("DISCOVERY_FOLDS must be at least 2")
	}
	return nil
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	return nil
}

// Options builds the engine options for a run: the YAML options file first, then the
// environment defaults for anything the file leaves unset.
func (c *Config) Options() (discovery.Options, error) {
	opts := discovery.Options{}
	if c.Discovery.OptionsFile != "" {
		var err error
		if opts, err = LoadOptionsFile(c.Discovery.OptionsFile); err != nil {
			return discovery.Options{}, err
		}
	}
	if opts.RandomSeed == nil {
		opts = opts.WithSeed(c.Discovery.Seed)
	}
	if opts.ApplyCorrection == nil {
		opts = opts.WithCorrection(true)
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = c.Discovery.MaxResults
	}
	if opts.CrossValidationFolds == 0 {
		opts.CrossValidationFolds = c.Discovery.Folds
	}
	return opts, nil
}

// LoadOptionsFile decodes engine options from YAML. Unknown keys are rejected.
func LoadOptionsFile(path string) (discovery.Options, error) {
	var opts discovery.Options
	if err := decodeYAMLFile(path, &opts); err != nil {
		return discovery.Options{}, err
	}
	return opts, nil
}

// LoadSchemaFile decodes a dataset schema (outcome, features with kinds, contexts) from YAML.
func LoadSchemaFile(path string) (discovery.Schema, error) {
	var schema discovery.Schema
	if err := decodeYAMLFile(path, &schema); err != nil {
		return discovery.Schema{}, err
	}
	for i, f := range schema.Features {
		kind, err := discovery.ParseFeatureKind(string(f.Kind))
		if err != nil {
			return discovery.Schema{}, errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "feature %q", f.Name))
		}
		schema.Features[i].Kind = kind
	}
	return schema, nil
}

// WriteSchemaFile encodes a schema as YAML.
func WriteSchemaFile(path string, schema discovery.Schema) error {
	var buf bytes.Buffer
	if err := EncodeSchema(&buf, schema); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// EncodeSchema writes a schema as YAML with two-space indentation.
func EncodeSchema(w io.Writer, schema discovery.Schema) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(schema); err != nil {
		return err
	}
	return enc.Close()
}

func decodeYAMLFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "failed to read %s", path))
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "failed to parse %s", path))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
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
