package spresso

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/spresso/spresso-go/adapters"
)

// Environment selects the collector deployment a client reports to.
type Environment int

const (
	EnvironmentLocal Environment = iota
	EnvironmentDev
	EnvironmentStaging
	EnvironmentProd
)

var environmentNames = map[Environment]string{
	EnvironmentLocal:   "local",
	EnvironmentDev:     "dev",
	EnvironmentStaging: "staging",
	EnvironmentProd:    "prod",
}

var defaultServerURLs = map[Environment]string{
	EnvironmentLocal:   "http://localhost:3000",
	EnvironmentDev:     "https://api.dev.spresso.com",
	EnvironmentStaging: "https://api.staging.spresso.com",
	EnvironmentProd:    "https://api.spresso.com",
}

func (e Environment) String() string {
	if name, ok := environmentNames[e]; ok {
		return name
	}
	return "unknown"
}

// DefaultServerURL returns the collector base URL for the environment.
func (e Environment) DefaultServerURL() string {
	return defaultServerURLs[e]
}

func (e Environment) valid() bool {
	_, ok := environmentNames[e]
	return ok
}

// ParseEnvironment accepts the names printed by Environment.String, plus
// "development" and "production".
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return EnvironmentLocal, nil
	case "dev", "development":
		return EnvironmentDev, nil
	case "staging":
		return EnvironmentStaging, nil
	case "prod", "production":
		return EnvironmentProd, nil
	}
	return 0, &ConfigurationError{Field: "environment", Reason: "unknown environment " + s}
}

// UnmarshalYAML decodes an environment name.
func (e *Environment) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	env, err := ParseEnvironment(name)
	if err != nil {
		return err
	}
	*e = env
	return nil
}

// MarshalYAML encodes the environment by name.
func (e Environment) MarshalYAML() (any, error) {
	return e.String(), nil
}

// StorageDriver selects the built-in persistence backend used when no
// StorageAdapter is supplied.
type StorageDriver string

const (
	StorageDriverFile   StorageDriver = "file"
	StorageDriverSQLite StorageDriver = "sqlite"
	StorageDriverNone   StorageDriver = "none"
)

// StorageConfig configures the built-in persistence backend.
type StorageConfig struct {
	Driver StorageDriver `yaml:"driver"`
	// Path is a directory for the file driver and a database file for sqlite.
	Path string `yaml:"path"`
}

// Config holds client settings. Zero values are replaced by defaults when the
// client is created, except FlushInterval where zero disables the timer.
type Config struct {
	Environment  Environment `yaml:"environment"`
	ServerURL    string      `yaml:"serverURL"`
	APIKey       string      `yaml:"apiKey"`
	APIKeyHeader string      `yaml:"apiKeyHeader"`

	// FlushInterval is the timer period. Zero turns the timer off.
	FlushInterval     time.Duration `yaml:"flushInterval"`
	FlushOnBackground *bool         `yaml:"flushOnBackground"`
	SendEnabled       *bool         `yaml:"sendEnabled"`
	CollectionEnabled *bool         `yaml:"collectionEnabled"`

	MaxBatchSize   int           `yaml:"maxBatchSize"`
	MaxQueueSize   int           `yaml:"maxQueueSize"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	Gzip           bool          `yaml:"gzip"`

	LoggingEnabled bool     `yaml:"loggingEnabled"`
	LogLevel       LogLevel `yaml:"logLevel"`

	Storage StorageConfig `yaml:"storage"`

	Adapters struct {
		HTTPAdapter    HTTPAdapter
		StorageAdapter StorageAdapter
		LoggerAdapter  LoggerAdapter
	} `yaml:"-"`

	// Delegate, when set, is asked before every flush.
	Delegate Delegate `yaml:"-"`
}

// Bool returns a pointer to v, for the optional Config switches.
func Bool(v bool) *bool {
	return &v
}

// DefaultConfig returns the settings used by Configure.
func DefaultConfig(env Environment) Config {
	return Config{
		Environment:       env,
		FlushInterval:     60 * time.Second,
		FlushOnBackground: Bool(true),
		SendEnabled:       Bool(true),
		CollectionEnabled: Bool(true),
		MaxBatchSize:      50,
		MaxQueueSize:      1000,
		RequestTimeout:    30 * time.Second,
		LogLevel:          adapters.LogLevelWarn,
		Storage:           StorageConfig{Driver: StorageDriverFile, Path: ".spresso"},
	}
}

// LoadConfig reads a YAML file over DefaultConfig(EnvironmentProd).
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig(EnvironmentProd)

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig(c.Environment)

	if c.ServerURL == "" {
		c.ServerURL = c.Environment.DefaultServerURL()
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = "X-API-Key"
	}
	if c.FlushOnBackground == nil {
		c.FlushOnBackground = defaults.FlushOnBackground
	}
	if c.SendEnabled == nil {
		c.SendEnabled = defaults.SendEnabled
	}
	if c.CollectionEnabled == nil {
		c.CollectionEnabled = defaults.CollectionEnabled
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = defaults.MaxBatchSize
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = defaults.MaxQueueSize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaults.Storage.Path
	}
	return c
}

// Validate reports the first invalid setting as a *ConfigurationError.
func (c Config) Validate() error {
	if !c.Environment.valid() {
		return &ConfigurationError{Field: "environment", Reason: "unknown environment"}
	}
	if err := validateServerURL(c.ServerURL); err != nil {
		return err
	}
	if c.FlushInterval < 0 {
		return &ConfigurationError{Field: "flushInterval", Reason: "must not be negative"}
	}
	if c.MaxBatchSize <= 0 {
		return &ConfigurationError{Field: "maxBatchSize", Reason: "must be positive"}
	}
	if c.MaxQueueSize <= 0 {
		return &ConfigurationError{Field: "maxQueueSize", Reason: "must be positive"}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigurationError{Field: "requestTimeout", Reason: "must be positive"}
	}
	switch c.Storage.Driver {
	case StorageDriverFile, StorageDriverSQLite, StorageDriverNone, "":
	default:
		return &ConfigurationError{Field: "storage.driver", Reason: "unknown driver " + string(c.Storage.Driver)}
	}
	return nil
}

func validateServerURL(raw string) error {
	if raw == "" {
		return &ConfigurationError{Field: "serverURL", Reason: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigurationError{Field: "serverURL", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigurationError{Field: "serverURL", Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ConfigurationError{Field: "serverURL", Reason: "host is required"}
	}
	return nil
}
