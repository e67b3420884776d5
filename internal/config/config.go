package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// GitHubConfig holds the GitHub App identity and endpoints.
type GitHubConfig struct {
	AppID          int64  `toml:"app_id"`
	PrivateKeyPath string `toml:"private_key_path"`
	PrivateKey     string `toml:"private_key"`
	APIURL         string `toml:"api_url"`
	RawURL         string `toml:"raw_url"`
	CheckName      string `toml:"check_name"`
}

// HTTPConfig controls timeouts and retries of every forge call.
type HTTPConfig struct {
	Timeout        Duration `toml:"timeout"`
	MaxRetries     int      `toml:"max_retries"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
}

// ValidatorConfig points at the shape validation service.
type ValidatorConfig struct {
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
}

// ExecutorConfig selects the execution strategy.
// Workers <= 1 runs test cases sequentially.
type ExecutorConfig struct {
	Workers int `toml:"workers"`
}

// StoreConfig locates the build result database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// LogConfig holds the log level (debug, info, warn, error).
type LogConfig struct {
	Level string `toml:"level"`
}

// Config holds all ontoloci configuration.
type Config struct {
	GitHub    GitHubConfig    `toml:"github"`
	HTTP      HTTPConfig      `toml:"http"`
	Validator ValidatorConfig `toml:"validator"`
	Executor  ExecutorConfig  `toml:"executor"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
}

// Duration decodes TOML strings such as "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

const (
	defaultCheckName      = "ontolo-ci"
	defaultHTTPTimeout    = 15 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultValidatorTO    = 60 * time.Second
)

// CheckNameOrDefault returns the check-run name shown on the forge.
func (c Config) CheckNameOrDefault() string {
	if c.GitHub.CheckName != "" {
		return c.GitHub.CheckName
	}
	return defaultCheckName
}

// HTTPTimeoutOrDefault returns the per-call timeout for forge requests.
func (c Config) HTTPTimeoutOrDefault() time.Duration {
	if c.HTTP.Timeout.Duration > 0 {
		return c.HTTP.Timeout.Duration
	}
	return defaultHTTPTimeout
}

// MaxRetriesOrDefault returns the retry budget for temporary failures.
// A negative value disables retries.
func (c Config) MaxRetriesOrDefault() int {
	switch {
	case c.HTTP.MaxRetries < 0:
		return 0
	case c.HTTP.MaxRetries == 0:
		return defaultMaxRetries
	default:
		return c.HTTP.MaxRetries
	}
}

// InitialBackoffOrDefault returns the first retry delay.
func (c Config) InitialBackoffOrDefault() time.Duration {
	if c.HTTP.InitialBackoff.Duration > 0 {
		return c.HTTP.InitialBackoff.Duration
	}
	return defaultInitialBackoff
}

// MaxBackoffOrDefault returns the upper bound of a retry delay.
func (c Config) MaxBackoffOrDefault() time.Duration {
	if c.HTTP.MaxBackoff.Duration > 0 {
		return c.HTTP.MaxBackoff.Duration
	}
	return defaultMaxBackoff
}

// ValidatorTimeoutOrDefault returns the per-test-case validation timeout.
func (c Config) ValidatorTimeoutOrDefault() time.Duration {
	if c.Validator.Timeout.Duration > 0 {
		return c.Validator.Timeout.Duration
	}
	return defaultValidatorTO
}

// WorkersOrDefault returns the number of concurrent test-case workers.
func (c Config) WorkersOrDefault() int {
	if c.Executor.Workers > 0 {
		return c.Executor.Workers
	}
	return 1
}

// StorePathOrDefault returns the SQLite database path.
func (c Config) StorePathOrDefault() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "ontoloci", "builds.db")
}

// PrivateKeyPEM returns the GitHub App private key, reading
// PrivateKeyPath when the key is not inlined.
func (c Config) PrivateKeyPEM() ([]byte, error) {
	if c.GitHub.PrivateKey != "" {
		return []byte(c.GitHub.PrivateKey), nil
	}
	if c.GitHub.PrivateKeyPath == "" {
		return nil, fmt.Errorf("github.private_key_path is not set")
	}
	data, err := os.ReadFile(c.GitHub.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	return data, nil
}

// LoadFrom reads configuration from the given TOML file path.
// If the file does not exist, it returns an empty config without error.
// Environment variables always take precedence over file values:
//   - ONTOLOCI_GITHUB_APP_ID           overrides github.app_id
//   - ONTOLOCI_GITHUB_PRIVATE_KEY      overrides github.private_key
//   - ONTOLOCI_GITHUB_PRIVATE_KEY_PATH overrides github.private_key_path
//   - ONTOLOCI_VALIDATOR_URL           overrides validator.url
//   - ONTOLOCI_STORE_PATH              overrides store.path
func LoadFrom(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default path for the ontoloci config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return home + "/.config/ontoloci/config.toml"
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("ONTOLOCI_GITHUB_APP_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ONTOLOCI_GITHUB_APP_ID: %w", err)
		}
		cfg.GitHub.AppID = id
	}
	if v := os.Getenv("ONTOLOCI_GITHUB_PRIVATE_KEY"); v != "" {
		cfg.GitHub.PrivateKey = v
	}
	if v := os.Getenv("ONTOLOCI_GITHUB_PRIVATE_KEY_PATH"); v != "" {
		cfg.GitHub.PrivateKeyPath = v
	}
	if v := os.Getenv("ONTOLOCI_VALIDATOR_URL"); v != "" {
		cfg.Validator.URL = v
	}
	if v := os.Getenv("ONTOLOCI_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	return nil
}
