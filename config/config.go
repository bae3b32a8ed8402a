// Package config loads hintd settings from defaults, a YAML file, the
// environment and finally command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lexandro/csync2-hintd/ignore"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DefaultDatabaseDir is where csync2 keeps its per-host databases.
const DefaultDatabaseDir = "/var/lib/csync2"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HINTD_"

// Mode is the subcommand being configured. Validation depends on it.
type Mode string

const (
	ModeStore  Mode = "store"
	ModeStream Mode = "stream"
	ModeIngest Mode = "ingest"
	ModeHint   Mode = "hint"
)

// Watches reports whether the mode observes filesystem roots.
func (m Mode) Watches() bool { return m == ModeStore || m == ModeStream }

// UsesStore reports whether the mode writes to the hint store.
func (m Mode) UsesStore() bool { return m != ModeStream }

type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Flush   FlushConfig   `yaml:"flush"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type StoreConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	RetryDelay      time.Duration `yaml:"retryDelay"`
	RetryDelayMs    int           `yaml:"retryDelayMs"`
	MaxRetries      int           `yaml:"maxRetries"`
	EncodeFilenames bool          `yaml:"encodeFilenames"`
	OnInsertError   string        `yaml:"onInsertError"`
}

type FlushConfig struct {
	TickInterval     time.Duration `yaml:"tickInterval"`
	AnnounceEvery    int           `yaml:"announceEvery"`
	RequeueOnFailure bool          `yaml:"requeueOnFailure"`
}

type WatchConfig struct {
	Roots      []string `yaml:"roots"`
	Exclude    []string `yaml:"exclude"`
	IgnoreFile string   `yaml:"ignoreFile"`

	// DefaultExcludes turns on the built-in editor, OS and VCS patterns.
	DefaultExcludes bool `yaml:"defaultExcludes"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in settings. The DSN follows the csync2
// convention of one database per host.
func Default() Config {
	dsn := ""
	if host, err := os.Hostname(); err == nil && host != "" {
		dsn = filepath.Join(DefaultDatabaseDir, strings.ToLower(host)+".db")
	}
	return Config{
		Store: StoreConfig{
			Driver:        "sqlite",
			DSN:           dsn,
			RetryDelay:    time.Second,
			MaxRetries:    1000,
			OnInsertError: "continue",
		},
		Flush: FlushConfig{
			TickInterval:  time.Second,
			AnnounceEvery: 600,
		},
		Watch: WatchConfig{
			IgnoreFile: ".hintignore",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path.
// An empty path yields the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays HINTD_* variables returned by lookup onto cfg.
// Pass os.LookupEnv for the process environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = splitList(v)
		}
	}

	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("DRIVER", &cfg.Store.Driver)
	str("DSN", &cfg.Store.DSN)
	duration("RETRY_DELAY", &cfg.Store.RetryDelay)
	integer("RETRY_DELAY_MS", &cfg.Store.RetryDelayMs)
	integer("MAX_RETRIES", &cfg.Store.MaxRetries)
	boolean("ENCODE_FILENAMES", &cfg.Store.EncodeFilenames)
	str("ON_INSERT_ERROR", &cfg.Store.OnInsertError)
	duration("TICK_INTERVAL", &cfg.Flush.TickInterval)
	integer("ANNOUNCE_EVERY", &cfg.Flush.AnnounceEvery)
	boolean("REQUEUE_ON_FAILURE", &cfg.Flush.RequeueOnFailure)
	list("ROOTS", &cfg.Watch.Roots)
	list("EXCLUDE", &cfg.Watch.Exclude)
	str("IGNORE_FILE", &cfg.Watch.IgnoreFile)
	boolean("DEFAULT_EXCLUDES", &cfg.Watch.DefaultExcludes)
	str("METRICS_LISTEN", &cfg.Metrics.Listen)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)

	return errors.Join(errs...)
}

// EffectiveRetryDelay returns retryDelayMs when set, otherwise retryDelay.
func (s StoreConfig) EffectiveRetryDelay() time.Duration {
	if s.RetryDelayMs > 0 {
		return time.Duration(s.RetryDelayMs) * time.Millisecond
	}
	return s.RetryDelay
}

var (
	knownDrivers  = []string{"sqlite", "postgres", "mysql"}
	knownPolicies = []string{"continue", "abort"}
	knownLevels   = []string{"debug", "info", "warn", "error"}
)

// Validate checks cfg for the given mode.
func (c Config) Validate(mode Mode) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if mode.UsesStore() {
		if !contains(knownDrivers, c.Store.Driver) {
			fail("unknown store driver %q (want one of %s)", c.Store.Driver, strings.Join(knownDrivers, ", "))
		}
		if c.Store.DSN == "" {
			fail("store dsn is required")
		}
		if !contains(knownPolicies, c.Store.OnInsertError) {
			fail("unknown onInsertError policy %q", c.Store.OnInsertError)
		}
		if c.Store.MaxRetries < 0 {
			fail("maxRetries must not be negative, got %d", c.Store.MaxRetries)
		}
		if c.Store.RetryDelay < 0 || c.Store.RetryDelayMs < 0 {
			fail("retry delay must not be negative")
		}
	}

	if mode.Watches() {
		if len(c.Watch.Roots) == 0 {
			fail("at least one watch root is required")
		}
		if c.Flush.TickInterval <= 0 {
			fail("tickInterval must be positive, got %s", c.Flush.TickInterval)
		}
		if c.Flush.AnnounceEvery <= 0 {
			fail("announceEvery must be positive, got %d", c.Flush.AnnounceEvery)
		}
		if err := ignore.ValidatePatterns(c.Watch.Exclude); err != nil {
			fail("%v", err)
		}
	}

	if c.Log.Level != "" && !contains(knownLevels, strings.ToLower(c.Log.Level)) {
		fail("unknown log level %q", c.Log.Level)
	}

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == os.PathListSeparator }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
