package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/markit/internal/autosave"
	"github.com/starford/markit/internal/persistence"
	"github.com/starford/markit/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store drivers.
const (
	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Store    StoreConfig       `yaml:"store"`
	Autosave AutosaveConfig    `yaml:"autosave"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Autosave.Validate(); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	Log      LogConfig  `yaml:"log"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogConfig configures the optional rotating log file. An empty File logs to the
// console only.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Validate validates the log configuration.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects where the note collection is persisted.
//
// Driver "file" keeps one JSON file per key under Path (a directory);
// "sqlite" keeps a key/value table in the database file at Path.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Key    string `yaml:"key"`
	// Guard watches the file store for foreign writes and restores the collection.
	Guard bool `yaml:"guard"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Key == "" {
		c.Key = persistence.DefaultKey
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StoreDriverFile, StoreDriverSQLite)),
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Key, validation.Required, validation.By(validKey)),
	)
}

func validKey(v any) error {
	s, _ := v.(string)
	if err := storage.ValidateKey(s); err != nil {
		return errors.New("must start with a letter or digit and contain only letters, digits, '.', '_' or '-'")
	}
	return nil
}

// AutosaveConfig controls debounced saving of editor changes.
type AutosaveConfig struct {
	// Quiescence is how long the editor must be idle before an edit is committed.
	Quiescence time.Duration `yaml:"quiescence"`
	// OnSwitch is "flush" or "discard": what happens to a pending edit when
	// another note is opened or the editor is closed.
	OnSwitch string `yaml:"on_switch"`
}

// Validate validates the autosave configuration.
func (c *AutosaveConfig) Validate() error {
	if c.OnSwitch == "" {
		c.OnSwitch = string(autosave.PolicyFlush)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Quiescence, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.OnSwitch, validation.In(string(autosave.PolicyFlush), string(autosave.PolicyDiscard))),
	)
}

// Policy returns the parsed switch policy.
func (c *AutosaveConfig) Policy() autosave.Policy {
	p, err := autosave.ParsePolicy(c.OnSwitch)
	if err != nil {
		return autosave.PolicyFlush
	}
	return p
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Log: LogConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver: StoreDriverFile,
			Path:   "./data",
			Key:    persistence.DefaultKey,
			Guard:  true,
		},
		Autosave: AutosaveConfig{
			Quiescence: autosave.DefaultDelay,
			OnSwitch:   string(autosave.PolicyFlush),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
