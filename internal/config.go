package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/MaherFSF/Yemenactr-sub008/internal/feedmatrix"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Routing  RoutingConfig     `yaml:"routing"`
	Matrix   MatrixConfig      `yaml:"matrix"`
	Registry RegistryConfig    `yaml:"registry"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Matrix.Validate(); err != nil {
		return fmt.Errorf("matrix: %w", err)
	}
	return c.Registry.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
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

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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

// RoutingConfig points at the routing tables. An empty TablesPath uses the
// embedded tables.
type RoutingConfig struct {
	TablesPath string `yaml:"tables_path"`
}

// MatrixConfig holds feed-matrix limits and the batch failure policy.
type MatrixConfig struct {
	DefaultLimit            int    `yaml:"default_limit"`
	MaxLimit                int    `yaml:"max_limit"`
	PageSourcesDefaultLimit int    `yaml:"page_sources_default_limit"`
	BatchMode               string `yaml:"batch_mode"`
	Concurrency             int    `yaml:"concurrency"`
}

// Options converts the section into aggregator options.
func (c *MatrixConfig) Options() feedmatrix.Options {
	return feedmatrix.Options{
		DefaultLimit:            c.DefaultLimit,
		MaxLimit:                c.MaxLimit,
		PageSourcesDefaultLimit: c.PageSourcesDefaultLimit,
		BatchMode:               feedmatrix.BatchMode(c.BatchMode),
		Concurrency:             c.Concurrency,
	}
}

// Validate validates the matrix configuration.
func (c *MatrixConfig) Validate() error {
	return c.Options().Validate()
}

// RegistryConfig controls seeding the registry from a YAML file.
//
// SeedPath is optional. When set, the file is synced at startup and, with
// Watch on, again whenever it changes. Prune deletes sources missing from it.
type RegistryConfig struct {
	SeedPath string `yaml:"seed_path"`
	Watch    bool   `yaml:"watch"`
	Prune    bool   `yaml:"prune"`
}

// Validate validates the registry configuration.
func (c *RegistryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SeedPath, validation.When(c.Watch, validation.Required.Error("is required when watch is enabled"))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./registry.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Matrix: MatrixConfig{
			DefaultLimit:            50,
			MaxLimit:                100,
			PageSourcesDefaultLimit: 20,
			BatchMode:               string(feedmatrix.BatchAbort),
			Concurrency:             4,
		},
	}
}
