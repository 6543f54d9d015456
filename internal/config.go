package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/router"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Stores  StoresConfig      `yaml:"stores"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Agent   AgentConfig       `yaml:"agent"`
	Session SessionConfig     `yaml:"session"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Stores.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Agent.Validate()
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

// StoresConfig holds the update queue store locations.
//
// Project is the project-local queue directory and is always required.
// Registry and Legacy are optional; an empty path disables that source.
type StoresConfig struct {
	Project       string `yaml:"project"`
	Registry      string `yaml:"registry"`
	RegistryRules string `yaml:"registry_rules"`
	Legacy        string `yaml:"legacy"`
	ProjectConfig string `yaml:"project_config"`
	Ledger        string `yaml:"ledger"`
}

// Validate validates the stores configuration.
func (c *StoresConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Project, validation.Required),
		validation.Field(&c.Ledger, validation.Required),
	); err != nil {
		return err
	}
	if c.Registry != "" && c.RegistryRules == "" {
		return fmt.Errorf("stores: registry is set but registry_rules is empty")
	}
	return nil
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

// AgentConfig identifies the agent consuming the queue and the scope
// enforcement policy applied to it.
type AgentConfig struct {
	Role   string `yaml:"role"`
	Name   string `yaml:"name"`
	Policy string `yaml:"policy"`
}

// Validate validates the agent configuration.
func (c *AgentConfig) Validate() error {
	if c.Role == "" {
		c.Role = router.RoleBuilder
	}
	if c.Policy == "" {
		c.Policy = router.PolicyAdvisory
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Role, validation.Required, validation.In(router.RolePlanner, router.RoleBuilder)),
		validation.Field(&c.Policy, validation.Required, validation.In(router.PolicyAdvisory, router.PolicyStrict)),
	)
}

// SessionConfig holds the advisory session lease settings.
type SessionConfig struct {
	LeasePath string        `yaml:"lease_path"`
	TTL       time.Duration `yaml:"ttl"`
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
		Stores: StoresConfig{
			Project:       "./updates",
			ProjectConfig: "./project-config.json",
			Ledger:        "./applied-updates.json",
		},
		SQLite: SQLiteConfig{
			Path: "./raido.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Agent: AgentConfig{
			Role:   router.RoleBuilder,
			Name:   "raido",
			Policy: router.PolicyAdvisory,
		},
		Session: SessionConfig{
			LeasePath: "./session.lease",
			TTL:       30 * time.Minute,
		},
	}
}
