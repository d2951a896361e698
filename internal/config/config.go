package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule types understood by the control factory.
const (
	TypeCheckout = "checkout"
	TypeExport   = "export"
)

// Error reports a malformed or incomplete configuration, including an
// invalid rule record. It is raised while loading or building controls,
// never during reconciliation.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Reason, e.Cause)
	}
	return "invalid configuration: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Cause }

// Config represents the complete svnsyncd configuration
type Config struct {
	Controls []Rule      `yaml:"controls"`
	Auth     AuthConfig  `yaml:"auth"`
	Serve    ServeConfig `yaml:"serve"`
}

// Rule declares one reconciliation control. Field validation beyond the
// envelope happens in the control factory, which owns the rule semantics.
type Rule struct {
	Type           string `yaml:"type"`
	Name           string `yaml:"name"`
	TargetPath     string `yaml:"target_path"`
	RepositoryURL  string `yaml:"repository_url"`
	ParentURL      string `yaml:"parent_url"`
	ForceOverwrite bool   `yaml:"force_overwrite"`
}

// AuthConfig configures subversion credentials
type AuthConfig struct {
	Username     string `yaml:"username"`
	PasswordFile string `yaml:"password_file"`
}

// ServeConfig configures the webhook server
type ServeConfig struct {
	Enabled             bool     `yaml:"enabled"`
	ListenAddr          string   `yaml:"listen_addr"`
	SecretFile          string   `yaml:"secret_file"`
	AllowedRepositories []string `yaml:"allowed_repositories"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// The controls key must be present and must be a sequence; an empty
	// sequence is valid, a missing key is not. The pointer distinguishes
	// the two.
	var doc struct {
		Controls *[]Rule     `yaml:"controls"`
		Auth     AuthConfig  `yaml:"auth"`
		Serve    ServeConfig `yaml:"serve"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Reason: "failed to parse config file", Cause: err}
	}
	if doc.Controls == nil {
		return nil, &Error{Reason: "a 'controls' list is required"}
	}

	cfg := &Config{
		Controls: *doc.Controls,
		Auth:     doc.Auth,
		Serve:    doc.Serve,
	}

	// Expand environment variables in string fields
	cfg.expandEnv()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	for i := range c.Controls {
		c.Controls[i].TargetPath = os.ExpandEnv(c.Controls[i].TargetPath)
		c.Controls[i].RepositoryURL = os.ExpandEnv(c.Controls[i].RepositoryURL)
		c.Controls[i].ParentURL = os.ExpandEnv(c.Controls[i].ParentURL)
	}
	c.Auth.Username = os.ExpandEnv(c.Auth.Username)
	c.Auth.PasswordFile = os.ExpandEnv(c.Auth.PasswordFile)
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.SecretFile = os.ExpandEnv(c.Serve.SecretFile)
}

// Validate checks the envelope-level configuration for errors. Per-rule
// required fields are the factory's concern.
func (c *Config) Validate() error {
	if c.Auth.PasswordFile != "" && c.Auth.Username == "" {
		return &Error{Reason: "auth.password_file requires auth.username"}
	}

	if c.Serve.Enabled {
		if c.Serve.ListenAddr == "" {
			return &Error{Reason: "serve.listen_addr is required when serve is enabled"}
		}
		if c.Serve.SecretFile == "" {
			return &Error{Reason: "serve.secret_file is required when serve is enabled"}
		}
	}

	return nil
}
