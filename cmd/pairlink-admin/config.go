// ABOUTME: Configuration loading for the pairlink admin CLI
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Auth    AuthConfig    `toml:"auth"`
}

type GatewayConfig struct {
	URL string `toml:"url"`
}

type AuthConfig struct {
	// TokenFile holds the session token written by "pairlink-admin login"
	TokenFile string `toml:"token_file"`
}

// configPath returns the CLI config location.
// Priority: PAIRLINK_ADMIN_CONFIG env var > XDG_CONFIG_HOME/pairlink/admin.toml > ~/.config/pairlink/admin.toml
func configPath() string {
	if envPath := os.Getenv("PAIRLINK_ADMIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "pairlink", "admin.toml")
}

// loadConfig reads the TOML config, falling back to defaults when the file
// does not exist. Environment variables override file values.
func loadConfig() (*Config, error) {
	cfg := &Config{
		Gateway: GatewayConfig{URL: "http://localhost:8080"},
		Auth:    AuthConfig{TokenFile: filepath.Join(filepath.Dir(configPath()), "token")},
	}

	path := configPath()
	if data, err := os.ReadFile(path); err == nil {
		expanded := expandEnvVars(string(data))
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if envURL := os.Getenv("PAIRLINK_URL"); envURL != "" {
		cfg.Gateway.URL = envURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gateway.url %q is not a valid URL", c.Gateway.URL)
	}
	return nil
}

// token returns the session token.
// Priority: PAIRLINK_TOKEN env var > token file from config.
func (c *Config) token() string {
	if envToken := os.Getenv("PAIRLINK_TOKEN"); envToken != "" {
		return envToken
	}
	data, err := os.ReadFile(c.Auth.TokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// saveToken writes the session token to the configured token file.
func (c *Config) saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(c.Auth.TokenFile), 0755); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(c.Auth.TokenFile, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
