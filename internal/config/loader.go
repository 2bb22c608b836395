package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/boardcast/boardcast.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "boardcast", "boardcast.yaml"))
	}

	paths = append(paths, "boardcast.yaml")

	if envPath := os.Getenv("BOARDCAST_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/boardcast/boardcast.yaml < ~/.config/boardcast/boardcast.yaml < ./boardcast.yaml < $BOARDCAST_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have higher priority than YAML config values.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("BOARDCAST_NOTION_TOKEN"); token != "" {
		cfg.Store.Token = token
	}
	if id := os.Getenv("BOARDCAST_DATABASE_ID"); id != "" {
		cfg.Store.DatabaseID = id
	}
	if secret := os.Getenv("BOARDCAST_WEBHOOK_SECRET"); secret != "" {
		cfg.Webhook.Secret = secret
	}
	if origin := os.Getenv("BOARDCAST_ALLOWED_ORIGIN"); origin != "" {
		cfg.Server.AllowedOrigin = origin
	}
	if token := os.Getenv("BOARDCAST_MCP_TOKEN"); token != "" {
		cfg.MCP.Token = token
	}
	if token := os.Getenv("BOARDCAST_NGROK_AUTHTOKEN"); token != "" {
		cfg.Tunnel.AuthToken = token
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		} else {
			slog.Warn("ignoring non-numeric PORT", "value", port)
		}
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// Dir returns the per-user configuration directory.
func Dir() string {
	return ExpandHome("~/.config/boardcast")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Store.PageSize < 1 || cfg.Store.PageSize > 100 {
		return fmt.Errorf("store.page_size must be between 1 and 100, got %d", cfg.Store.PageSize)
	}

	if cfg.Store.Timeout < 0 {
		return fmt.Errorf("store.timeout must not be negative")
	}

	if len(nonEmpty(cfg.Store.Properties.Name)) == 0 {
		return fmt.Errorf("store.properties.name must list at least one property")
	}
	cfg.Store.Properties.Name = nonEmpty(cfg.Store.Properties.Name)

	if cfg.Webhook.Debounce <= 0 {
		return fmt.Errorf("webhook.debounce must be positive, got %s", cfg.Webhook.Debounce)
	}

	if strings.TrimSpace(cfg.Webhook.SignatureHeader) == "" {
		return fmt.Errorf("webhook.signature_header must not be empty")
	}

	if cfg.Webhook.MaxBodyBytes <= 0 {
		return fmt.Errorf("webhook.max_body_bytes must be positive")
	}

	if cfg.Events.PingInterval < time.Second {
		return fmt.Errorf("events.ping_interval must be at least 1s, got %s", cfg.Events.PingInterval)
	}

	if cfg.Events.WriteTimeout <= 0 {
		return fmt.Errorf("events.write_timeout must be positive, got %s", cfg.Events.WriteTimeout)
	}

	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}

	if cfg.Tunnel.Enabled && cfg.Tunnel.AuthToken == "" {
		return fmt.Errorf("tunnel.authtoken is required when tunnel.enabled is true (or set BOARDCAST_NGROK_AUTHTOKEN)")
	}

	cfg.Store.BaseURL = strings.TrimRight(cfg.Store.BaseURL, "/")
	cfg.Webhook.Secret = strings.TrimSpace(cfg.Webhook.Secret)
	cfg.MCP.Token = strings.TrimSpace(cfg.MCP.Token)
	if cfg.Database.Path != "" {
		cfg.Database.Path = ExpandHome(cfg.Database.Path)
	}

	return nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
