package config

import "time"

// Config is the root configuration for boardcast.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Events    EventsConfig    `yaml:"events"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	MCP       MCPConfig       `yaml:"mcp"`
	Tunnel    TunnelConfig    `yaml:"tunnel"`
}

type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	PublicURL     string `yaml:"public_url"`
	AllowedOrigin string `yaml:"allowed_origin"`
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
}

// StoreConfig describes the external record store (a Notion database).
type StoreConfig struct {
	BaseURL    string           `yaml:"base_url"`
	Token      string           `yaml:"token"`
	DatabaseID string           `yaml:"database_id"`
	APIVersion string           `yaml:"api_version"`
	PageSize   int              `yaml:"page_size"`
	Timeout    time.Duration    `yaml:"timeout"`
	Properties PropertiesConfig `yaml:"properties"`
}

// PropertiesConfig maps item fields to property names in the external store.
// Name is an ordered alias list: the first non-empty value wins.
type PropertiesConfig struct {
	Name        []string `yaml:"name"`
	Level       string   `yaml:"level"`
	Upper       string   `yaml:"upper"`
	Dependency  string   `yaml:"dependency"`
	EarlyStart  string   `yaml:"early_start"`
	LateStart   string   `yaml:"late_start"`
	EarlyFinish string   `yaml:"early_finish"`
	LateFinish  string   `yaml:"late_finish"`
	Done        string   `yaml:"done"`
}

type WebhookConfig struct {
	Secret          string        `yaml:"secret"`
	SignatureHeader string        `yaml:"signature_header"`
	Debounce        time.Duration `yaml:"debounce"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type EventsConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig locates the SQLite file holding verification challenges.
// An empty path keeps challenges in memory only.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// MCPConfig controls the optional MCP endpoint. An empty Token is replaced
// by one generated and persisted under the config directory.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type TunnelConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8787,
			AllowedOrigin: "*",
			LogLevel:      "info",
		},
		Store: StoreConfig{
			BaseURL:    "https://api.notion.com",
			APIVersion: "2022-06-28",
			PageSize:   100,
			Properties: PropertiesConfig{
				Name:        []string{"Name", "Title"},
				Level:       "Level",
				Upper:       "Upper",
				Dependency:  "Dependency",
				EarlyStart:  "Early Start",
				LateStart:   "Late Start",
				EarlyFinish: "Early Finish",
				LateFinish:  "Late Finish",
				Done:        "Done",
			},
		},
		Webhook: WebhookConfig{
			SignatureHeader: "X-Notion-Signature",
			Debounce:        200 * time.Millisecond,
			MaxBodyBytes:    1 << 20, // 1MB
		},
		Events: EventsConfig{
			PingInterval: 25 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:          "~/.config/boardcast/boardcast.db",
			RetentionDays: 30,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 600,
			Burst:             60,
		},
	}
}
