package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// DatabaseConfig holds the database connection information.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// AdminConfig holds credentials for the key-management surface. If
// PasswordHash (bcrypt) is set it takes precedence over Password.
type AdminConfig struct {
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

// SummarizerConfig holds configuration for the gated summarize action.
type SummarizerConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// KeysConfig holds defaults applied to newly created API keys.
type KeysConfig struct {
	DefaultUsageLimit int `yaml:"default_usage_limit"`
}

// NotifierConfig selects where key lifecycle events are emitted. When both
// Discord fields are set, events go to the Discord channel; otherwise they
// are logged.
type NotifierConfig struct {
	DiscordToken     string `yaml:"discord_token"`
	DiscordChannelID string `yaml:"discord_channel_id"`
}

// SchedulerConfig holds configuration for the daily maintenance job.
type SchedulerConfig struct {
	DailyUsageReset bool `yaml:"daily_usage_reset"`
}

// Config holds the configuration for the service.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Admin      AdminConfig      `yaml:"admin"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Keys       KeysConfig       `yaml:"keys"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Port       int              `yaml:"port"`
	Debug      bool             `yaml:"debug"`
}

// LoadConfig reads and parses the configuration file. It returns the config
// and a potential warning message. A missing file is not an error; values
// can come entirely from environment variables.
var LoadConfig = func(path string) (*Config, string, error) {
	var config Config
	var warning string

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, "", fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}

	// Set default values
	if config.Keys.DefaultUsageLimit == 0 {
		config.Keys.DefaultUsageLimit = 1000
		warning = "keys.default_usage_limit not set, using default value of 1000"
	}
	if config.Summarizer.Model == "" {
		config.Summarizer.Model = "gemini-1.5-flash"
	}
	if config.Port == 0 {
		config.Port = 8080
	}

	// Override with environment variables if they exist
	if dsn := os.Getenv("KEYGATE_DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if dbType := os.Getenv("KEYGATE_DATABASE_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if port := os.Getenv("KEYGATE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	if password := os.Getenv("KEYGATE_ADMIN_PASSWORD"); password != "" {
		config.Admin.Password = password
	}
	if hash := os.Getenv("KEYGATE_ADMIN_PASSWORD_HASH"); hash != "" {
		config.Admin.PasswordHash = hash
	}
	if key := os.Getenv("KEYGATE_SUMMARIZER_API_KEY"); key != "" {
		config.Summarizer.APIKey = key
	}
	if debug := os.Getenv("KEYGATE_DEBUG"); debug != "" {
		config.Debug = (debug == "true")
	}

	// Final validation after overrides
	if config.Database.Type == "" || config.Database.DSN == "" {
		return nil, "", fmt.Errorf("database type and dsn must be configured in config.yaml or via environment variables")
	}
	if config.Admin.Password == "" && config.Admin.PasswordHash == "" {
		return nil, "", fmt.Errorf("admin password (or password_hash) must be configured in config.yaml or via environment variables")
	}

	return &config, warning, nil
}
