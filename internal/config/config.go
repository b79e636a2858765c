package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Limits   LimitsConfig   `yaml:"limits"`
	Billing  BillingConfig  `yaml:"billing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	JWTSecret    string        `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	MySQL MySQLConfig `yaml:"mysql"`
	Redis RedisConfig `yaml:"redis"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AIConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
}

type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// LimitsConfig holds the free plan limits. Premium is unlimited.
type LimitsConfig struct {
	FreeMessagesPerDay int `yaml:"free_messages_per_day"`
	FreeScenesPerDay   int `yaml:"free_scenes_per_day"`
	FreeCharacters     int `yaml:"free_characters"`
	FreePayloadChars   int `yaml:"free_payload_chars"`
}

type BillingConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.AI.OpenAI.APIKey = apiKey
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}
	if secret := os.Getenv("BILLING_WEBHOOK_SECRET"); secret != "" {
		cfg.Billing.WebhookSecret = secret
	}
	if password := os.Getenv("MYSQL_PASSWORD"); password != "" {
		cfg.Database.MySQL.Password = password
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Database.Redis.Password = password
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Limits.FreeMessagesPerDay == 0 {
		c.Limits.FreeMessagesPerDay = 20
	}
	if c.Limits.FreeScenesPerDay == 0 {
		c.Limits.FreeScenesPerDay = 1
	}
	if c.Limits.FreeCharacters == 0 {
		c.Limits.FreeCharacters = 1
	}
	if c.Limits.FreePayloadChars == 0 {
		c.Limits.FreePayloadChars = 500
	}
	if c.AI.OpenAI.Model == "" {
		c.AI.OpenAI.Model = "gpt-4o"
	}
	if c.AI.OpenAI.MaxTokens == 0 {
		c.AI.OpenAI.MaxTokens = 500
	}
	if c.AI.OpenAI.Temperature == 0 {
		c.AI.OpenAI.Temperature = 0.8
	}
}
