package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	XMLRiver  XMLRiverConfig  `yaml:"xmlriver"`
	Database  DatabaseConfig  `yaml:"database"`
	DaData    DaDataConfig    `yaml:"dadata"`
	System    SystemConfig    `yaml:"system"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type XMLRiverConfig struct {
	BaseURL        string `yaml:"base_url"`
	User           string `yaml:"user"`
	Key            string `yaml:"key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type DatabaseConfig struct {
	Host               string `yaml:"host"`
	Port               string `yaml:"port"`
	Database           string `yaml:"database"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	ExcludedSourceFile string `yaml:"excluded_source_file"`
}

type DaDataConfig struct {
	BaseURL        string          `yaml:"base_url"`
	Service        string          `yaml:"service"`
	TimeoutSeconds int             `yaml:"timeout_seconds"`
	Accounts       []DaDataAccount `yaml:"accounts"`
}

// DaDataAccount is one token/secret pair. Accounts missing either half are
// skipped when the quota provider is built.
type DaDataAccount struct {
	Name   string `yaml:"name"`
	Token  string `yaml:"token"`
	Secret string `yaml:"secret"`
}

func (a DaDataAccount) Complete() bool {
	return a.Token != "" && a.Secret != ""
}

type SystemConfig struct {
	DiskPath          string `yaml:"disk_path"`
	CPUSampleMillisec int    `yaml:"cpu_sample_ms"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// RateLimitConfig throttles the UI and API routes. Zero requests per second
// disables the limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8000",
		},
		XMLRiver: XMLRiverConfig{
			BaseURL:        "https://xmlriver.com/api",
			TimeoutSeconds: 120,
		},
		Database: DatabaseConfig{
			Host:               "localhost",
			Port:               "8123",
			Database:           "default",
			User:               "default",
			TimeoutSeconds:     30,
			ExcludedSourceFile: "companies_import_test.csv",
		},
		DaData: DaDataConfig{
			BaseURL:        "https://dadata.ru/api/v2",
			Service:        "suggestions",
			TimeoutSeconds: 10,
			Accounts: []DaDataAccount{
				{Name: "DaData account 1"},
				{Name: "DaData account 2"},
			},
		},
		System: SystemConfig{
			DiskPath:          "/",
			CPUSampleMillisec: 1000,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: "production",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             5,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// finally the process environment. A .env file next to the binary is read
// first when present.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if _, err := os.Stat(filename); err == nil {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filename, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	cfg.nameAccounts()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.XMLRiver.User, "USER_XML_RIVER")
	setString(&c.XMLRiver.Key, "KEY_XML_RIVER")

	setString(&c.Database.Host, "CLICKHOUSE_HOST")
	setString(&c.Database.Port, "CLICKHOUSE_PORT")
	setString(&c.Database.Database, "CLICKHOUSE_DB")
	setString(&c.Database.User, "CLICKHOUSE_USER")
	setString(&c.Database.Password, "CLICKHOUSE_PASSWORD")

	for i := 0; i < 2; i++ {
		token := os.Getenv(fmt.Sprintf("DADATA_TOKEN_%d", i+1))
		secret := os.Getenv(fmt.Sprintf("DADATA_SECRET_%d", i+1))
		if token == "" && secret == "" {
			continue
		}
		for len(c.DaData.Accounts) <= i {
			c.DaData.Accounts = append(c.DaData.Accounts, DaDataAccount{})
		}
		acc := &c.DaData.Accounts[i]
		if token != "" {
			acc.Token = token
		}
		if secret != "" {
			acc.Secret = secret
		}
	}

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Environment, "LOG_ENVIRONMENT")

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.Burst = n
		}
	}
}

// Validate checks the values that would otherwise only fail at request time.
// Missing upstream credentials are allowed: those sections degrade to an
// error status instead.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port %q is not a number", c.Server.Port)
	}
	if _, err := strconv.Atoi(c.Database.Port); err != nil {
		return fmt.Errorf("database port %q is not a number", c.Database.Port)
	}
	if c.XMLRiver.TimeoutSeconds < 0 || c.Database.TimeoutSeconds < 0 || c.DaData.TimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.System.CPUSampleMillisec < 0 {
		return fmt.Errorf("cpu_sample_ms must not be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	return nil
}

// nameAccounts gives every unnamed DaData account its positional label.
func (c *Config) nameAccounts() {
	for i := range c.DaData.Accounts {
		if c.DaData.Accounts[i].Name == "" {
			c.DaData.Accounts[i].Name = fmt.Sprintf("DaData account %d", i+1)
		}
	}
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *XMLRiverConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *DatabaseConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *DaDataConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *SystemConfig) CPUSampleInterval() time.Duration {
	return time.Duration(c.CPUSampleMillisec) * time.Millisecond
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
