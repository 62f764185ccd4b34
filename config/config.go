package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the entire application configuration.
type Config struct {
	DatabasePath     string        `yaml:"database_path"`
	DataStartDateStr string        `yaml:"data_date_start"`
	CacheTTLStr      string        `yaml:"cache_ttl"`
	Web              WebConfig     `yaml:"web"`
	YNAB             YNABConfig    `yaml:"ynab"`
	DataStartDate    time.Time     // Parsed from DataStartDateStr
	CacheTTL         time.Duration // Parsed from CacheTTLStr
}

// WebConfig holds settings specific to the web server.
type WebConfig struct {
	ListenAddress   string `yaml:"listen_address"`
	TemplatesPath   string `yaml:"templates_path"`
	StaticPath      string `yaml:"static_path"`
	DevelopmentMode bool   `yaml:"development_mode"`
}

// YNABConfig holds settings for the budget service API.
type YNABConfig struct {
	AccessToken string `yaml:"access_token"`
	BudgetID    string `yaml:"budget_id"`
	// BaseURL overrides the public API endpoint, mainly for testing.
	BaseURL string `yaml:"base_url"`
}

// Load loads and validates the configuration from the given file path.
func Load(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", filePath)
	}

	configFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(configFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse YAML config file: %w", err)
	}

	if err := validateAndPrepare(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateAndPrepare checks for required fields and sets up derived values.
func validateAndPrepare(c *Config) error {
	// General
	if c.DatabasePath == "" {
		return errors.New("database_path is missing")
	}
	if c.DataStartDateStr == "" {
		return errors.New("data_date_start is missing")
	}
	parsedDate, err := time.Parse("2006-01-02", c.DataStartDateStr)
	if err != nil {
		return fmt.Errorf("invalid data_date_start format: %w", err)
	}
	c.DataStartDate = parsedDate

	// Dashboard query cache, 5 minutes unless configured.
	c.CacheTTL = 5 * time.Minute
	if c.CacheTTLStr != "" {
		ttl, err := time.ParseDuration(c.CacheTTLStr)
		if err != nil {
			return fmt.Errorf("invalid cache_ttl duration: %w", err)
		}
		if ttl <= 0 {
			return errors.New("cache_ttl must be positive")
		}
		c.CacheTTL = ttl
	}

	// Web
	if c.Web.ListenAddress == "" {
		return errors.New("web.listen_address is missing")
	}

	// Budget service
	if c.YNAB.AccessToken == "" {
		return errors.New("ynab.access_token is missing")
	}
	if c.YNAB.BudgetID == "" {
		return errors.New("ynab.budget_id is missing")
	}

	return nil
}
