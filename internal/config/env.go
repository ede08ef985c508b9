// Package config provides the application configuration: environment driven
// settings through Viper, plus the YAML files describing banks, accounts,
// cards, categories and update metadata.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var envOnce sync.Once

// Config represents the environment-level application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Database struct {
		Folder string `mapstructure:"folder"`
	} `mapstructure:"database"`

	Files struct {
		Banking    string `mapstructure:"banking"`
		Categories string `mapstructure:"categories"`
		Rules      string `mapstructure:"rules"`
		Metadata   string `mapstructure:"metadata"`
	} `mapstructure:"files"`

	Scraper struct {
		Headless     bool `mapstructure:"headless"`
		CloseBrowser bool `mapstructure:"close_browser"`
	} `mapstructure:"scraper"`

	Updater struct {
		UpdateOnStart bool `mapstructure:"update_on_start"`
	} `mapstructure:"updater"`

	API struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"api"`
}

// LoadEnv loads environment variables from a .env file if one exists, first
// in the working directory and then in the parent directory.
func LoadEnv() {
	envOnce.Do(func() {
		envFile := ".env"
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			envFile = filepath.Join("..", ".env")
			if _, err := os.Stat(envFile); os.IsNotExist(err) {
				return
			}
		}
		if err := godotenv.Load(envFile); err != nil {
			fmt.Printf("Warning: error loading %s: %v\n", envFile, err)
		}
	})
}

// InitializeConfig builds the configuration from defaults, an optional
// config.yaml and BANKING_* environment variables, in increasing precedence.
func InitializeConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.banking")
	v.AddConfigPath(".banking")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BANKING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Historical variable names for the file paths stay supported alongside
	// the prefixed ones.
	aliases := map[string][]string{
		"files.banking":    {"BANKING_CONFIG_FILE", "BANKING_FILES_BANKING"},
		"files.metadata":   {"BANKING_METADATA_FILE", "BANKING_FILES_METADATA"},
		"files.categories": {"BANKING_CATEGORIES_FILE", "BANKING_FILES_CATEGORIES"},
		"files.rules":      {"BANKING_RULES_FILE", "BANKING_FILES_RULES"},
	}
	for key, names := range aliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			fmt.Printf("Warning: failed to bind environment variable for %s: %v\n", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
		// Missing config file is fine, defaults and env vars apply.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.folder", "data")

	v.SetDefault("files.banking", "banking.yaml")
	v.SetDefault("files.categories", "categories.yaml")
	v.SetDefault("files.rules", "rules.yaml")
	v.SetDefault("files.metadata", "metadata.yaml")

	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.close_browser", true)

	v.SetDefault("updater.update_on_start", true)

	v.SetDefault("api.address", ":5000")
}

func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Database.Folder == "" {
		return fmt.Errorf("database.folder must not be empty")
	}

	if config.API.Address == "" {
		return fmt.Errorf("api.address must not be empty")
	}

	return nil
}
