// Package config loads the optional planta.yaml server configuration.
// Precedence: flags > PLANTA_* environment variables > YAML file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds server-level settings. Per-module workflow settings live in
// each module's own settings table, not here.
type Config struct {
	Port         int    `yaml:"port"`
	DataDir      string `yaml:"data_dir"`
	CompanyName  string `yaml:"company_name"`
	CompanyEmail string `yaml:"company_email"`
	SessionHours int    `yaml:"session_hours"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:         9000,
		DataDir:      "data",
		CompanyName:  "Planta",
		CompanyEmail: "admin@example.com",
		SessionHours: 24,
	}
}

// Load reads path when it exists and applies PLANTA_* env overrides. A missing
// file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if v := os.Getenv("PLANTA_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("PLANTA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PLANTA_COMPANY_NAME"); v != "" {
		cfg.CompanyName = v
	}
	if v := os.Getenv("PLANTA_COMPANY_EMAIL"); v != "" {
		cfg.CompanyEmail = v
	}
	if v := os.Getenv("PLANTA_SESSION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionHours = n
		}
	}
	return cfg, nil
}
