// Package config loads the bridge configuration from an optional YAML file
// overlaid with environment variables. Environment always wins, so deployed
// overrides never require editing the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultAPIPort is used when no port is configured for the status API.
const DefaultAPIPort = 8087

// Config holds everything the bridge needs to run.
type Config struct {
	// RinconHost is the reservation API base URL, without trailing slash.
	RinconHost string `yaml:"rincon_host"`

	// RinconToken is the bearer credential. When empty, RinconUsername and
	// RinconPassword are used to obtain one via the login flow.
	RinconToken    string `yaml:"rincon_token"`
	RinconUsername string `yaml:"rincon_username"`
	RinconPassword string `yaml:"rincon_password"`

	// HAURL is the Home Assistant WebSocket endpoint. Optional: when empty
	// the bridge runs with its local status API only.
	HAURL   string `yaml:"ha_url"`
	HAToken string `yaml:"ha_token"`

	// APIPort is the listen port of the local status API.
	APIPort int `yaml:"api_port"`
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), overlays environment variables, applies defaults, and
// validates the result.
func Load(path string, logger *zap.Logger) (*Config, error) {
	logger = logger.Named("config")

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			logger.Debug("Config file not found, using environment only", zap.String("path", path))
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			logger.Info("Config file loaded", zap.String("path", path))
		}
	}

	overlayEnv(&cfg)

	cfg.RinconHost = strings.TrimRight(cfg.RinconHost, "/")
	if cfg.APIPort == 0 {
		cfg.APIPort = DefaultAPIPort
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("rincon_host", cfg.RinconHost),
		zap.Bool("ha_enabled", cfg.HAURL != ""),
		zap.Int("api_port", cfg.APIPort))

	return &cfg, nil
}

func overlayEnv(cfg *Config) {
	setIfPresent := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setIfPresent(&cfg.RinconHost, "RINCON_HOST")
	setIfPresent(&cfg.RinconToken, "RINCON_TOKEN")
	setIfPresent(&cfg.RinconUsername, "RINCON_USERNAME")
	setIfPresent(&cfg.RinconPassword, "RINCON_PASSWORD")
	setIfPresent(&cfg.HAURL, "HA_URL")
	setIfPresent(&cfg.HAToken, "HA_TOKEN")

	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = port
		}
	}
}

func (c *Config) validate() error {
	if c.RinconHost == "" {
		return fmt.Errorf("rincon host must be set (RINCON_HOST)")
	}
	if c.RinconToken == "" && (c.RinconUsername == "" || c.RinconPassword == "") {
		return fmt.Errorf("either RINCON_TOKEN or RINCON_USERNAME and RINCON_PASSWORD must be set")
	}
	if c.HAURL != "" && c.HAToken == "" {
		return fmt.Errorf("HA_TOKEN must be set when HA_URL is configured")
	}
	return nil
}
