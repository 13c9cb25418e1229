// Package config provides runtime configuration for FleetPulse.
// It uses Viper to load settings from files, environment variables, and CLI flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for FleetPulse.
type Config struct {
	// ── Collector ────────────────────────────────────────────────────────────
	ServerHost string `mapstructure:"server_host"`
	ServerPort int    `mapstructure:"server_port"`
	DBPath     string `mapstructure:"db_path"`
	// AgentToken: optional pre-shared key for agent → collector requests.
	// When set, POST /send requires "Authorization: Bearer <agent_token>".
	AgentToken string `mapstructure:"agent_token"`

	// ── Agent ────────────────────────────────────────────────────────────────
	// AgentEndpoint is the full collector ingest URL, e.g. "http://10.0.0.1:8000/send".
	AgentEndpoint string `mapstructure:"agent_endpoint"`
	// AgentID overrides the generated "<hostname>-<uuid>" identity when non-empty.
	AgentID       string `mapstructure:"agent_id"`
	AgentInterval int    `mapstructure:"agent_interval_seconds"`
	// Transport retry policy: AgentMaxAttempts tries total, sleeping
	// backoff*2^n seconds between failed attempts.
	AgentMaxAttempts int    `mapstructure:"agent_max_attempts"`
	AgentBackoff     int    `mapstructure:"agent_backoff_seconds"`
	AgentLogPath     string `mapstructure:"agent_log_path"`
}

// Load reads config from file (./config.yaml or ~/.fleetpulse/config.yaml)
// and falls back to defaults. Environment variables with prefix FLEET_
// override file values.
func Load() (*Config, error) {
	v := viper.New()

	// --- Defaults ---
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8000)
	v.SetDefault("db_path", "fleetpulse.db")
	v.SetDefault("agent_token", "")

	v.SetDefault("agent_endpoint", "http://127.0.0.1:8000/send")
	v.SetDefault("agent_id", "")
	v.SetDefault("agent_interval_seconds", 60)
	v.SetDefault("agent_max_attempts", 3)
	v.SetDefault("agent_backoff_seconds", 2)
	v.SetDefault("agent_log_path", "agent.log")

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.fleetpulse")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
