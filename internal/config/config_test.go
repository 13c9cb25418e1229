package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerHost != "0.0.0.0" || cfg.ServerPort != 8000 {
		t.Fatalf("server defaults = %s:%d", cfg.ServerHost, cfg.ServerPort)
	}
	if cfg.DBPath != "fleetpulse.db" {
		t.Fatalf("db path default = %s", cfg.DBPath)
	}
	if cfg.AgentEndpoint != "http://127.0.0.1:8000/send" {
		t.Fatalf("agent endpoint default = %s", cfg.AgentEndpoint)
	}
	if cfg.AgentInterval != 60 || cfg.AgentMaxAttempts != 3 || cfg.AgentBackoff != 2 {
		t.Fatalf("agent loop defaults = %d/%d/%d", cfg.AgentInterval, cfg.AgentMaxAttempts, cfg.AgentBackoff)
	}
	if cfg.AgentToken != "" {
		t.Fatalf("agent token should default to empty, got %q", cfg.AgentToken)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLEET_SERVER_PORT", "9100")
	t.Setenv("FLEET_AGENT_TOKEN", "hunter2")
	t.Setenv("FLEET_AGENT_INTERVAL_SECONDS", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerPort != 9100 {
		t.Fatalf("server port = %d, want env override 9100", cfg.ServerPort)
	}
	if cfg.AgentToken != "hunter2" {
		t.Fatalf("agent token = %q", cfg.AgentToken)
	}
	if cfg.AgentInterval != 15 {
		t.Fatalf("agent interval = %d", cfg.AgentInterval)
	}
	// untouched keys keep their defaults
	if cfg.DBPath != "fleetpulse.db" {
		t.Fatalf("db path = %s", cfg.DBPath)
	}
}
