package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpulse/fleetpulse/internal/config"
)

// Identity returns the configured agent id, or generates the
// "<hostname>-<uuid>" form used when none is set.
func Identity(cfg *config.Config) string {
	if cfg.AgentID != "" {
		return cfg.AgentID
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "agent"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.New())
}

// Run drives the sample → send loop on a fixed interval, forever.
// A failed iteration is logged and the loop continues; the only exit
// path is external process termination.
func Run(cfg *config.Config, log *slog.Logger) error {
	agentID := Identity(cfg)
	resolver := NewIPResolver(log)
	sampler := NewSampler(log, resolver)
	transport := NewTransport(log, cfg.AgentEndpoint, cfg.AgentToken,
		cfg.AgentMaxAttempts, time.Duration(cfg.AgentBackoff)*time.Second)

	log.Info("agent starting",
		"agent_id", agentID,
		"endpoint", cfg.AgentEndpoint,
		"interval_seconds", cfg.AgentInterval,
	)

	ctx := context.Background()
	ticker := time.NewTicker(time.Duration(cfg.AgentInterval) * time.Second)
	defer ticker.Stop()

	for ; ; <-ticker.C {
		cycle(ctx, sampler, transport, agentID, log)
	}
}

// cycle runs one sample-and-send iteration. Failures never propagate:
// the unsent snapshot is preserved in the local log instead.
func cycle(ctx context.Context, sampler *Sampler, transport *Transport, agentID string, log *slog.Logger) {
	snap := sampler.Sample(agentID)

	if transport.Send(ctx, snap) {
		freq := 0.0
		if snap.CPU.Frequency != nil {
			freq = snap.CPU.Frequency.Current
		}
		fmt.Printf("✓ sent: ip=%s processes=%d cpu=%.0f MHz\n", snap.IP, len(snap.Processes), freq)
		return
	}

	fmt.Println("✗ send failed, snapshot kept in local log")
	if raw, err := json.Marshal(snap); err == nil {
		log.Warn("unsent snapshot", "snapshot", json.RawMessage(raw))
	}
}
