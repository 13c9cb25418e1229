// FleetPulse — fleet-wide host telemetry: sampling agents + central collector.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/fleetpulse/fleetpulse/internal/agent"
	"github.com/fleetpulse/fleetpulse/internal/config"
	"github.com/fleetpulse/fleetpulse/internal/logging"
	"github.com/fleetpulse/fleetpulse/internal/server"
)

const version = "v0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "fleetpulse",
		Short: "FleetPulse — fleet host telemetry pipeline",
		Long: `FleetPulse is a single-binary telemetry pipeline: lightweight agents
sample host metrics (CPU, processes, users, OS identity) and push them to a
central collector that aggregates the fleet into rolling statistics and alerts.`,
		SilenceUsage: true,
	}

	// ── server subcommand ─────────────────────────────────────────────────────
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the FleetPulse collector (ingest API + dashboard)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			log := logging.New("collector", os.Stdout)
			store, err := server.OpenStore(cfg.DBPath, log)
			if err != nil {
				return fmt.Errorf("opening record store: %w", err)
			}

			gin.SetMode(gin.ReleaseMode)
			engine := gin.New()
			engine.Use(gin.Recovery())
			server.NewAPI(store, log).Register(engine, cfg.AgentToken)
			server.RegisterStaticFiles(engine)

			addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
			fmt.Printf("  ✓ FleetPulse collector %s → http://%s\n", version, addr)

			srv := &http.Server{Addr: addr, Handler: engine}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt)

			select {
			case err := <-errCh:
				return err
			case <-quit:
				fmt.Println("\n  → Shutting down gracefully…")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	// ── agent subcommand ──────────────────────────────────────────────────────
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the FleetPulse agent on this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// CLI flags override config values.
			if endpoint, _ := cmd.Flags().GetString("endpoint"); endpoint != "" {
				cfg.AgentEndpoint = endpoint
			}
			if interval, _ := cmd.Flags().GetInt("interval"); interval > 0 {
				cfg.AgentInterval = interval
			}
			if token, _ := cmd.Flags().GetString("token"); token != "" {
				cfg.AgentToken = token
			}

			log, logFile, err := logging.NewWithFile("agent", cfg.AgentLogPath)
			if err != nil {
				return fmt.Errorf("opening agent log: %w", err)
			}
			defer logFile.Close()

			fmt.Printf("  ✓ FleetPulse agent %s → %s every %ds\n", version, cfg.AgentEndpoint, cfg.AgentInterval)
			return agent.Run(cfg, log)
		},
	}
	agentCmd.Flags().String("endpoint", "", "Collector ingest URL, e.g. http://10.0.0.1:8000/send")
	agentCmd.Flags().Int("interval", 0, "Sampling interval in seconds (overrides config)")
	agentCmd.Flags().String("token", "", "Pre-shared agent token (overrides config)")

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print FleetPulse version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FleetPulse %s\n", version)
		},
	}

	root.AddCommand(serverCmd, agentCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
