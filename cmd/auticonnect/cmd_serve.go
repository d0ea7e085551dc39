package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/auticonnect/internal/escalation"
	"github.com/user/auticonnect/internal/generator"
	"github.com/user/auticonnect/internal/mediator"
	"github.com/user/auticonnect/internal/notify"
	"github.com/user/auticonnect/internal/policy"
	"github.com/user/auticonnect/internal/scheduler"
	sig "github.com/user/auticonnect/internal/signal"
	"github.com/user/auticonnect/internal/state"
	"github.com/user/auticonnect/internal/telegram"
	"github.com/user/auticonnect/internal/tracker"
	"github.com/user/auticonnect/internal/types"
	"github.com/user/auticonnect/internal/webhook"
	"github.com/user/auticonnect/pkg/llm"
	"github.com/user/auticonnect/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the auticonnect daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "auticonnect.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (set it in config or TELEGRAM_BOT_TOKEN)")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores
	participants := state.NewParticipantStore(cfg.DataDir)
	groups := state.NewGroupStore(cfg.DataDir)
	activities := state.NewActivityStore(cfg.DataDir)
	turns := state.NewTurnLog(cfg.DataDir)
	alerts := state.NewAlertStore(cfg.DataDir)

	// LLM provider and generator
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	prompts, err := generator.NewPromptBuilder(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create prompt builder: %w", err)
	}
	gen := generator.New(provider, prompts)

	// Mediation core
	extractor := sig.New(gen)
	trk := tracker.New(cfg.DecayHalfLife(), cfg.Mediation.WindowCapacity)
	pol := policy.New(cfg.Mediation.AlertThreshold, cfg.EscalationCooldown())
	registry := notify.NewRegistry()
	pipeline := escalation.New(alerts, registry, cfg.EscalationCooldown())

	queue := mediator.NewQueue(int64(cfg.MaxConcurrent))

	// Telegram adapter
	adapter, err := telegram.New(cfg.Telegram.Token, queue, participants, groups, activities, alerts, pipeline)
	if err != nil {
		return fmt.Errorf("create telegram adapter: %w", err)
	}

	engine := mediator.NewEngine(mediator.Deps{
		Extractor:    extractor,
		Replier:      gen,
		Tracker:      trk,
		Policy:       pol,
		Escalator:    pipeline,
		Transport:    adapter,
		Participants: participants,
		Groups:       groups,
		Activities:   activities,
		Turns:        turns,
	})
	queue.SetProcessor(engine.Process)

	// Alerts go to ATs over Telegram; a successful handoff marks the alert
	// delivered.
	registry.Register("telegram", func(ctx context.Context, alert *types.AlertRecord) error {
		if err := adapter.DeliverAlert(ctx, alert); err != nil {
			return err
		}
		return pipeline.HandleStatus(ctx, alert.ID, types.AlertDelivered, "")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.Start(ctx)
	defer queue.Stop()

	go adapter.Start(ctx)
	slog.Info("telegram adapter started")

	// Scheduler: activity lifecycle and idle-session eviction
	sched := scheduler.New(activities, groups, adapter, trk, cfg.SessionTTL())
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	slog.Info("auticonnect started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"alert_threshold", cfg.Mediation.AlertThreshold,
		"escalation_cooldown", cfg.EscalationCooldown().String(),
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidPath,
	)

	// Operational HTTP server
	if cfg.HTTP.Enabled {
		srv := webhook.NewServer(alerts, pipeline, groups, turns)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: srv,
		}
		go func() {
			slog.Info("http server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		s := <-sigChan
		if s == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", s)
		return nil
	}
}
