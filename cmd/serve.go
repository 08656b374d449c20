package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/mordomohq/mordomo/bus"
	"github.com/mordomohq/mordomo/config"
	"github.com/mordomohq/mordomo/homeassistant"
	"github.com/mordomohq/mordomo/logger"
	"github.com/mordomohq/mordomo/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run mordomo as a long-lived service",
	Long: `Run mordomo as a long-running service: load the job store, arm every
enabled job, and fire their actions against Home Assistant on schedule.

The store file is re-read periodically so external edits are picked up
without a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.HomeAssistant.Token == "" {
		return fmt.Errorf("home assistant token is not configured; run 'mordomo onboard' first")
	}

	storePath, err := cfg.JobStorePath()
	if err != nil {
		return err
	}

	b := bus.NewBus(64)
	client := homeassistant.NewClient(cfg.HomeAssistant.BaseURL, cfg.HomeAssistant.Token, cfg.RequestTimeout())
	registry := homeassistant.NewRegistryClient(cfg.HomeAssistant.BaseURL, cfg.HomeAssistant.Token, cfg.RequestTimeout())
	executor := homeassistant.NewExecutor(client, registry, b)

	jobs := scheduler.New(scheduler.Config{
		Store:    scheduler.NewFileStore(storePath),
		Executor: executor,
	})
	jobs.AttachBus(b)
	if err := jobs.Load(); err != nil {
		jobs.Shutdown()
		b.Close()
		return fmt.Errorf("failed to load job store: %w", err)
	}

	// Periodic reload picks up edits made while the service runs.
	reloader, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := reloader.NewJob(
		gocron.DurationJob(cfg.StoreReloadInterval()),
		gocron.NewTask(func() {
			if err := jobs.Load(); err != nil {
				logger.Warn("failed to reload job store", "err", err)
			}
		}),
	); err != nil {
		return err
	}
	reloader.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("mordomo service started", "store", storePath, "jobs", len(jobs.Jobs()))
	fmt.Println("mordomo is running. Press Ctrl+C to stop.")

	<-ctx.Done()

	if err := reloader.Shutdown(); err != nil {
		logger.Error("error stopping reloader", "err", err)
	}
	if err := jobs.Save(); err != nil {
		logger.Error("error saving job store", "err", err)
	}
	jobs.Shutdown()
	b.Close()

	logger.Info("mordomo service stopped")
	return nil
}
