package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fieldline/internal/config"
	"fieldline/internal/daemon"
	"fieldline/internal/logging"
	"fieldline/internal/pipeline"
	"fieldline/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the fieldline background daemon",
		Long:  "Runs the scrape and submit lanes until interrupted. Only one daemon may run per data directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				return runDaemon(cmd, cfg, store)
			})
		},
	}
}

func runDaemon(cmd *cobra.Command, cfg *config.Config, store *pipeline.Store) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	manager, err := workflow.NewManager(cfg, store, logger)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Start(sigCtx); err != nil {
		return err
	}

	<-sigCtx.Done()
	logger.Info("shutting down")
	d.Stop()
	if err := manager.LastError(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("daemon exited with outstanding error", logging.Error(err))
	}
	return nil
}
