package main

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"fieldline/internal/config"
	"fieldline/internal/daemon"
	"fieldline/internal/pipeline"
	"fieldline/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				out := cmd.OutOrStdout()

				running, err := daemonRunning(cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Daemon: %s\n", runningLabel(running))
				fmt.Fprintf(out, "Database: %s\n\n", store.Path())

				fmt.Fprintln(out, heading(out, "Readiness"))
				rows := make([][]string, 0, 8)
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					rows = append(rows, []string{result.Name, passLabel(result.Passed), result.Detail})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Check", "State", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

// daemonRunning probes the daemon lock file. Acquiring the lock proves no
// daemon holds it; the probe releases it immediately.
func daemonRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(daemon.LockPath(cfg))
	acquired, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if acquired {
		if err := lock.Unlock(); err != nil {
			return false, fmt.Errorf("release daemon lock probe: %w", err)
		}
		return false, nil
	}
	return true, nil
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func passLabel(passed bool) string {
	if passed {
		return "ok"
	}
	return "failed"
}
