package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fieldline/internal/config"
	"fieldline/internal/extraction"
	"fieldline/internal/notifications"
	"fieldline/internal/pipeline"
	"fieldline/internal/portal"
	"fieldline/internal/retry"
	"fieldline/internal/sessionvault"
	"fieldline/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Manage extraction runs",
	}

	runCmd.AddCommand(newRunCreateCommand(ctx))
	runCmd.AddCommand(newRunProcessCommand(ctx))
	runCmd.AddCommand(newRunShowCommand(ctx))

	return runCmd
}

func newRunCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Claim all pending properties into a new extraction run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				sessions, err := ctx.sessionFile()
				if err != nil {
					return err
				}
				envelope, err := sessions.Envelope()
				if err != nil {
					if errors.Is(err, workflow.ErrNoSession) {
						return errors.New("no portal session imported; run `fieldline session import` first")
					}
					return err
				}

				var ids []int64
				for {
					claimed, err := store.ClaimNextForScrape(cmd.Context())
					if err != nil {
						return err
					}
					if claimed == nil {
						break
					}
					ids = append(ids, claimed.ID)
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending properties to claim")
					return nil
				}

				run, err := store.CreateRun(cmd.Context(), envelope, ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created run %s with %d properties\n", run.ID, len(ids))
				fmt.Fprintf(cmd.OutOrStdout(), "Process it with: fieldline run process %s\n", run.ID)
				return nil
			})
		},
	}
}

func newRunProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <run-id>",
		Short: "Process an extraction run against the portal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				vault, err := sessionvault.New(cfg.Portal.SessionKey)
				if err != nil {
					return err
				}
				client, err := portal.NewClient(cfg, nil)
				if err != nil {
					return err
				}
				policy := retry.Policy{
					MaxAttempts:  cfg.Workflow.RetryMaxAttempts,
					InitialDelay: time.Duration(cfg.Workflow.RetryInitialMs) * time.Millisecond,
					MaxDelay:     time.Duration(cfg.Workflow.RetryMaxMs) * time.Millisecond,
					Multiplier:   2,
				}
				notifier := cliRunNotifier{notifications.NewService(cfg)}
				processor := extraction.NewProcessor(store, vault, policy, notifier, nil)

				run, err := processor.ProcessRun(cmd.Context(), args[0], client)
				if err != nil {
					return err
				}
				printRunSummary(cmd, run)
				return nil
			})
		},
	}
}

func newRunShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show extraction runs, or one run's per-item results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				if len(args) == 0 {
					return listRuns(cmd, store)
				}
				return showRun(cmd, store, args[0])
			})
		},
	}
}

func listRuns(cmd *cobra.Command, store *pipeline.Store) error {
	runs, err := store.ListRuns(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No extraction runs")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			string(run.Status),
			strconv.Itoa(run.ProcessedCount),
			strconv.Itoa(run.SuccessCount),
			strconv.Itoa(run.FailureCount),
			formatTime(run.StartedAt),
			formatTime(run.FinishedAt),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Run", "Status", "Processed", "Succeeded", "Failed", "Started", "Finished"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func showRun(cmd *cobra.Command, store *pipeline.Store, runID string) error {
	run, err := store.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	printRunSummary(cmd, run)

	items, err := store.RunItems(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.PropertyID, 10),
			string(item.Status),
			item.ErrorMessage,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Property", "Status", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	))
	return nil
}

func printRunSummary(cmd *cobra.Command, run *pipeline.ExtractionRun) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s (%d processed, %d succeeded, %d failed)\n",
		run.ID, run.Status, run.ProcessedCount, run.SuccessCount, run.FailureCount)
	if run.ErrorSummary != "" {
		fmt.Fprintf(out, "Error summary: %s\n", run.ErrorSummary)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

// cliRunNotifier forwards processor events to the configured notification
// service, dropping delivery errors since the CLI prints results directly.
type cliRunNotifier struct {
	svc notifications.Service
}

func (n cliRunNotifier) RunCompleted(ctx context.Context, run *pipeline.ExtractionRun) {
	_ = n.svc.NotifyRunCompleted(ctx, run)
}

func (n cliRunNotifier) RunFailed(ctx context.Context, run *pipeline.ExtractionRun, reason string) {
	_ = n.svc.NotifyRunFailed(ctx, run, reason)
}

func (n cliRunNotifier) VisitReady(ctx context.Context, property *pipeline.Property) {
	_ = n.svc.NotifyVisitReady(ctx, property)
}
