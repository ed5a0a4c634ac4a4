package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fieldline/internal/config"
	"fieldline/internal/pipeline"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the property queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				var statuses []pipeline.Status
				if trimmed := strings.TrimSpace(statusFlag); trimmed != "" {
					status, ok := pipeline.ParseStatus(trimmed)
					if !ok {
						return fmt.Errorf("unknown status %q", trimmed)
					}
					statuses = append(statuses, status)
				}

				properties, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(properties) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No properties found")
					return nil
				}

				rows := make([][]string, 0, len(properties))
				for _, property := range properties {
					rows = append(rows, []string{
						strconv.FormatInt(property.ID, 10),
						property.FullAddress,
						string(property.Status),
						property.CustomerName,
						yesNo(property.DataExtracted),
						property.SCECaseID,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Address", "Status", "Customer", "Extracted", "Case"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status")
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		lat float64
		lng float64
	)

	cmd := &cobra.Command{
		Use:   "add <street-number> <street-name> <zip>",
		Short: "Queue a property for discovery",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				input := pipeline.NewPropertyInput{
					StreetNumber: args[0],
					StreetName:   args[1],
					ZipCode:      args[2],
				}
				if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
					input.Latitude = &lat
					input.Longitude = &lng
				}

				created, err := store.CreateProperties(cmd.Context(), []pipeline.NewPropertyInput{input})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued property %d: %s\n",
					created[0].ID, created[0].FullAddress)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude in decimal degrees")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Re-queue failed properties for discovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				ids, err := parseIDs(args)
				if err != nil {
					return err
				}
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-queued %d propert%s\n", count, pluralY(count))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete completed or failed properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				statuses := []pipeline.Status{pipeline.StatusComplete, pipeline.StatusFailed}
				if trimmed := strings.TrimSpace(statusFlag); trimmed != "" {
					status, ok := pipeline.ParseStatus(trimmed)
					if !ok {
						return fmt.Errorf("unknown status %q", trimmed)
					}
					statuses = []pipeline.Status{status}
				}

				count, err := store.DeleteByStatus(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d propert%s\n", count, pluralY(count))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Delete only the given status (default: complete and failed)")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue totals by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, heading(out, "Queue totals"))

				rows := make([][]string, 0, len(pipeline.AllStatuses()))
				total := 0
				for _, status := range pipeline.AllStatuses() {
					count, err := store.CountByStatus(cmd.Context(), status)
					if err != nil {
						return err
					}
					total += count
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})

				fmt.Fprintln(out, renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid property id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pluralY(count int64) string {
	if count == 1 {
		return "y"
	}
	return "ies"
}
