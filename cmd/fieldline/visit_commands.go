package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fieldline/internal/config"
	"fieldline/internal/documents"
	"fieldline/internal/pipeline"
)

func newVisitCommand(ctx *commandContext) *cobra.Command {
	visitCmd := &cobra.Command{
		Use:   "visit",
		Short: "Record field visit outcomes",
	}

	visitCmd.AddCommand(newVisitDocumentCommand(ctx))
	visitCmd.AddCommand(newVisitCompleteCommand(ctx))
	visitCmd.AddCommand(newVisitFailCommand(ctx))

	return visitCmd
}

func newVisitDocumentCommand(ctx *commandContext) *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "document <property-id> <doc-type>",
		Short: "Attach a captured document to a property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid property id %q", args[0])
				}
				stored := ""
				if trimmed := strings.TrimSpace(filePath); trimmed != "" {
					source, err := config.ExpandPath(trimmed)
					if err != nil {
						return err
					}
					stored, err = documents.Archive(cfg.DocumentsDir(), id, args[1], source)
					if err != nil {
						return fmt.Errorf("archive document: %w", err)
					}
				}
				doc, err := store.AddDocument(cmd.Context(), id, args[1], stored)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s document for property %d\n", doc.DocType, id)
				if stored != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Archived copy: %s\n", stored)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "Path to the captured file to archive")
	return cmd
}

func newVisitCompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <property-id>",
		Short: "Mark a field visit as completed",
		Long: "Transitions a property to visited once all required document types " +
			"have been attached. Fails with the missing document types otherwise.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid property id %q", args[0])
				}
				property, err := store.CompleteVisit(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Property %d visited: %s\n", id, property.FullAddress)
				return nil
			})
		},
	}
}

func newVisitFailCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "fail <property-id>",
		Short: "Mark a claimed property as failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid property id %q", args[0])
				}
				trimmed := strings.TrimSpace(reason)
				if trimmed == "" {
					return fmt.Errorf("--reason is required")
				}
				if err := store.MarkFailed(cmd.Context(), id, trimmed); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Property %d marked failed\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Failure reason retained for audit")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
