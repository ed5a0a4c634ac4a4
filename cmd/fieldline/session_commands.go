package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fieldline/internal/config"
	"fieldline/internal/workflow"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the encrypted portal session",
	}

	sessionCmd.AddCommand(newSessionImportCommand(ctx))
	sessionCmd.AddCommand(newSessionStatusCommand(ctx))
	sessionCmd.AddCommand(newSessionClearCommand(ctx))

	return sessionCmd
}

func newSessionImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <session-file>",
		Short: "Encrypt and store a portal session export",
		Long: "Reads the session state exported from an authenticated browser, " +
			"seals it with the configured session key, and stores only the " +
			"encrypted envelope. The plaintext file should be deleted afterwards.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			plaintext, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read session file: %w", err)
			}

			sessions, err := ctx.sessionFile()
			if err != nil {
				return err
			}
			if err := sessions.Import(plaintext); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session imported to %s\n", sessions.Path())
			return nil
		},
	}
}

func newSessionStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a portal session is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := ctx.sessionFile()
			if err != nil {
				return err
			}
			if _, err := sessions.Envelope(); err != nil {
				if errors.Is(err, workflow.ErrNoSession) {
					fmt.Fprintln(cmd.OutOrStdout(), "No session imported")
					return nil
				}
				return err
			}
			if _, err := sessions.Decrypt(); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Session present but cannot be decrypted with the configured key")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session imported and decryptable")
			return nil
		},
	}
}

func newSessionClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored portal session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := ctx.sessionFile()
			if err != nil {
				return err
			}
			if err := sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
			return nil
		},
	}
}
