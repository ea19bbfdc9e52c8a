package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"docverify/internal/platform/logger"
)

type loggerFactory func(cmd *cobra.Command) *slog.Logger

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "policyctl",
		Short:         "Manage document verification policies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	newLogger := func(cmd *cobra.Command) *slog.Logger {
		return logger.NewWithWriter(cmd.ErrOrStderr(), logLevel, "text")
	}
	root.AddCommand(
		newValidateCmd(),
		newEvaluateCmd(newLogger),
		newPublishCmd(newLogger),
	)
	return root
}
