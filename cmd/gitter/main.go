package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitterhq/gitter/internal/logging"
	"github.com/gitterhq/gitter/pkg/repo"
)

var logLevel = "error"

func main() {
	root := &cobra.Command{
		Use:           "gitter",
		Short:         "Content-addressed version control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level (debug, info, warn, error)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newDiffCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "gitter 0.1.0-dev")
		},
	}
}

// newLogger builds the process logger from the --log-level flag.
func newLogger() (*zap.Logger, error) {
	return logging.New(logLevel)
}

// openRepo opens the repository enclosing the current directory with the
// process logger attached.
func openRepo() (*repo.Repo, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return repo.Open(".", repo.WithLogger(logger))
}
