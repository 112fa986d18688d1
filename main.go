package main

import (
	"os"

	"github.com/spf13/cobra"

	"video-rewrite/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "video-rewrite",
		Short:         "Re-encode videos through a frame filter",
		Long:          "Re-encode videos through a frame filter, keeping audio, timing and orientation.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if logLevel == "" {
				return nil
			}
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logging.SetLevel(level)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newRunCommand(),
		newServeCommand(),
		newFiltersCommand(),
		newInspectCommand(),
		newVersionCommand(),
	)
	return root
}
