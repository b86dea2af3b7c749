// Package main provides the depot binary entry point. Depot inspects and
// validates the declarative configuration documents of a science data
// repository: datastore descriptors, path-template dictionaries, and the
// storage-class registry.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configDir string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:     "depot",
		Short:   "Inspect and validate data repository configuration",
		Version: Version,
		Long: `Depot loads the three configuration documents of a science data
repository - the storage-class registry, the template dictionary, and the
datastore descriptors - validates their structural properties, and answers
where and how a dataset would be stored.

The documents themselves carry no behavior; the consuming data-access
runtime interprets them. Depot checks the properties that can be checked
without that runtime: placeholder grammar, inheritance and component
references, qualifier scoping, and formatter mappings.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configDir, "config", "c", "", "configuration directory (defaults to embedded documents)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		validateCmd(&configDir),
		classesCmd(&configDir),
		renderCmd(&configDir),
		lookupCmd(&configDir),
		watchCmd(&configDir),
	)
	return cmd
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("bad log level %q: %w", level, err)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(handler))
	return nil
}
