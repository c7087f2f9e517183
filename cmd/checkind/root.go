package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/checkin-engine/internal/config"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "checkind",
		Short: "Offline-first event check-in engine",
		Long: "checkind runs the check-in device daemon: it admits badge scans into a\n" +
			"durable local queue and synchronizes them to the remote attendance store\n" +
			"whenever connectivity allows.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to an env file (missing file is ignored)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSyncOnceCommand(opts))
	cmd.AddCommand(newPurgeCommand(opts))
	cmd.AddCommand(newEventsCommand(opts))
	cmd.AddCommand(newBadgeCommand(opts))

	return cmd
}

// loadEnvFile loads variables from the env file into the process
// environment. The default ".env" is optional; an explicitly named file
// must exist.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && path == ".env" && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	path := o.configFile
	if path == "" {
		path = os.Getenv("CHECKIN_CONFIG_FILE")
	}
	return config.Load(path)
}
