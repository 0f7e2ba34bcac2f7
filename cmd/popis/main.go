// Command popis serves the cycle-count reconciliation API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/popis/internal/config"
)

// rootOptions holds flags shared by all commands.
type rootOptions struct {
	ConfigPath string
	DBPath     string
	LogPath    string
	Verbose    bool
}

// load reads the configuration and applies flags that were set explicitly.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = o.DBPath
	}
	if cmd.Flags().Changed("log") {
		cfg.LogPath = o.LogPath
	}
	return cfg, cfg.Validate()
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "popis",
		Short:         "Cycle-count reconciliation server",
		Long:          "popis records physical stock counts in sessions and turns approved discrepancies into stock adjustments.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.DBPath, "db", "d", "popis.sqlite3", "SQLite database path")
	cmd.PersistentFlags().StringVarP(&opts.LogPath, "log", "l", "", "log file path (default: stdout/stderr only)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newInitCommand(opts))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
