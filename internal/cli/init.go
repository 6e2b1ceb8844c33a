package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bazaar/internal/config"
	"github.com/mesh-intelligence/bazaar/internal/paths"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize bazaar storage",
		Long:  "Create the configuration file and the market database, then seed the tag vocabulary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, flags)
		},
	}
}

func runInit(cmd *cobra.Command, flags *rootFlags) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return sysErr("resolve config dir: %w", err)
	}

	// Record an explicit data directory so later commands find it.
	file := config.DefaultFile()
	if flags.dataDir != "" {
		dataDir, err := paths.ResolveDataDir(flags.dataDir, "")
		if err != nil {
			return sysErr("resolve data dir: %w", err)
		}
		file.DataDir = dataDir
	}
	created, err := config.EnsureFile(configDir, file)
	if err != nil {
		return sysErr("write config: %w", err)
	}

	backend, s, err := flags.attachMarket()
	if err != nil {
		return err
	}
	if err := backend.Detach(); err != nil {
		return sysErr("finalize storage: %w", err)
	}

	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"config_dir":     s.ConfigDir,
			"config_created": created,
			"db_path":        s.DBPath,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Bazaar initialized successfully")
	fmt.Fprintf(cmd.OutOrStdout(), "config: %s\ndatabase: %s\n", s.ConfigDir, s.DBPath)
	return nil
}
