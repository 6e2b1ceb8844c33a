// Package cli implements the bazaar command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bazaar/internal/config"
	"github.com/mesh-intelligence/bazaar/internal/paths"
	"github.com/mesh-intelligence/bazaar/internal/sqlite"
	"github.com/mesh-intelligence/bazaar/pkg/bazaar"
	"github.com/mesh-intelligence/bazaar/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values shared by all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// NewRootCmd creates the top-level "bazaar" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:     "bazaar",
		Short:   "Track crowd-reported item prices in a game economy",
		Long:    "Bazaar records price observations for game items, reports average,\nminimum and maximum prices per item, and serves the market over HTTP.",
		Version: bazaar.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: per-user config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.bazaar-db)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(flags),
		newServeCmd(flags),
		newTagsCmd(flags),
		newItemsCmd(flags),
		newPricesCmd(flags),
		newExportCmd(flags),
		newImportCmd(flags),
	)
	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitError carries an explicit exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// sysErr marks err as a system failure.
func sysErr(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// exitCode maps an error to a process exit code. Store and system
// failures are 2; everything else, including usage errors, is 1.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, types.ErrStore) || errors.Is(err, types.ErrStoreDetached) {
		return exitSysError
	}
	return exitUserError
}

// settings resolves the config directory and loads settings.
func (f *rootFlags) settings() (*config.Settings, error) {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return nil, sysErr("resolve config dir: %w", err)
	}
	s, err := config.Load(configDir, f.dataDir)
	if err != nil {
		return nil, sysErr("load config: %w", err)
	}
	return s, nil
}

// attachMarket loads settings and attaches a SQLite backend. The caller
// must Detach the backend.
func (f *rootFlags) attachMarket() (*sqlite.Backend, *config.Settings, error) {
	s, err := f.settings()
	if err != nil {
		return nil, nil, err
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(s.StoreConfig()); err != nil {
		return nil, nil, sysErr("attach store: %w", err)
	}
	return backend, s, nil
}
