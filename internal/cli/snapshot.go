package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bazaar/internal/sqlite"
)

func newExportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write the market to JSONL files",
		Long:  "Write tags, items, item tags and prices to one JSONL file per table in <dir>.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _, err := flags.attachMarket()
			if err != nil {
				return err
			}
			defer backend.Detach()

			counts, err := backend.Export(commandContext(cmd), args[0])
			if err != nil {
				return sysErr("export: %w", err)
			}
			return printCounts(cmd.OutOrStdout(), flags.jsonMode, "exported", counts)
		},
	}
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Restore the market from JSONL files",
		Long:  "Restore rows written by export. Rows that already exist or reference missing rows are skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _, err := flags.attachMarket()
			if err != nil {
				return err
			}
			defer backend.Detach()

			counts, err := backend.Import(commandContext(cmd), args[0])
			if err != nil {
				return sysErr("import: %w", err)
			}
			return printCounts(cmd.OutOrStdout(), flags.jsonMode, "imported", counts)
		},
	}
}

func printCounts(w io.Writer, jsonMode bool, verb string, counts sqlite.SnapshotCounts) error {
	if jsonMode {
		return printJSON(w, counts)
	}
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Fprintf(w, "%s %d %s\n", verb, counts[table], table)
	}
	return nil
}
