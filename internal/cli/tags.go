package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTagsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List item tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _, err := flags.attachMarket()
			if err != nil {
				return err
			}
			defer backend.Detach()

			tags, err := backend.ListTags(commandContext(cmd))
			if err != nil {
				return err
			}

			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), tags)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME")
			for _, t := range tags {
				fmt.Fprintf(tw, "%d\t%s\n", t.ID, t.Name)
			}
			return tw.Flush()
		},
	}
}
