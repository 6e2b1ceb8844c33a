package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bazaar/pkg/bazaar"
)

const modulePath = "github.com/mesh-intelligence/bazaar"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bazaar version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "bazaar v%s\nmodule: %s\n", bazaar.Version, modulePath)
			return nil
		},
	}
}
