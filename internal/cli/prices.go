package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bazaar/pkg/types"
)

func newPricesCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Record price observations",
	}
	cmd.AddCommand(newPricesAddCmd(flags))
	return cmd
}

func newPricesAddCmd(flags *rootFlags) *cobra.Command {
	var in types.AddPriceInput
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Record one observed price for an item",
		Example: `  bazaar prices add --item 3 --price 150`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := in.Validate(); err != nil {
				return err
			}

			backend, _, err := flags.attachMarket()
			if err != nil {
				return err
			}
			defer backend.Detach()

			id, err := backend.AddPrice(commandContext(cmd), in)
			if err != nil {
				return err
			}

			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "item_id": in.ItemID, "price": in.Price})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Price recorded: %d (item %d, price %d)\n", id, in.ItemID, in.Price)
			return nil
		},
	}
	cmd.Flags().Int64Var(&in.ItemID, "item", 0, "item id (required)")
	cmd.Flags().Int64Var(&in.Price, "price", 0, "observed price, a positive integer (required)")
	return cmd
}
