package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bazaar/internal/uploads"
	"github.com/mesh-intelligence/bazaar/pkg/types"
)

func newItemsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List, show and add items",
	}
	cmd.AddCommand(
		newItemsListCmd(flags),
		newItemsShowCmd(flags),
		newItemsAddCmd(flags),
	)
	return cmd
}

func newItemsListCmd(flags *rootFlags) *cobra.Command {
	var tagFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items with price statistics",
		Long: `List every item with its average, minimum and maximum price and trade count.

--tags takes comma-separated tag ids and keeps items carrying any of them.

Example:
  bazaar items list
  bazaar items list --tags 1,7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _, err := flags.attachMarket()
			if err != nil {
				return err
			}
			defer backend.Detach()

			filter := types.ItemFilter{TagIDs: types.ParseTagIDs(tagFilter)}
			items, err := backend.ListItems(commandContext(cmd), filter)
			if err != nil {
				return err
			}

			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), items)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tAVG\tMIN\tMAX\tTRADES\tTAGS")
			for _, it := range items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
					it.ID, it.Name,
					orDash(it.AveragePrice, formatAvg),
					orDash(it.MinPrice, formatInt),
					orDash(it.MaxPrice, formatInt),
					it.TradeCount,
					orDash(it.Tags, formatString),
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&tagFilter, "tags", "", "comma-separated tag ids")
	return cmd
}

func newItemsShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an item's statistics and price history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			backend, _, err := flags.attachMarket()
			if err != nil {
				return err
			}
			defer backend.Detach()

			detail, err := backend.GetItemDetail(commandContext(cmd), id)
			if err != nil {
				return err
			}

			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), detail)
			}
			d := detail.Details
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Item %d: %s\n", d.ID, d.Name)
			if d.ImageURL != nil {
				fmt.Fprintf(out, "Image:   %s\n", *d.ImageURL)
			}
			fmt.Fprintf(out, "Average: %s\nMin:     %s\nMax:     %s\nTrades:  %d\n",
				orDash(d.AveragePrice, formatAvg),
				orDash(d.MinPrice, formatInt),
				orDash(d.MaxPrice, formatInt),
				d.TradeCount,
			)
			if len(detail.History) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			tw := newTable(out)
			fmt.Fprintln(tw, "PRICE\tRECORDED")
			for _, p := range detail.History {
				fmt.Fprintf(tw, "%d\t%s\n", p.Price, p.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newItemsAddCmd(flags *rootFlags) *cobra.Command {
	var (
		name   string
		tagIDs []int64
		image  string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new item",
		Long: `Register a new item with optional tags and image.

Example:
  bazaar items add --name Potion --tag 4
  bazaar items add --name "Iron Sword" --tag 1 --tag 7 --image sword.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := types.AddItemInput{Name: name, TagIDs: tagIDs}
			if err := in.Normalize(); err != nil {
				return err
			}

			backend, s, err := flags.attachMarket()
			if err != nil {
				return err
			}
			defer backend.Detach()

			var store *uploads.Store
			if image != "" {
				store, err = uploads.NewStore(s.UploadDir, s.MaxUploadBytes())
				if err != nil {
					return sysErr("prepare uploads: %w", err)
				}
				f, err := os.Open(image)
				if err != nil {
					return fmt.Errorf("open image: %w", err)
				}
				url, err := store.Save(f)
				f.Close()
				if err != nil {
					return err
				}
				in.ImageURL = &url
			}

			id, err := backend.AddItem(commandContext(cmd), in)
			if err != nil {
				if store != nil {
					if rmErr := store.Remove(*in.ImageURL); rmErr != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: remove orphaned image %s: %v\n", *in.ImageURL, rmErr)
					}
				}
				return err
			}

			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "name": in.Name, "image_url": in.ImageURL})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item added: %d %s\n", id, in.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "item name (required)")
	cmd.Flags().Int64SliceVar(&tagIDs, "tag", nil, "tag id (repeatable)")
	cmd.Flags().StringVar(&image, "image", "", "path to an image file")
	return cmd
}
