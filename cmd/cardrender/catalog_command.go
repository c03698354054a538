package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cardrender/internal/catalog"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the card catalog",
	}
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog cards with their indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cmd.Context(), cfg.Catalog)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			out := cmd.OutOrStdout()
			if cat.Len() == 0 {
				fmt.Fprintln(out, "Catalog is empty")
				return nil
			}

			fields := cat.Fields()
			headers := append([]string{"#"}, displayHeaders(fields)...)
			aligns := make([]columnAlignment, len(headers))
			aligns[0] = alignRight

			count := cat.Len()
			if limit > 0 && limit < count {
				count = limit
			}
			rows := make([][]string, 0, count)
			for i := range count {
				record := cat.At(i)
				row := []string{strconv.Itoa(i)}
				for _, field := range fields {
					row = append(row, truncateCell(record.String(field)))
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			if count < cat.Len() {
				fmt.Fprintf(out, "Showing %d of %d cards\n", count, cat.Len())
			} else {
				fmt.Fprintf(out, "%d cards\n", cat.Len())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many cards")
	return cmd
}
