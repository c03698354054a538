package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"cardrender/internal/config"
	"cardrender/internal/manifest"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect the render manifest",
	}
	manifestCmd.AddCommand(newManifestShowCommand(ctx))
	return manifestCmd
}

func newManifestShowCommand(ctx *commandContext) *cobra.Command {
	var pathFlag string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the manifest written by the last completed batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(pathFlag)
			if path == "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				path = cfg.Paths.ManifestPath
			} else {
				expanded, err := config.ExpandPath(path)
				if err != nil {
					return fmt.Errorf("resolve manifest path: %w", err)
				}
				path = expanded
			}

			table, err := manifest.ReadFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("no manifest at %s; run `cardrender render` first", path)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(table.Rows))
			for _, row := range table.Rows {
				cells := make([]string, len(row))
				for i, cell := range row {
					cells[i] = truncateCell(cell)
				}
				rows = append(rows, cells)
			}
			fmt.Fprintln(out, renderTable(displayHeaders(table.Header), rows, nil))
			fmt.Fprintf(out, "%d rows in %s\n", len(table.Rows), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Manifest file to read (defaults to paths.manifest_path)")
	return cmd
}
