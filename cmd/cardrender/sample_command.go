package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardrender/internal/pipeline"
)

func newSampleCommand(ctx *commandContext) *cobra.Command {
	var overrides renderOverrides
	var index int

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Capture a single sample image of one card",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := ctx.newOrchestrator(cmd.Context(), func(rc *pipeline.RenderConfig) error {
				return overrides.apply(cmd, rc)
			})
			if err != nil {
				return err
			}
			path, err := orch.Sample(cmd.Context(), index)
			if err != nil {
				return fmt.Errorf("sample card %d: %w", index, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample image to %s\n", path)
			return nil
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "Catalog index of the card to capture")
	addRenderFlags(cmd, &overrides)
	return cmd
}
