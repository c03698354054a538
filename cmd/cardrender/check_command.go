package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cardrender/internal/notifications"
	"cardrender/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, catalog and scene layout before rendering",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			printPreflight(out, results, colorize)

			if notify {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Notifications", colorize) {
					fmt.Fprintln(out, line)
				}
				ntfy := cfg.Notifications.NtfyTopic != ""
				mqtt := cfg.Notifications.MQTTBroker != ""
				fmt.Fprintln(out, renderStatusLine("ntfy", statusInfo, yesNo(ntfy), colorize))
				fmt.Fprintln(out, renderStatusLine("MQTT", statusInfo, yesNo(mqtt), colorize))
				if !ntfy && !mqtt {
					fmt.Fprintln(out, renderStatusLine("Test", statusWarn, "no notifier configured", colorize))
				} else if err := notifications.NewService(cfg, ctx.log()).TestNotification(cmd.Context()); err != nil {
					fmt.Fprintln(out, renderStatusLine("Test", statusError, err.Error(), colorize))
					return fmt.Errorf("test notification: %w", err)
				} else {
					fmt.Fprintln(out, renderStatusLine("Test", statusOK, "sent", colorize))
				}
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&notify, "notify", false, "Also send a test notification")
	return cmd
}

func printPreflight(out io.Writer, results []preflight.Result, colorize bool) {
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
}
