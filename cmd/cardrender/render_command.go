package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"cardrender/internal/pipeline"
	"cardrender/internal/postprocess"
	"cardrender/internal/preflight"
)

type renderOverrides struct {
	start    int
	end      int
	crop     bool
	fullOnly bool
	format   string
}

// apply copies every flag the user set onto rc.
func (o renderOverrides) apply(cmd *cobra.Command, rc *pipeline.RenderConfig) error {
	flags := cmd.Flags()
	if flags.Changed("start") {
		rc.Start = o.start
	}
	if flags.Changed("end") {
		rc.End = o.end
	}
	if flags.Changed("crop") {
		rc.Crop = o.crop
	}
	if flags.Changed("full-only") {
		rc.OnlyFullCards = o.fullOnly
	}
	if flags.Changed("format") {
		format, err := postprocess.ParseFormat(o.format)
		if err != nil {
			return err
		}
		rc.Format = format
	}
	return nil
}

func addRenderFlags(cmd *cobra.Command, o *renderOverrides) {
	cmd.Flags().BoolVar(&o.crop, "crop", false, "Trim uniform margins from exported images")
	cmd.Flags().StringVar(&o.format, "format", "", "Output image format (png, jpeg, bmp, tiff)")
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var overrides renderOverrides
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a range of cards into layer images and a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			errOut := cmd.ErrOrStderr()
			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
				printPreflight(errOut, failed, shouldColorize(errOut))
				return fmt.Errorf("preflight failed (%d check(s)); run `cardrender check` for details", len(failed))
			}

			orch, err := ctx.newOrchestrator(cmd.Context(), func(rc *pipeline.RenderConfig) error {
				return overrides.apply(cmd, rc)
			})
			if err != nil {
				return err
			}
			rc := orch.Config()
			if err := orch.Start(cmd.Context(), rc.Start, rc.End); err != nil {
				return err
			}

			var bar *progressbar.ProgressBar
			if !noProgress && shouldColorize(errOut) {
				snap := orch.Snapshot()
				bar = progressbar.NewOptions(snap.Last-snap.First+1,
					progressbar.OptionSetWriter(errOut),
					progressbar.OptionSetDescription("Rendering cards"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
					progressbar.OptionThrottle(100*time.Millisecond),
				)
			}

			if err := runBatch(cmd.Context(), orch, bar); err != nil {
				return err
			}
			printBatchResult(cmd.OutOrStdout(), orch.Snapshot(), rc, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	cmd.Flags().IntVar(&overrides.start, "start", 0, "First card index of the range")
	cmd.Flags().IntVar(&overrides.end, "end", 0, "Last card index of the range (inclusive)")
	cmd.Flags().BoolVar(&overrides.fullOnly, "full-only", false, "Export only the full card image")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	addRenderFlags(cmd, &overrides)
	return cmd
}

// runBatch ticks the orchestrator until the batch ends. SIGINT and SIGTERM
// stop the batch; the current card finishes first.
func runBatch(ctx context.Context, orch *pipeline.Orchestrator, bar *progressbar.ProgressBar) error {
	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-sigCtx.Done():
			if ctx.Err() == nil {
				_ = orch.Stop()
			}
		case <-finished:
		}
	}()

	for {
		done, err := orch.Tick(ctx)
		if bar != nil && !done {
			_ = bar.Set(int(orch.Snapshot().Progress.CardsProcessed))
		}
		if errors.Is(err, pipeline.ErrNotRunning) {
			break
		}
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return nil
}

func printBatchResult(out io.Writer, snap pipeline.Snapshot, rc pipeline.RenderConfig, colorize bool) {
	prev := snap.Previous
	if prev == nil {
		return
	}
	progress := prev.Progress
	switch prev.State {
	case pipeline.StateCompleted:
		fmt.Fprintln(out, renderStatusLine("Batch", statusOK, fmt.Sprintf("completed in %s", prev.Duration.Round(time.Millisecond)), colorize))
	case pipeline.StateCancelled:
		fmt.Fprintln(out, renderStatusLine("Batch", statusWarn, "stopped", colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Batch", statusError, prev.State.String(), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Run ID", statusInfo, prev.RunID, colorize))
	fmt.Fprintln(out, renderStatusLine("Cards", statusInfo, fmt.Sprintf("%d of %d", progress.CardsProcessed, progress.CardsToProcess), colorize))

	images := fmt.Sprintf("%d written", progress.ImagesCompleted)
	kind := statusInfo
	if progress.ImagesFailed > 0 {
		images = fmt.Sprintf("%s, %d failed", images, progress.ImagesFailed)
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Images", kind, images, colorize))
	fmt.Fprintln(out, renderStatusLine("Render directory", statusInfo, rc.RenderDir, colorize))
	if prev.State == pipeline.StateCompleted {
		fmt.Fprintln(out, renderStatusLine("Manifest", statusInfo, rc.ManifestPath, colorize))
	}
}
