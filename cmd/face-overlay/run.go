package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ironsheep/face-overlay/internal/session"
)

type runOptions struct {
	filter   string
	duration time.Duration
	frames   int
	noExport bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture headless for a while, then export the last frame",
	Example: `  face-overlay run --filter fruit-crown --duration 10s
  face-overlay run -f milk-mustache --frames 120 -o ./shots`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCapture(cmd.Context(), runOpts)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.filter, "filter", "f", "", "Filter to apply (see 'face-overlay filters')")
	runCmd.Flags().DurationVar(&runOpts.duration, "duration", 5*time.Second, "How long to capture")
	runCmd.Flags().IntVarP(&runOpts.frames, "frames", "n", 0, "Stop after this many composited frames (0 = no limit)")
	runCmd.Flags().BoolVar(&runOpts.noExport, "no-export", false, "Skip writing the final frame")
	rootCmd.AddCommand(runCmd)
}

// pollInterval is how often run samples the session counters.
const pollInterval = 100 * time.Millisecond

func runCapture(ctx context.Context, opts runOptions) error {
	if opts.duration <= 0 && opts.frames <= 0 {
		return errors.New("either --duration or --frames must be positive")
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.filter != "" {
		if _, err := a.session.SelectFilter(opts.filter); err != nil {
			return err
		}
		// Give the artwork a chance to load so the first frames are not
		// glyph fallbacks.
		select {
		case <-a.prefetched:
		case <-time.After(5 * time.Second):
			log.Warn("filter artwork still loading, starting anyway")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := a.session.Start(ctx); err != nil {
		return err
	}

	total := -1
	if opts.frames > 0 {
		total = opts.frames
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("🎭 Compositing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(pollInterval),
	)

	var deadline <-chan time.Time
	if opts.duration > 0 {
		timer := time.NewTimer(opts.duration)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	status := a.session.Status()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			status = a.session.Status()
			bar.Set64(int64(status.Counters.FramesDrawn))
			if status.State != session.Running {
				break loop
			}
			if opts.frames > 0 && status.Counters.FramesDrawn >= uint64(opts.frames) {
				break loop
			}
		}
	}
	bar.Finish()

	a.session.Stop()
	status = a.session.Status()
	fmt.Fprintf(os.Stderr, "\n🏁 Capture finished: %d frames drawn, %d skipped, %d detector errors.\n",
		status.Counters.FramesDrawn, status.Counters.FramesSkipped, status.Counters.DetectorErrors)
	if status.Message != "" {
		fmt.Fprintf(os.Stderr, "   %s\n", status.Message)
	}

	if opts.noExport {
		return nil
	}
	path, err := a.session.Export(cfg.ExportDir)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
