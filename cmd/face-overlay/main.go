package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/face-overlay/internal/config"
	"github.com/ironsheep/face-overlay/internal/logger"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// flagValues holds the global flags. They only override the loaded
// configuration when set on the command line.
type flagValues struct {
	envFile     string
	device      string
	width       int
	height      int
	fps         int
	ffmpeg      string
	detectorURL string
	detectorCmd string
	threshold   float64
	refreshRate float64
	assetBase   string
	glyphFont   string
	exportDir   string
	debug       bool
	logLevel    string
	logFile     string
}

var (
	flags flagValues

	// cfg and log are ready once the root PersistentPreRunE has run.
	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "face-overlay",
	Short:         "Live camera face filters driven over MCP",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(flags.envFile)
		if err != nil {
			return err
		}
		applyFlags(cmd.Flags(), &flags, c)
		if err := c.Validate(); err != nil {
			return err
		}

		l, err := logger.New(logger.Options{Level: c.LogLevel, File: c.LogFile})
		if err != nil {
			return err
		}
		cfg, log = c, l
		log.WithFields(logrus.Fields{
			"version": Version,
			"commit":  GitCommit,
		}).Debug("configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("face-overlay %s\n  Build time: %s\n  Git commit: %s\n", Version, BuildTime, GitCommit))

	bindFlags(rootCmd.PersistentFlags(), &flags)
}

// bindFlags registers the global flags on pf.
func bindFlags(pf *pflag.FlagSet, v *flagValues) {
	pf.StringVar(&v.envFile, "env-file", "", "Load settings from this .env file (default ./.env when present)")
	pf.StringVarP(&v.device, "device", "d", "", "Camera device or video file")
	pf.IntVar(&v.width, "width", 0, "Requested frame width")
	pf.IntVar(&v.height, "height", 0, "Requested frame height")
	pf.IntVar(&v.fps, "fps", 0, "Requested capture frame rate")
	pf.StringVar(&v.ffmpeg, "ffmpeg", "", "ffmpeg binary")
	pf.StringVar(&v.detectorURL, "detector-url", "", "WebSocket URL of the face detection service")
	pf.StringVar(&v.detectorCmd, "detector-cmd", "", "Command line of a local detector worker")
	pf.Float64VarP(&v.threshold, "threshold", "t", 0, "Minimum detection confidence (0-1]")
	pf.Float64Var(&v.refreshRate, "refresh-hz", 0, "Compositing rate")
	pf.StringVar(&v.assetBase, "asset-base", "", "Directory or URL prefix holding filter artwork")
	pf.StringVar(&v.glyphFont, "glyph-font", "", "TrueType/OpenType font used for glyph overlays")
	pf.StringVarP(&v.exportDir, "export-dir", "o", "", "Directory for exported frames")
	pf.BoolVar(&v.debug, "debug", false, "Draw face boxes and landmarks")
	pf.StringVar(&v.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&v.logFile, "log-file", "", "Also write logs to this rotated file")
}

// applyFlags copies the flags the user actually set over c.
func applyFlags(fs *pflag.FlagSet, v *flagValues, c *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("device", func() { c.CameraDevice = v.device })
	set("width", func() { c.Width = v.width })
	set("height", func() { c.Height = v.height })
	set("fps", func() { c.FrameRate = v.fps })
	set("ffmpeg", func() { c.FFmpegBinary = v.ffmpeg })
	set("detector-url", func() { c.DetectorURL, c.DetectorCommand = v.detectorURL, "" })
	set("detector-cmd", func() { c.DetectorCommand = v.detectorCmd })
	set("threshold", func() { c.Threshold = v.threshold })
	set("refresh-hz", func() { c.RefreshRate = v.refreshRate })
	set("asset-base", func() { c.AssetBase = v.assetBase })
	set("glyph-font", func() { c.GlyphFont = v.glyphFont })
	set("export-dir", func() { c.ExportDir = v.exportDir })
	set("debug", func() { c.Debug = v.debug })
	set("log-level", func() { c.LogLevel = v.logLevel })
	set("log-file", func() { c.LogFile = v.logFile })

	// A worker command on the command line replaces the URL unless both
	// were given, which Validate rejects.
	if fs.Changed("detector-cmd") && !fs.Changed("detector-url") {
		c.DetectorURL = ""
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "face-overlay: %v\n", err)
		stop()
		os.Exit(1)
	}
}
