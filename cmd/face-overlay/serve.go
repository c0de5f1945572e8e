package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/face-overlay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP control server on stdin/stdout",
	Long: `Run the MCP control server on stdin/stdout.

Configure it in your MCP client (e.g., Claude Desktop). Logs go to stderr
because stdout carries the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(a.session, a.registry, a.assets, server.Options{
			ExportDir: cfg.ExportDir,
			Version:   Version,
		}, log)

		log.WithField("version", Version).Info("control server ready")

		// The stdin read cannot be interrupted, so a signal returns without
		// waiting for Run.
		errc := make(chan error, 1)
		go func() { errc <- srv.Run(ctx, os.Stdin, os.Stdout) }()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
