package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/mosaic/internal/metrics"
	"github.com/danieljhkim/mosaic/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the /image routes, the built artifacts under /artifacts/ and
Prometheus metrics under /metrics until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		m := metrics.New()
		eng, cleanup, err := newEngine(ctx, m)
		if err != nil {
			return err
		}
		defer cleanup()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		srv := server.New(eng, server.Options{
			AtlasDir:     cfg.OutputDir(),
			PixelsDir:    cfg.PixelsDir(),
			Metrics:      m.Handler(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}, logger)
		if !jsonOutput {
			PrintInfo(fmt.Sprintf("Serving on %s (artifacts under /artifacts/, metrics under /metrics)", addr))
		}
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}
