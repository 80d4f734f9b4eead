package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sqlxpert/lights-off-aws/internal/httpapi"
	"github.com/sqlxpert/lights-off-aws/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API: health checks, Prometheus scrape, DLQ inspection, audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		metrics.Register(prometheus.DefaultRegisterer)

		engine := httpapi.NewRouter(rt.db, rt.rdb, rt.repo, rt.queueName())
		rt.log.Info("serve.starting", map[string]any{"port": rt.cfg.HTTPPort})

		srvErr := make(chan error, 1)
		go func() {
			srvErr <- engine.Run(":" + rt.cfg.HTTPPort)
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-srvErr:
			return err
		}
	},
}
