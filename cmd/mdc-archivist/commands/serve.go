package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"

	// Imported for its promauto side effects: linking this package
	// registers the mdc_* collector families against the default registry
	// promhttp.Handler serves below, even when this process never
	// constructs an Orchestrator itself.
	_ "github.com/rodoHasArrived/Market-Data-Collector-sub007/monitoring"
)

func serveCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve Prometheus metrics for an external scrape",
		Long: `Start a bare HTTP server exposing /metrics, useful for operating
mdc-archivist as a sidecar alongside a live collector process that shares
the same process-wide Prometheus registry.`,
		Example: `  mdc-archivist serve --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())

			srv := &http.Server{Addr: metricsAddr, Handler: mux}

			errCh := make(chan error, 1)
			go func() {
				logger.Log.Info("Serving metrics on {addr}", metricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sig:
				logger.Log.Info("Shutting down metrics server")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address to serve /metrics on")

	return cmd
}
