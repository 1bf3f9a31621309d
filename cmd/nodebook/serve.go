package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/httpapi"
)

var (
	serveAddr    string
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local graphs over HTTP",
	Long: `Expose the graph directory with the NodeBook HTTP API so that other
clients can use it through the http adapter. Metrics are served on /metrics.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, backend, err := openBackend(ctx)
		if err != nil {
			fatal("Failed to open graphs", err)
		}
		api, ok := backend.Source.(httpapi.Backend)
		if !ok {
			fatal("Failed to serve", fmt.Errorf("the %s adapter cannot be served", cfg.Adapter))
		}

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           httpapi.NewServer(api,
				httpapi.WithLogger(slog.Default()),
				httpapi.WithAllowedOrigins(serveOrigins...),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			slog.Info("serving graphs", "addr", serveAddr, "root", cfg.URI())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if err := g.Wait(); err != nil {
			fatal("Server failed", err)
		}
		slog.Info("server stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors", nil, "Origins allowed to call the API from a browser")
}
