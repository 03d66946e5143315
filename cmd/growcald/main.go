package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/growcalendar/grow-calendar/internal/app"
	"github.com/growcalendar/grow-calendar/internal/config"
	"github.com/growcalendar/grow-calendar/internal/observability"
	"github.com/growcalendar/grow-calendar/internal/uiapi"
	"github.com/spf13/cobra"
)

func main() {
	var cfgFile string
	var port int
	var dbPath string

	rootCmd := &cobra.Command{
		Use:   "growcald",
		Short: "Grow Calendar HTTP server with web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			metrics := observability.NewMetrics()

			a, err := app.New(cfg, metrics, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           uiapi.NewServer(a.Service, a.Store, cfg.StaticDir, cfg.HTTPTimeout, metrics, logger).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				logger.Info("grow calendar server starting",
					"addr", cfg.Addr(),
					"db", cfg.DBPath,
					"catalog_crops", len(a.Catalog),
					"frost_policy", cfg.FrostPolicy,
				)
				if cfg.NASSAPIKey == "" {
					logger.Warn("nass.api_key is not set, crop progress requests will fail")
				}
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.growcal/config.yaml)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 4000, "HTTP port")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Database path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
