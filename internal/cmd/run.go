package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kibertoad/fauxqs/internal/api"
	"github.com/kibertoad/fauxqs/internal/config"
	"github.com/kibertoad/fauxqs/internal/fauxqs/engine"
	fauxqsinit "github.com/kibertoad/fauxqs/internal/init"
)

var (
	cfgFile string
)

const shutdownTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the fauxqs server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFauxqs(cmd)
	},
}

func runFauxqs(_ *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(engine.Options{
		DefaultRegion: cfg.DefaultRegion,
		SpyEnabled:    cfg.Spy.Enabled,
		SpyBufferSize: cfg.Spy.BufferSize,
	})
	eng.Start(ctx)
	defer eng.Stop()

	if cfg.Init != "" {
		spec, err := fauxqsinit.Load(cfg.Init)
		if err != nil {
			return fmt.Errorf("loading init resources: %w", err)
		}
		if err := fauxqsinit.Apply(eng, spec, cfg.DefaultRegion); err != nil {
			return fmt.Errorf("applying init resources: %w", err)
		}
	}

	if cfg.Metrics.Enabled {
		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", promhttp.Handler())

			metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port)
			log.Info().Str("address", metricsAddr).Msg("metrics server started")

			if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	server := api.NewServer(eng, api.Config{
		Host:          cfg.Server.Host,
		RequestLogger: true,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("fauxqs server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
