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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sfuops/sora-console/internal/config"
	"github.com/sfuops/sora-console/internal/events"
	"github.com/sfuops/sora-console/internal/handlers"
	"github.com/sfuops/sora-console/internal/log"
	"github.com/sfuops/sora-console/internal/policy"
	"github.com/sfuops/sora-console/internal/sfu"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "path to YAML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Init(log.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	logger := log.WithComponent("serve")

	bus := events.NewBus(log.WithComponent("bus"))
	sora := sfu.NewClient(cfg.SoraAPIURL, log.WithComponent("sfu"))

	api := handlers.New(log.WithComponent("api"), bus, sora, policy.ChannelPrefix(cfg.AuthChannelPrefix), handlers.Config{
		AllowOrigin: cfg.AllowOrigin,
		Heartbeat:   cfg.HeartbeatInterval,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	api.Routes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: it would sever the long-lived event stream.
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("sora_api", cfg.SoraAPIURL).Msg("console API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
