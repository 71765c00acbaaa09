package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sfuops/sora-console/internal/cache"
	"github.com/sfuops/sora-console/internal/config"
	"github.com/sfuops/sora-console/internal/consumer"
	"github.com/sfuops/sora-console/internal/events"
	"github.com/sfuops/sora-console/internal/log"
)

var (
	watchConfigPath string
	watchURL        string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the console event stream",
	Long: `watch connects to a running console's event stream and prints every
envelope as it arrives, mirroring auth decisions into the local metadata
cache the way the dashboard does.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchConfigPath, "config", "c", "", "path to YAML config file")
	watchCmd.Flags().StringVarP(&watchURL, "url", "u", "http://localhost:8080/api/ssevents", "event stream URL")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(watchConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Init(log.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	logger := log.WithComponent("watch")

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return fmt.Errorf("open metadata cache: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := consumer.New(watchURL, func(evt events.Envelope) {
		logger.Info().
			Str("type", evt.Type).
			Str("connection_id", evt.ConnectionID).
			Str("channel_id", evt.ChannelID).
			Interface("payload", evt.Payload).
			Msg("event")
	},
		consumer.WithCache(store),
		consumer.WithCacheTTL(cfg.CacheTTL),
		consumer.WithLogger(log.WithComponent("consumer")),
	)

	logger.Info().Str("url", watchURL).Msg("watching event stream")
	c.Start(ctx)
	defer c.Close()

	<-ctx.Done()
	return nil
}
