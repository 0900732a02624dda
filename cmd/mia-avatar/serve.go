package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/controller"
	"github.com/fulopkrisztian-prog/Mia/internal/feed"
	"github.com/fulopkrisztian-prog/Mia/internal/loader"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/stream"
)

const assetDebounce = 250 * time.Millisecond

func serveCmd() *cobra.Command {
	var listen, feedURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controller and stream frames to renderers",
		Long: `Runs the avatar controller, serves frames and events on /ws, accepts
mood/busy/pointer/request/response commands from the renderer, exposes
/metrics and /healthz, and optionally follows a chat backend's SSE feed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if feedURL != "" {
				cfg.Feed.URL = feedURL
			}
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides server.listen)")
	cmd.Flags().StringVar(&feedURL, "feed-url", "", "chat backend base URL for the activity feed")
	return cmd
}

// newController builds a controller publishing on pub.
func newController(pub bus.Publisher) (*controller.Controller, error) {
	opts, err := controller.OptionsFromConfig(cfg, pub, log.Zerolog())
	if err != nil {
		return nil, err
	}
	return controller.New(opts), nil
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := bus.NewEventBus()
	defer eventBus.Wait()

	// Renderers must see caption and mood events in order.
	ctrl, err := newController(eventBus.Sync())
	if err != nil {
		return err
	}

	srv := stream.New(ctrl, stream.Options{
		Addr:           cfg.Server.Listen,
		BroadcastHz:    cfg.Server.BroadcastHz,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log.Zerolog(),
	})
	eventBus.SubscribeMultiple(bus.AllEventTypes, srv.PublishEvent)
	log.SetOnLog(srv.PublishLog)
	defer log.SetOnLog(nil)

	if err := ctrl.Mount(); err != nil {
		return err
	}
	defer ctrl.Unmount()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return ctrl.Run(gctx, cfg.Server.FPS, func(fs controller.FrameState) {
			srv.Broadcast(fs)
		})
	})

	if cfg.Feed.URL != "" {
		fc := feed.New(cfg.Feed.URL, ctrl, feed.Options{
			ReconnectDelay:    cfg.Feed.ReconnectDelay,
			MaxReconnectDelay: cfg.Feed.MaxReconnectDelay,
			MaxEventBytes:     cfg.Feed.MaxEventBytes,
			Publisher:         eventBus.Sync(),
			Logger:            log.Zerolog(),
		})
		g.Go(func() error {
			return fc.Run(gctx)
		})
	}

	if cfg.Avatar.WatchAssets {
		watchAssets(gctx, g, ctrl)
	}

	log.Info("serve", "Avatar controller running", map[string]interface{}{
		"listen": cfg.Server.Listen,
		"fps":    cfg.Server.FPS,
		"feed":   cfg.Feed.URL,
		"logs":   log.GetLogPath(),
	})

	return g.Wait()
}

// watchAssets reloads a model when its file changes on disk. A missing asset
// directory only disables watching.
func watchAssets(ctx context.Context, g *errgroup.Group, ctrl *controller.Controller) {
	logger := log.Component("assets")
	w, err := loader.NewWatcher(cfg.Avatar.AssetPaths(), assetDebounce, func(cat mood.Category) {
		if err := ctrl.ReloadAsset(cat); err != nil && !errors.Is(err, loader.ErrNotActive) {
			logger.Warn().Err(err).Str("category", string(cat)).Msg("Reload skipped")
		}
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Asset watching disabled")
		return
	}
	g.Go(func() error {
		defer w.Close()
		return w.Run(ctx)
	})
}
