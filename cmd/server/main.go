package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookmarksync/internal/codec"
	"bookmarksync/internal/config"
	"bookmarksync/internal/handler"
	"bookmarksync/internal/hub"
	"bookmarksync/internal/service"
	"bookmarksync/internal/watcher"
)

// connectivityVerifier is implemented by drivers that can check the server at startup
type connectivityVerifier interface {
	VerifyConnectivity(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", "", "config file (default: search BOOKMARKSYNC_CONFIG, ./bookmarksync.yaml, user config dir)")
	addr := flag.String("addr", "", "HTTP listen address (overrides http.addr)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "bookmarksync: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, configPath, err = config.LoadFromPath(configPath)
	} else {
		cfg, configPath, err = config.Load()
	}
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if configPath != "" {
		logger.Info("config loaded", zap.String("path", configPath))
	} else {
		logger.Info("no config file found, using defaults")
	}
	logger.Info(cfg.Summary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drv, err := service.OpenDriver(cfg.Datastore, logger)
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}
	defer drv.Close(context.Background())

	if v, ok := drv.(connectivityVerifier); ok {
		verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := v.VerifyConnectivity(verifyCtx)
		cancel()
		if err != nil {
			// health checks report it; transactions fail until the server is back
			logger.Warn("datastore not reachable at startup", zap.Error(err))
		}
	}

	b, err := service.OpenBus(cfg.Bus, logger)
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}
	defer b.Close()

	c, err := codec.ForFormat(cfg.Bus.Codec)
	if err != nil {
		return err
	}

	svc := service.New(service.Deps{
		Driver: drv,
		Bus:    b,
		Codec:  c,
		Logger: logger,
	}, service.OptionsFromConfig(cfg))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	sseHub := hub.New(logger)
	api := handler.New(svc, logger)

	server := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     api.Router(sseHub),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sseHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		handler.ForwardEvents(gctx, svc.Events(), sseHub)
		return nil
	})

	if configPath != "" {
		reloader := watcher.NewConfigReloader(configPath, func(next *config.Config) {
			if _, _, err := svc.ApplyDatabases(next.Databases); err != nil {
				logger.Error("failed to apply database list", zap.Error(err))
			}
		}, logger)
		g.Go(func() error {
			if err := reloader.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("config watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}
