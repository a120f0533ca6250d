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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"pairup/backend/internal/api/handler"
	"pairup/backend/internal/chathub"
	"pairup/backend/internal/config"
	"pairup/backend/internal/localization"
	"pairup/backend/internal/metrics"
	"pairup/backend/internal/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flagSet := pflag.NewFlagSet("pairup", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flagSet.DurationVar(&cfg.QueueTimeout, "queue-timeout", cfg.QueueTimeout, "how long a participant waits for a partner")
	flagSet.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "presence sidecar address (empty disables it)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting pairup backend", "port", cfg.Port, "queue_timeout", cfg.QueueTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	localizer := localization.Default()
	if cfg.LocalesDir != "" {
		if localizer, err = localization.NewLocalizer(cfg.LocalesDir); err != nil {
			return fmt.Errorf("load locales: %w", err)
		}
	}

	var presence storage.Presence = storage.NopPresence{}
	if cfg.RedisURL != "" {
		rdb, err := storage.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		presence = storage.NewRedisPresence(rdb, cfg.PresenceTTL)
		logger.Info("presence sidecar enabled", "redis", cfg.RedisURL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := chathub.NewManagerService(chathub.Options{
		QueueTimeout:      cfg.QueueTimeout,
		HistoryCap:        cfg.HistoryCap,
		MaxMessageLen:     cfg.MaxMessageLen,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Presence:          presence,
		Metrics:           m,
		Localizer:         localizer,
		Logger:            logger,
	})

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	h := handler.NewHandler(hub, cfg, m, reg, logger)
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        h.Router(),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-hubDone
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "err", err)
	}
	<-hubDone
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
