package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickerhub/internal/adapter/cache"
	"tickerhub/internal/adapter/handler"
	"tickerhub/internal/adapter/upstream"
	"tickerhub/internal/application/service"
	"tickerhub/internal/concurrency/worker"
	"tickerhub/internal/domain/model"
	"tickerhub/internal/domain/port"
	"tickerhub/internal/hub"
	"tickerhub/internal/infrastructure/config"
	"tickerhub/internal/infrastructure/logger"
	"tickerhub/internal/infrastructure/server"
	"tickerhub/internal/ratelimit"
	"tickerhub/internal/store"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to config file")
	portFlag   = flag.Int("port", 0, "Port number")
	helpFlag   = flag.Bool("help", false, "Show help")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *portFlag != 0 {
		cfg.Server.Port = *portFlag
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting tickerhub", "version", "1.0.0", "mode", cfg.Upstream.Mode)

	st := store.New()
	h := hub.New(cfg.Websocket.QueueSize, log)

	var (
		mirror     port.CachePort
		mirrorCh   chan model.PriceRecord
		mirrorDone <-chan struct{}
	)
	if cfg.Redis.Enabled {
		redisMirror, err := cache.NewRedisMirror(cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			log.Error("failed to initialize redis mirror", "error", err)
			os.Exit(1)
		}
		defer redisMirror.Close()

		mirror = redisMirror
		mirrorCh = make(chan model.PriceRecord, cfg.Websocket.QueueSize)
		pool := worker.NewPool(cfg.Redis.Workers, redisMirror, log)
		mirrorDone = pool.Start(mirrorCh)
	}

	streamService := service.NewStreamService(st, h, mirrorCh, log)
	if mirror != nil {
		streamService.Seed(context.Background(), mirror)
	}

	snapshots := service.NewSnapshotService(st)
	feed := newFeed(cfg, log)

	limiter := ratelimit.New(cfg.RateLimit.PriceRequests, cfg.RateLimit.Window)
	priceHandler := handler.NewPriceHandler(snapshots, limiter, log)
	healthHandler := handler.NewHealthHandler(feed, h, snapshots, mirror, log)
	wsHandler := handler.NewWSHandler(h, cfg.Websocket.MaxConnections, cfg.Websocket.MaxConnectionsPerIP, cfg.Websocket.KeepaliveInterval, log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /price", priceHandler.GetPrice)
	mux.HandleFunc("GET /latest", priceHandler.GetLatest)
	mux.HandleFunc("GET /healthz", healthHandler.Check)
	mux.HandleFunc("GET /ws", wsHandler.Serve)

	srv := server.New(
		cfg.Server.Host,
		cfg.Server.Port,
		handler.CORS(cfg.CORS.AllowedOrigins, mux),
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		log,
	)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		streamService.Run(feed.Stream(ctx))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down gracefully")

	// Stop the feed first so the pipeline drains, then the mirror workers,
	// then client sessions, then the listener.
	cancel()
	<-pipelineDone
	if mirrorDone != nil {
		<-mirrorDone
	}
	h.Close()
	wsHandler.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	log.Info("shutdown complete")
}

func newFeed(cfg *config.Config, log *slog.Logger) port.FeedPort {
	if cfg.Upstream.Mode == config.ModeSynthetic {
		return upstream.NewSyntheticFeed(cfg.Upstream.Symbols, 500*time.Millisecond, log)
	}

	return upstream.NewBinanceFeed(upstream.BinanceOptions{
		BaseURL:      cfg.Upstream.URL,
		Symbols:      cfg.Upstream.Symbols,
		ReconnectMin: cfg.Upstream.ReconnectMin,
		ReconnectMax: cfg.Upstream.ReconnectMax,
		PingInterval: cfg.Upstream.PingInterval,
		PingTimeout:  cfg.Upstream.PingTimeout,
	}, log)
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tickerhub [--config <path>] [--port <N>]")
	fmt.Println("  tickerhub --help")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config path   Path to config file")
	fmt.Println("  --port N        Port number")
}
