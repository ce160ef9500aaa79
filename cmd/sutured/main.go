package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"suture/internal/analyzer"
	"suture/internal/api"
	"suture/internal/config"
	"suture/internal/daemon"
	"suture/internal/dispatcher"
	"suture/internal/logging"
	"suture/internal/netmon"
	"suture/internal/notifications"
	"suture/internal/queue"
	"suture/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, found, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewForDaemon(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if found {
		logger.Info("configuration loaded", slog.String("path", path))
	} else {
		logger.Info("configuration file not found, using defaults")
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open submission store", logging.Error(err))
		return
	}

	backend, err := storage.New(cfg)
	if err != nil {
		logger.Error("init storage backend", logging.Error(err))
		store.Close()
		return
	}

	monitor := netmon.New(cfg, logger)
	notifier := notifications.NewNotifier(cfg, notifications.NewMailer(cfg), logger)
	mgr := dispatcher.New(cfg, store, backend, analyzer.New(cfg), notifier, nil, monitor, logger)

	statusService := api.NewStatusService(store, mgr, monitor)
	handler := api.NewHandler(cfg, mgr, statusService, backend, logger)

	d, err := daemon.New(cfg, store, backend, monitor, mgr, handler, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}
	logger.Info("sutured running", slog.String("addr", d.Addr()))

	<-ctx.Done()
	logger.Info("sutured shutting down")
}
