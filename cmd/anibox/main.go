package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kaede-io/anibox/internal/anilist"
	"github.com/kaede-io/anibox/internal/api"
	"github.com/kaede-io/anibox/internal/bookmarks"
	"github.com/kaede-io/anibox/internal/cache"
	"github.com/kaede-io/anibox/internal/config"
	"github.com/kaede-io/anibox/internal/log"
	"github.com/kaede-io/anibox/internal/progress"
	"github.com/kaede-io/anibox/internal/service"
	"github.com/kaede-io/anibox/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Parse()

	if showVersion {
		fmt.Printf("anibox %s\n", Version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting anibox", "version", Version)

	if cfg.IsConfigured() {
		if err := config.ValidateServerURL(cfg.Server.URL); err != nil {
			return err
		}
	}

	kv, err := store.NewBoltStore(config.DefaultDataPath())
	if err != nil {
		return fmt.Errorf("failed to open data store: %w", err)
	}
	defer kv.Close()

	contentCache, err := cache.New(cfg.Cache.Dir, cfg.Cache.MaxAge, cfg.Cache.MaxBytes, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer contentCache.Close()

	bookmarkStore := bookmarks.NewStore(kv, logger)
	tracker := progress.NewTracker(kv, logger)

	contentClient := api.NewClient(cfg.Server.URL, logger)
	listSync := anilist.NewSync(nil, kv, cfg.AniList, logger)
	localSearch := service.NewLocalSearch(bookmarkStore, tracker, logger)

	app := service.NewApp(contentClient, listSync, contentCache, localSearch, logger)
	defer app.Close()

	orchestrator := service.NewOrchestrator(bookmarkStore, tracker, contentCache, cfg.Sync.ProbeURL, logger)
	if err := orchestrator.Start(cfg.Sync.Schedule); err != nil {
		return err
	}
	defer orchestrator.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	return nil
}
