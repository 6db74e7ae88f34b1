// Package main wires together the research crawl service binary.
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

	"github.com/dangvonguyen/research-agent/internal/api"
	"github.com/dangvonguyen/research-agent/internal/clock/system"
	"github.com/dangvonguyen/research-agent/internal/config"
	"github.com/dangvonguyen/research-agent/internal/crawler"
	"github.com/dangvonguyen/research-agent/internal/dispatcher"
	"github.com/dangvonguyen/research-agent/internal/fetcher"
	collyfetcher "github.com/dangvonguyen/research-agent/internal/fetcher/colly"
	"github.com/dangvonguyen/research-agent/internal/id/uuid"
	"github.com/dangvonguyen/research-agent/internal/logging"
	"github.com/dangvonguyen/research-agent/internal/orchestrator"
	"github.com/dangvonguyen/research-agent/internal/parser"
	queuememory "github.com/dangvonguyen/research-agent/internal/queue/memory"
	"github.com/dangvonguyen/research-agent/internal/ratelimit"
	"github.com/dangvonguyen/research-agent/internal/registry"
	"github.com/dangvonguyen/research-agent/internal/storage/local"
	storagememory "github.com/dangvonguyen/research-agent/internal/storage/memory"
	"github.com/dangvonguyen/research-agent/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	reg := registry.New(clock)
	if err := reg.Seed(cfg.Sources); err != nil {
		logger.Fatal("seed source configs failed", zap.Error(err))
	}

	var (
		jobStore   crawler.JobStore
		paperStore crawler.PaperStore
	)
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Storage.DB)
		if err != nil {
			logger.Fatal("connect postgres failed", zap.Error(err))
		}
		defer pool.Close()
		jobStore, err = postgres.NewJobStore(pool, clock)
		if err != nil {
			logger.Fatal("init job store failed", zap.Error(err))
		}
		paperStore, err = postgres.NewPaperStore(pool, clock, idGen)
		if err != nil {
			logger.Fatal("init paper store failed", zap.Error(err))
		}
	default:
		jobStore = storagememory.NewJobStore(clock)
		paperStore = storagememory.NewPaperStore(clock, idGen)
	}

	pdfStore, err := local.New(local.Config{BaseDir: cfg.Storage.PDFDir})
	if err != nil {
		logger.Fatal("init pdf store failed", zap.Error(err))
	}

	pages := collyfetcher.New(collyfetcher.Config{})
	fetchClient := fetcher.NewClient(pages, ratelimit.New(), logger.Named("fetcher"))
	parsers := parser.NewRegistry()

	queue := queuememory.NewQueue(cfg.Queue.Depth)
	service := orchestrator.NewService(reg, jobStore, queue, idGen, clock, logger.Named("orchestrator"))

	var workers []*orchestrator.Worker
	for i := 0; i < cfg.Queue.Workers; i++ {
		workers = append(workers, orchestrator.NewWorker(
			queue,
			jobStore,
			paperStore,
			pdfStore,
			reg,
			fetchClient,
			parsers,
			clock,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(workers)

	apiServer := api.NewServer(service, jobStore, paperStore, reg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Queue.Workers))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}
