package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"github.com/joho/godotenv"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	closeLog, err := initLogging(cfg.Log)
	if err != nil {
		log.Fatal("Failed to open log file: %v", err)
	}
	defer closeLog()

	if len(os.Args) > 1 && os.Args[1] == "watch" {
		os.Exit(watch(cfg, os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize: %v", err)
	}
	defer a.close()

	a.queue.Start(a.orchestrator.Execute)
	defer a.queue.Stop()

	if err := runWithComponents(ctx, cfg, a.maintenance, a.cron, a.http); err != nil {
		log.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}

// initLogging writes to LOG_FILE when set, stdout otherwise.
func initLogging(cfg config.LogConfig) (func(), error) {
	level := log.ParseLevel(cfg.Level)
	if cfg.File == "" {
		log.InitLogger(level)
		return func() {}, nil
	}
	fl, err := log.NewFileLogger(cfg.File, level)
	if err != nil {
		return nil, err
	}
	log.SetLogger(fl.Logger)
	return func() { _ = fl.Close() }, nil
}

// runWithComponents schedules maintenance, starts cron and the HTTP server,
// and shuts both down when ctx ends.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, cron cronEngine, srv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	cron.Start()
	defer func() {
		<-cron.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
