package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/feedtag/internal/logger"
	"github.com/kailas-cloud/feedtag/internal/metrics"
	"github.com/kailas-cloud/feedtag/internal/scheduler"
	chiTransport "github.com/kailas-cloud/feedtag/internal/transport/chi"
	healthuc "github.com/kailas-cloud/feedtag/internal/usecase/health"
	"github.com/kailas-cloud/feedtag/internal/usecase/tagging"
	"github.com/kailas-cloud/feedtag/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, env, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting feedtag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// Register classifier metrics explicitly (no init())
	metrics.RegisterClassifierMetrics()

	tok, err := newTokenizer(cfg.Tokenizer)
	if err != nil {
		return err
	}
	defer tok.Close()

	tcfg, err := taggingConfig(cfg.Classifier)
	if err != nil {
		return err
	}
	tags, err := tagging.New(st.tags, tok, tcfg, logger.Named("tagging"))
	if err != nil {
		return fmt.Errorf("create tagging service: %w", err)
	}
	if err := tags.Load(ctx); err != nil {
		return fmt.Errorf("load tags: %w", err)
	}

	// Pass nil interface (not typed nil pointer!) when nothing is persisted.
	var flushReporter healthuc.FlushReporter
	if cfg.Storage.Durable() {
		flushReporter = tags
	}
	healthSvc := healthuc.New(st.pinger, flushReporter)

	var sched *scheduler.Scheduler
	if cfg.Storage.Durable() {
		sched, err = scheduler.New(cfg.Storage.FlushSchedule, tags, cfg.HTTP.ShutdownTimeout(), logger.Named("scheduler"))
		if err != nil {
			return err
		}
		sched.Start()
	}

	server := chiTransport.NewServer(tags, healthSvc, logger.Named("http"))
	router := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:      cfg.Auth.APIKeys,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout(),
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout(),
		WriteTimeout:      cfg.HTTP.WriteTimeout(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server error", zap.Error(err))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	return errors.Join(runErr, shutdown(srv, sched, tags, cfg.HTTP.ShutdownTimeout(), logger))
}

// shutdown drains HTTP, stops the scheduler, then writes the remaining evidence.
func shutdown(
	srv *http.Server,
	sched *scheduler.Scheduler,
	tags *tagging.Service,
	timeout time.Duration,
	logger *zap.Logger,
) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := tags.Close(ctx); err != nil {
		logger.Error("Final flush failed, unsaved evidence is lost", zap.Error(err))
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
