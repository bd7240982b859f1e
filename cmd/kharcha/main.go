package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kharcha/internal/auth"
	"kharcha/internal/backend"
	"kharcha/internal/cache"
	"kharcha/internal/cli"
	"kharcha/internal/config"
	apphttp "kharcha/internal/http"
	"kharcha/internal/log"
	"kharcha/internal/report"
	"kharcha/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	backends, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).Create(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create backends: %w", err)
	}
	defer func() {
		if err := backends.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	users, err := cfg.Users()
	if err != nil {
		return err
	}

	opts := []services.Option{services.WithLogger(logger.WithComponent(log.ComponentReconcile))}
	if backends.Events != nil {
		opts = append(opts, services.WithEvents(backends.Events))
	}
	expenses := services.NewExpenseService(backends.Local, backends.Remote, opts...)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:              ":" + cfg.Port,
		Expenses:          expenses,
		Reports:           report.NewGenerator(backends.Local, report.WithTitle(cfg.ReportTitle)),
		Auth:              auth.NewAuthenticator(users),
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimitPerMin:   cfg.RateLimitPerMin,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting kharcha server",
			"port", cfg.Port,
			"local_backend", backendCfg.Local,
			"remote_backend", backendCfg.Remote,
			"users", len(users))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	if len(backends.Cleaners) > 0 {
		g.Go(func() error {
			evicted := cache.RunCleanup(gctx, time.Minute, backends.Cleaners...)
			logger.WithComponent(log.ComponentCache).Debug("Cache cleanup stopped", log.FieldCount, evicted)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
