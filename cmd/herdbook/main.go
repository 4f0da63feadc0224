package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/mrx7355608/finance-app-2.0/internal/backend"
	"github.com/mrx7355608/finance-app-2.0/internal/cli"
	"github.com/mrx7355608/finance-app-2.0/internal/config"
	"github.com/mrx7355608/finance-app-2.0/internal/events"
	apphttp "github.com/mrx7355608/finance-app-2.0/internal/http"
	applog "github.com/mrx7355608/finance-app-2.0/internal/log"
	"github.com/mrx7355608/finance-app-2.0/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer cli.Cleanup(logger, "backend", res.Cleanup)

	sl := applog.NewStructuredLogger(logger)
	unsubscribe := res.Hub.OnRecordChange(func(c events.RecordChange) {
		sl.LogRecordChange(ctx, c.ID.String(), string(c.Type), c.RecordID)
	})
	defer unsubscribe()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Records:            services.NewRecordService(res.Store, res.Publisher),
		Expenses:           services.NewExpenseService(res.Store),
		Uploader:           res.Uploader,
		Logger:             logger,
		MaxUploadBytes:     cfg.UploadMaxBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting herdbook server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp_enabled", res.Changes != nil,
			"uploads_enabled", res.Uploader != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
