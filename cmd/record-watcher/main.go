// Command record-watcher keeps an in-memory view of all records current by
// following change notifications from the broker. It reloads the full list at
// start and on a fixed interval to recover from missed messages.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrx7355608/finance-app-2.0/internal/backend"
	"github.com/mrx7355608/finance-app-2.0/internal/cache"
	"github.com/mrx7355608/finance-app-2.0/internal/cli"
	"github.com/mrx7355608/finance-app-2.0/internal/config"
	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/events"
	applog "github.com/mrx7355608/finance-app-2.0/internal/log"
	"github.com/mrx7355608/finance-app-2.0/internal/services"
)

const resyncInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWatcher)

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Watcher error", "error", err)
		os.Exit(1)
	}
	logger.Info("Watcher stopped")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is required for record-watcher")
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// The watcher only reads records; uploads are never needed here.
	bcfg.DriveFolderID = ""
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer cli.Cleanup(logger, "backend", res.Cleanup)
	if res.Changes == nil {
		return errors.New("broker unavailable")
	}

	records := services.NewRecordService(res.Store, nil)
	set := cache.NewRecordSet(func(ctx context.Context) ([]core.Record, error) {
		r, err := records.GetAllRecords(ctx)
		return r.Data, err
	})
	if err := set.Reset(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	logger.Info("Record cache loaded", "records", set.Len())

	sl := applog.NewStructuredLogger(logger)
	handle := func(ctx context.Context, change events.RecordChange) error {
		if err := set.Handle(ctx, change); err != nil {
			return err
		}
		sl.LogRecordChange(ctx, change.ID.String(), string(change.Type), change.RecordID)
		logger.DebugContext(ctx, "Record cache updated", "records", set.Len())
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return res.Changes.Consume(gctx, handle)
	})
	g.Go(func() error {
		ticker := time.NewTicker(resyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := set.Reset(gctx); err != nil {
					sl.LogError(gctx, "Record cache resync failed", err, applog.ComponentCache, "resync", nil)
					continue
				}
				logger.InfoContext(gctx, "Record cache resynced", "records", set.Len())
			}
		}
	})
	return g.Wait()
}
