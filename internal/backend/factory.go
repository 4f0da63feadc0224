package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrx7355608/finance-app-2.0/internal/amqp"
	"github.com/mrx7355608/finance-app-2.0/internal/assets"
	"github.com/mrx7355608/finance-app-2.0/internal/events"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
	"github.com/mrx7355608/finance-app-2.0/internal/storage/memory"
	"github.com/mrx7355608/finance-app-2.0/internal/storage/postgres"
	"github.com/mrx7355608/finance-app-2.0/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the store and attaches the optional change transport
// and uploader. A broker that cannot be reached is logged and skipped; the
// hub still delivers changes in-process.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}

	hub := events.NewHub()
	result := &BackendResult{
		Store:     store,
		Hub:       hub,
		Publisher: hub,
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without broker", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Changes = client
			result.Publisher = events.Multi{hub, client}
		}
	}

	if config.DriveFolderID != "" {
		creds, err := assets.LoadCredentials(config.DriveCredentialsJSON, config.DriveCredentialsFile)
		if err == nil {
			result.Uploader, err = assets.NewDrive(ctx, config.DriveFolderID, creds)
		}
		if err != nil {
			_ = closeAll(result.Changes, store)
			return nil, fmt.Errorf("failed to initialize Drive uploader: %w", err)
		}
		f.logger.Info("Initialized Drive uploader", "folder_id", config.DriveFolderID)
	}

	changes := result.Changes
	result.Cleanup = func() error { return closeAll(changes, store) }
	return result, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil
	case SQLiteBackend:
		store, err := sqlite.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return store, nil
	case PostgresBackend:
		store, err := postgres.Open(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func closeAll(changes *amqp.Client, store storage.Store) error {
	var errs []error
	if changes != nil {
		if err := changes.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp client: %w", err))
		}
	}
	if err := store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
