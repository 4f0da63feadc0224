package backend

import (
	"context"

	"github.com/mrx7355608/finance-app-2.0/internal/amqp"
	"github.com/mrx7355608/finance-app-2.0/internal/assets"
	"github.com/mrx7355608/finance-app-2.0/internal/events"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds everything a process needs to serve records and
// expenses. Changes and Uploader are nil when their integration is disabled.
type BackendResult struct {
	Store     storage.Store
	Hub       *events.Hub
	Publisher events.Publisher
	Changes   *amqp.Client
	Uploader  assets.Uploader
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Change notifications, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Image uploads, optional for every backend
	DriveFolderID        string
	DriveCredentialsFile string
	DriveCredentialsJSON string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
