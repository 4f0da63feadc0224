// Package services holds the record and expense use cases. Services validate
// input, enforce existence rules, and translate backend failures into the
// error kinds defined in core.
package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/events"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
)

// Result is the envelope returned by service reads and writes.
type Result[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Ack is a result without data.
type Ack struct {
	Message string `json:"message"`
}

func ok[T any](msg string, data T) Result[T] {
	return Result[T]{Message: msg, Data: data}
}

// storageErr passes domain errors through and wraps anything else as a
// *core.StorageError.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if core.IsValidation(err) || core.IsNotFound(err) || core.IsReferential(err) || core.IsStorage(err) {
		return err
	}
	return &core.StorageError{Op: op, Err: err}
}

// notFoundOr maps storage.ErrNotFound to a *core.NotFoundError and wraps
// everything else.
func notFoundOr(op string, kind core.EntityKind, id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &core.NotFoundError{Kind: kind, ID: id}
	}
	return storageErr(op, err)
}

// publish sends change when a publisher is configured. Failures are logged;
// storage already holds the truth.
func publish(ctx context.Context, p events.Publisher, change events.RecordChange) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, change); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record change",
			"change_id", change.ID,
			"type", change.Type,
			"record_id", change.RecordID,
			"error", err)
	}
}
