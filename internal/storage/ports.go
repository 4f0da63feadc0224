// Package storage defines the persistence contracts shared by every backend.
//
// Implementations live in the memory, sqlite and postgres subpackages. All of
// them are single-entity focused: cascading deletes and existence rules are
// the service layer's job.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
)

// ErrNotFound is returned by update operations when the target row is gone.
var ErrNotFound = errors.New("storage: row not found")

type (
	// RecordRepository persists Record rows.
	RecordRepository interface {
		Exists(ctx context.Context, id int64) (bool, error)
		// Insert assigns id, createdAt and updatedAt.
		Insert(ctx context.Context, in core.RecordInput) (core.Record, error)
		FindAll(ctx context.Context) ([]core.Record, error)
		// FindByID reports found=false for a missing id instead of failing.
		FindByID(ctx context.Context, id int64) (rec core.Record, found bool, err error)
		// Update replaces the mutable fields and refreshes updatedAt.
		Update(ctx context.Context, id int64, in core.RecordInput) (core.Record, error)
		Delete(ctx context.Context, id int64) error
	}

	// ExpenseRepository persists Expense rows referenced by record id.
	ExpenseRepository interface {
		Exists(ctx context.Context, id int64) (bool, error)
		Insert(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
		FindAll(ctx context.Context) ([]core.Expense, error)
		FindByID(ctx context.Context, id int64) (exp core.Expense, found bool, err error)
		// FindByRecordID returns an empty slice when the record has no expenses.
		FindByRecordID(ctx context.Context, recordID int64) ([]core.Expense, error)
		UpdateName(ctx context.Context, id int64, name string) (core.Expense, error)
		UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal) (core.Expense, error)
		Delete(ctx context.Context, id int64) error
		// DeleteByRecordID is a no-op when nothing matches.
		DeleteByRecordID(ctx context.Context, recordID int64) error
	}

	// Tx exposes both repositories bound to one transaction.
	Tx interface {
		Records() RecordRepository
		Expenses() ExpenseRepository
	}

	// Store is a backend holding both tables.
	Store interface {
		Tx
		// WithTx runs fn in a single transaction. It commits when fn returns
		// nil and rolls back otherwise.
		WithTx(ctx context.Context, fn func(tx Tx) error) error
		Close() error
	}
)
