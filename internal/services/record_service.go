package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/events"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
)

// RecordSummary is a record with its expenses and profit/loss figures.
type RecordSummary struct {
	Record   core.Record    `json:"record"`
	Expenses []core.Expense `json:"expenses"`
	Summary  core.Summary   `json:"summary"`

	TotalExpensesDisplay string `json:"totalExpensesDisplay"`
	ProfitLossDisplay    string `json:"profitLossDisplay"`
}

// RecordService manages records and cascades record deletes to expenses.
type RecordService struct {
	store     storage.Store
	publisher events.Publisher
}

// NewRecordService wires a service to store. publisher may be nil.
func NewRecordService(store storage.Store, publisher events.Publisher) *RecordService {
	return &RecordService{store: store, publisher: publisher}
}

// CreateRecord validates a loosely typed payload and stores it.
func (s *RecordService) CreateRecord(ctx context.Context, raw map[string]any) (Result[core.Record], error) {
	in, err := core.ParseRecordInput(raw)
	if err != nil {
		return Result[core.Record]{}, err
	}
	return s.create(ctx, in)
}

// CreateRecordInput is CreateRecord for typed callers.
func (s *RecordService) CreateRecordInput(ctx context.Context, in core.RecordInput) (Result[core.Record], error) {
	in = in.Clone()
	if err := in.Validate(); err != nil {
		return Result[core.Record]{}, err
	}
	return s.create(ctx, in)
}

func (s *RecordService) create(ctx context.Context, in core.RecordInput) (Result[core.Record], error) {
	rec, err := s.store.Records().Insert(ctx, in)
	if err != nil {
		return Result[core.Record]{}, storageErr("insert record", err)
	}

	slog.InfoContext(ctx, "Record created", "id", rec.ID, "name", rec.Name, "images", len(rec.Images))
	publish(ctx, s.publisher, events.NewRecordChange(events.ChangeInsert, rec))
	return ok("Record successfully created!", rec), nil
}

func (s *RecordService) GetAllRecords(ctx context.Context) (Result[[]core.Record], error) {
	recs, err := s.store.Records().FindAll(ctx)
	if err != nil {
		return Result[[]core.Record]{}, storageErr("list records", err)
	}
	return ok(fmt.Sprintf("Fetched %d record(s).", len(recs)), recs), nil
}

func (s *RecordService) GetRecordByID(ctx context.Context, id int64) (Result[core.Record], error) {
	rec, found, err := s.store.Records().FindByID(ctx, id)
	if err != nil {
		return Result[core.Record]{}, storageErr("get record", err)
	}
	if !found {
		return Result[core.Record]{}, &core.NotFoundError{Kind: core.KindRecord, ID: id}
	}
	return ok("Record found.", rec), nil
}

// UpdateRecord replaces every mutable field of record id. Validation runs
// before the existence check.
func (s *RecordService) UpdateRecord(ctx context.Context, id int64, raw map[string]any) (Result[core.Record], error) {
	in, err := core.ParseRecordInput(raw)
	if err != nil {
		return Result[core.Record]{}, err
	}
	return s.update(ctx, id, in)
}

// UpdateRecordInput is UpdateRecord for typed callers.
func (s *RecordService) UpdateRecordInput(ctx context.Context, id int64, in core.RecordInput) (Result[core.Record], error) {
	in = in.Clone()
	if err := in.Validate(); err != nil {
		return Result[core.Record]{}, err
	}
	return s.update(ctx, id, in)
}

func (s *RecordService) update(ctx context.Context, id int64, in core.RecordInput) (Result[core.Record], error) {
	var rec core.Record
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		exists, err := tx.Records().Exists(ctx, id)
		if err != nil {
			return storageErr("check record", err)
		}
		if !exists {
			return &core.NotFoundError{Kind: core.KindRecord, ID: id}
		}
		rec, err = tx.Records().Update(ctx, id, in)
		return notFoundOr("update record", core.KindRecord, id, err)
	})
	if err != nil {
		return Result[core.Record]{}, storageErr("update record", err)
	}

	slog.InfoContext(ctx, "Record updated", "id", rec.ID, "sold", rec.IsSold())
	publish(ctx, s.publisher, events.NewRecordChange(events.ChangeUpdate, rec))
	return ok("Record updated.", rec), nil
}

// DeleteRecord removes record id and every expense referencing it in one
// transaction.
func (s *RecordService) DeleteRecord(ctx context.Context, id int64) (Ack, error) {
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		exists, err := tx.Records().Exists(ctx, id)
		if err != nil {
			return storageErr("check record", err)
		}
		if !exists {
			return &core.NotFoundError{Kind: core.KindRecord, ID: id}
		}
		if err := tx.Expenses().DeleteByRecordID(ctx, id); err != nil {
			return storageErr("delete record expenses", err)
		}
		if err := tx.Records().Delete(ctx, id); err != nil {
			return storageErr("delete record", err)
		}
		return nil
	})
	if err != nil {
		return Ack{}, storageErr("delete record", err)
	}

	slog.InfoContext(ctx, "Record deleted", "id", id)
	publish(ctx, s.publisher, events.NewRecordDeleted(id))
	return Ack{Message: fmt.Sprintf("Record %d has been deleted.", id)}, nil
}

// GetRecordSummary loads record id and its expenses concurrently and computes
// profit/loss.
func (s *RecordService) GetRecordSummary(ctx context.Context, id int64) (Result[RecordSummary], error) {
	var (
		rec      core.Record
		found    bool
		expenses []core.Expense
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, found, err = s.store.Records().FindByID(gctx, id)
		return storageErr("get record", err)
	})
	g.Go(func() error {
		var err error
		expenses, err = s.store.Expenses().FindByRecordID(gctx, id)
		return storageErr("list record expenses", err)
	})
	if err := g.Wait(); err != nil {
		return Result[RecordSummary]{}, err
	}
	if !found {
		return Result[RecordSummary]{}, &core.NotFoundError{Kind: core.KindRecord, ID: id}
	}

	summary := core.ComputeSummary(rec, expenses)
	return ok("Summary computed.", RecordSummary{
		Record:               rec,
		Expenses:             expenses,
		Summary:              summary,
		TotalExpensesDisplay: core.FormatAmount(summary.TotalExpenses),
		ProfitLossDisplay:    core.FormatAmount(summary.ProfitLoss),
	}), nil
}
