package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
)

// ExpenseService manages expenses. Every expense must reference an existing
// record at creation time.
type ExpenseService struct {
	store storage.Store
}

func NewExpenseService(store storage.Store) *ExpenseService {
	return &ExpenseService{store: store}
}

// CreateExpense validates a loosely typed payload and stores it.
func (s *ExpenseService) CreateExpense(ctx context.Context, raw map[string]any) (Result[core.Expense], error) {
	in, err := core.ParseExpenseInput(raw)
	if err != nil {
		return Result[core.Expense]{}, err
	}
	return s.create(ctx, in)
}

// CreateExpenseInput is CreateExpense for typed callers.
func (s *ExpenseService) CreateExpenseInput(ctx context.Context, in core.ExpenseInput) (Result[core.Expense], error) {
	if err := in.Validate(); err != nil {
		return Result[core.Expense]{}, err
	}
	return s.create(ctx, in)
}

func (s *ExpenseService) create(ctx context.Context, in core.ExpenseInput) (Result[core.Expense], error) {
	var e core.Expense
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		exists, err := tx.Records().Exists(ctx, in.RecordID)
		if err != nil {
			return storageErr("check record", err)
		}
		if !exists {
			return &core.ReferentialError{RecordID: in.RecordID}
		}
		e, err = tx.Expenses().Insert(ctx, in)
		return storageErr("insert expense", err)
	})
	if err != nil {
		if core.IsReferential(err) {
			slog.WarnContext(ctx, "Expense rejected, record missing", "record_id", in.RecordID)
		}
		return Result[core.Expense]{}, storageErr("create expense", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"id", e.ID,
		"record_id", e.RecordID,
		"amount", e.Amount.String())
	return ok("Expense successfully created!", e), nil
}

func (s *ExpenseService) GetExpenseByID(ctx context.Context, id int64) (Result[core.Expense], error) {
	e, found, err := s.store.Expenses().FindByID(ctx, id)
	if err != nil {
		return Result[core.Expense]{}, storageErr("get expense", err)
	}
	if !found {
		return Result[core.Expense]{}, &core.NotFoundError{Kind: core.KindExpense, ID: id}
	}
	return ok("Expense found.", e), nil
}

// GetExpensesByRecordID lists the expenses of recordID without checking that
// the record still exists.
func (s *ExpenseService) GetExpensesByRecordID(ctx context.Context, recordID int64) (Result[[]core.Expense], error) {
	list, err := s.store.Expenses().FindByRecordID(ctx, recordID)
	if err != nil {
		return Result[[]core.Expense]{}, storageErr("list record expenses", err)
	}
	return ok(fmt.Sprintf("Fetched %d expense(s).", len(list)), list), nil
}

func (s *ExpenseService) GetAllExpenses(ctx context.Context) (Result[[]core.Expense], error) {
	list, err := s.store.Expenses().FindAll(ctx)
	if err != nil {
		return Result[[]core.Expense]{}, storageErr("list expenses", err)
	}
	return ok(fmt.Sprintf("Fetched %d expense(s).", len(list)), list), nil
}

func (s *ExpenseService) UpdateExpenseName(ctx context.Context, id int64, name string) (Result[core.Expense], error) {
	if err := core.ValidateExpenseName(name); err != nil {
		return Result[core.Expense]{}, err
	}
	return s.modify(ctx, id, func(tx storage.Tx) (core.Expense, error) {
		return tx.Expenses().UpdateName(ctx, id, name)
	})
}

func (s *ExpenseService) UpdateExpenseAmount(ctx context.Context, id int64, amount decimal.Decimal) (Result[core.Expense], error) {
	if err := core.ValidateExpenseAmount(amount); err != nil {
		return Result[core.Expense]{}, err
	}
	return s.modify(ctx, id, func(tx storage.Tx) (core.Expense, error) {
		return tx.Expenses().UpdateAmount(ctx, id, amount)
	})
}

// UpdateExpense changes name and amount together. Both are validated first
// and violations are reported together.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, name string, amount decimal.Decimal) (Result[core.Expense], error) {
	if err := validateNameAndAmount(name, amount); err != nil {
		return Result[core.Expense]{}, err
	}
	return s.modify(ctx, id, func(tx storage.Tx) (core.Expense, error) {
		if _, err := tx.Expenses().UpdateName(ctx, id, name); err != nil {
			return core.Expense{}, err
		}
		return tx.Expenses().UpdateAmount(ctx, id, amount)
	})
}

// PatchExpense applies whichever of name and amount the patch carries.
func (s *ExpenseService) PatchExpense(ctx context.Context, id int64, p core.ExpensePatch) (Result[core.Expense], error) {
	switch {
	case p.Name != nil && p.Amount != nil:
		return s.UpdateExpense(ctx, id, *p.Name, *p.Amount)
	case p.Name != nil:
		return s.UpdateExpenseName(ctx, id, *p.Name)
	case p.Amount != nil:
		return s.UpdateExpenseAmount(ctx, id, *p.Amount)
	default:
		return Result[core.Expense]{}, &core.ValidationError{Fields: []core.FieldError{
			{Field: core.FieldName, Message: "Expense name or amount is required."},
		}}
	}
}

func validateNameAndAmount(name string, amount decimal.Decimal) error {
	ve := &core.ValidationError{}
	for _, err := range []error{core.ValidateExpenseName(name), core.ValidateExpenseAmount(amount)} {
		var v *core.ValidationError
		if errors.As(err, &v) {
			ve.Fields = append(ve.Fields, v.Fields...)
		}
	}
	if len(ve.Fields) == 0 {
		return nil
	}
	return ve
}

// modify runs fn for an existing expense inside one transaction.
func (s *ExpenseService) modify(ctx context.Context, id int64, fn func(tx storage.Tx) (core.Expense, error)) (Result[core.Expense], error) {
	var e core.Expense
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		exists, err := tx.Expenses().Exists(ctx, id)
		if err != nil {
			return storageErr("check expense", err)
		}
		if !exists {
			return &core.NotFoundError{Kind: core.KindExpense, ID: id}
		}
		e, err = fn(tx)
		return notFoundOr("update expense", core.KindExpense, id, err)
	})
	if err != nil {
		return Result[core.Expense]{}, storageErr("update expense", err)
	}

	slog.InfoContext(ctx, "Expense updated", "id", e.ID, "amount", e.Amount.String())
	return ok("Expense updated.", e), nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) (Ack, error) {
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		exists, err := tx.Expenses().Exists(ctx, id)
		if err != nil {
			return storageErr("check expense", err)
		}
		if !exists {
			return &core.NotFoundError{Kind: core.KindExpense, ID: id}
		}
		return storageErr("delete expense", tx.Expenses().Delete(ctx, id))
	})
	if err != nil {
		return Ack{}, storageErr("delete expense", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return Ack{Message: fmt.Sprintf("Expense %d has been deleted.", id)}, nil
}
