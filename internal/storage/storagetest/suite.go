// Package storagetest holds behaviour checks shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
)

// Run exercises a fresh store returned by open. Each subtest gets its own store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("record lifecycle", func(t *testing.T) { recordLifecycle(t, open(t)) })
	t.Run("record update missing", func(t *testing.T) { recordUpdateMissing(t, open(t)) })
	t.Run("expense lifecycle", func(t *testing.T) { expenseLifecycle(t, open(t)) })
	t.Run("expense by record", func(t *testing.T) { expensesByRecord(t, open(t)) })
	t.Run("tx commit", func(t *testing.T) { txCommit(t, open(t)) })
	t.Run("tx rollback", func(t *testing.T) { txRollback(t, open(t)) })
}

func goat() core.RecordInput {
	return core.RecordInput{
		Name:        "Goat",
		Images:      []string{"https://img.example/goat-1.jpg", "https://img.example/goat-2.jpg"},
		BoughtPrice: 10000,
	}
}

func recordLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()
	recs := s.Records()

	created, err := recs.Insert(ctx, goat())
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if created.ID <= 0 {
		t.Fatalf("expected positive id, got %d", created.ID)
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Errorf("expected createdAt == updatedAt and non-zero, got %v / %v", created.CreatedAt, created.UpdatedAt)
	}
	if created.SoldPrice != nil {
		t.Errorf("expected nil sold price, got %d", *created.SoldPrice)
	}

	ok, err := recs.Exists(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("Exists(%d) = %v, %v; want true", created.ID, ok, err)
	}
	ok, err = recs.Exists(ctx, created.ID+100)
	if err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v; want false", ok, err)
	}

	got, found, err := recs.FindByID(ctx, created.ID)
	if err != nil || !found {
		t.Fatalf("FindByID = found %v, err %v", found, err)
	}
	if got.Name != "Goat" || len(got.Images) != 2 || got.Images[1] != "https://img.example/goat-2.jpg" {
		t.Errorf("unexpected record: %+v", got)
	}

	_, found, err = recs.FindByID(ctx, created.ID+100)
	if err != nil || found {
		t.Fatalf("FindByID(missing) = found %v, err %v", found, err)
	}

	second, err := recs.Insert(ctx, core.RecordInput{Name: "Cow", Images: []string{"c.jpg"}, BoughtPrice: 50000})
	if err != nil {
		t.Fatalf("Insert second failed: %v", err)
	}
	if second.ID == created.ID {
		t.Fatalf("expected distinct ids, both %d", second.ID)
	}

	all, err := recs.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != created.ID || all[1].ID != second.ID {
		t.Fatalf("expected two records ordered by id, got %+v", all)
	}

	next := goat()
	next.Name = "Goat (sold)"
	next.SoldPrice = core.Int64(12500)
	updated, err := recs.Update(ctx, created.ID, next)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.SoldPrice == nil || *updated.SoldPrice != 12500 || updated.Name != "Goat (sold)" {
		t.Errorf("unexpected updated record: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if updated.UpdatedAt.Before(created.UpdatedAt) {
		t.Errorf("updatedAt went backwards: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}

	if err := recs.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, _ := recs.Exists(ctx, created.ID); ok {
		t.Error("record still exists after delete")
	}
}

func recordUpdateMissing(t *testing.T, s storage.Store) {
	_, err := s.Records().Update(context.Background(), 4242, goat())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func expenseLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()
	rec, err := s.Records().Insert(ctx, goat())
	if err != nil {
		t.Fatalf("Insert record failed: %v", err)
	}
	exps := s.Expenses()

	e, err := exps.Insert(ctx, core.ExpenseInput{Name: "Feed", Amount: decimal.RequireFromString("1500.50"), RecordID: rec.ID})
	if err != nil {
		t.Fatalf("Insert expense failed: %v", err)
	}
	if e.ID <= 0 || e.RecordID != rec.ID || e.CreatedAt.IsZero() {
		t.Fatalf("unexpected expense: %+v", e)
	}
	if !e.Amount.Equal(decimal.RequireFromString("1500.5")) {
		t.Errorf("amount = %s, want 1500.5", e.Amount)
	}

	got, found, err := exps.FindByID(ctx, e.ID)
	if err != nil || !found || got.Name != "Feed" {
		t.Fatalf("FindByID = %+v, %v, %v", got, found, err)
	}

	renamed, err := exps.UpdateName(ctx, e.ID, "Hay")
	if err != nil || renamed.Name != "Hay" || !renamed.Amount.Equal(e.Amount) {
		t.Fatalf("UpdateName = %+v, %v", renamed, err)
	}

	repriced, err := exps.UpdateAmount(ctx, e.ID, decimal.NewFromInt(900))
	if err != nil || !repriced.Amount.Equal(decimal.NewFromInt(900)) || repriced.Name != "Hay" {
		t.Fatalf("UpdateAmount = %+v, %v", repriced, err)
	}

	if _, err := exps.UpdateName(ctx, e.ID+100, "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateName(missing) err = %v, want ErrNotFound", err)
	}
	if _, err := exps.UpdateAmount(ctx, e.ID+100, decimal.NewFromInt(1)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateAmount(missing) err = %v, want ErrNotFound", err)
	}

	all, err := exps.FindAll(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("FindAll = %d items, %v", len(all), err)
	}

	if err := exps.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, _ := exps.Exists(ctx, e.ID); ok {
		t.Error("expense still exists after delete")
	}
}

func expensesByRecord(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a, _ := s.Records().Insert(ctx, goat())
	b, _ := s.Records().Insert(ctx, goat())
	exps := s.Expenses()

	for _, in := range []core.ExpenseInput{
		{Name: "Feed", Amount: decimal.NewFromInt(500), RecordID: a.ID},
		{Name: "Vet", Amount: decimal.NewFromInt(2000), RecordID: a.ID},
		{Name: "Feed", Amount: decimal.NewFromInt(700), RecordID: b.ID},
	} {
		if _, err := exps.Insert(ctx, in); err != nil {
			t.Fatalf("Insert %+v failed: %v", in, err)
		}
	}

	list, err := exps.FindByRecordID(ctx, a.ID)
	if err != nil {
		t.Fatalf("FindByRecordID failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Feed" || list[1].Name != "Vet" {
		t.Fatalf("unexpected expenses for record a: %+v", list)
	}

	none, err := exps.FindByRecordID(ctx, 9999)
	if err != nil {
		t.Fatalf("FindByRecordID(missing) failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}

	if err := exps.DeleteByRecordID(ctx, a.ID); err != nil {
		t.Fatalf("DeleteByRecordID failed: %v", err)
	}
	if err := exps.DeleteByRecordID(ctx, 9999); err != nil {
		t.Fatalf("DeleteByRecordID(no match) failed: %v", err)
	}

	left, _ := exps.FindAll(ctx)
	if len(left) != 1 || left[0].RecordID != b.ID {
		t.Fatalf("expected only record b's expense left, got %+v", left)
	}
}

func txCommit(t *testing.T, s storage.Store) {
	ctx := context.Background()
	var recID int64
	err := s.WithTx(ctx, func(tx storage.Tx) error {
		rec, err := tx.Records().Insert(ctx, goat())
		if err != nil {
			return err
		}
		recID = rec.ID
		_, err = tx.Expenses().Insert(ctx, core.ExpenseInput{Name: "Feed", Amount: decimal.NewFromInt(10), RecordID: rec.ID})
		return err
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	if ok, _ := s.Records().Exists(ctx, recID); !ok {
		t.Error("committed record missing")
	}
	if list, _ := s.Expenses().FindByRecordID(ctx, recID); len(list) != 1 {
		t.Errorf("expected 1 committed expense, got %d", len(list))
	}
}

func txRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	rec, _ := s.Records().Insert(ctx, goat())
	if _, err := s.Expenses().Insert(ctx, core.ExpenseInput{Name: "Feed", Amount: decimal.NewFromInt(10), RecordID: rec.ID}); err != nil {
		t.Fatalf("Insert expense failed: %v", err)
	}

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.Expenses().DeleteByRecordID(ctx, rec.ID); err != nil {
			return err
		}
		if err := tx.Records().Delete(ctx, rec.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if ok, _ := s.Records().Exists(ctx, rec.ID); !ok {
		t.Error("record deleted despite rollback")
	}
	if list, _ := s.Expenses().FindByRecordID(ctx, rec.ID); len(list) != 1 {
		t.Errorf("expected expense to survive rollback, got %d", len(list))
	}
}
