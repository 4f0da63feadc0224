package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
	"github.com/mrx7355608/finance-app-2.0/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestStore_ClockAndIsolation(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.FixedZone("PKT", 5*3600))
	s := New(WithClock(func() time.Time { return fixed }))

	in := core.RecordInput{Name: "Goat", Images: []string{"a.jpg"}, BoughtPrice: 100}
	rec, err := s.Records().Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !rec.CreatedAt.Equal(fixed) || rec.CreatedAt.Location() != time.UTC {
		t.Errorf("createdAt = %v, want %v in UTC", rec.CreatedAt, fixed)
	}

	// Mutating the caller's slices must not leak into the store.
	in.Images[0] = "mutated.jpg"
	rec.Images[0] = "mutated.jpg"

	got, _, _ := s.Records().FindByID(ctx, rec.ID)
	if got.Images[0] != "a.jpg" {
		t.Errorf("stored image changed to %q", got.Images[0])
	}
}

func TestStore_WithTxCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().WithTx(ctx, func(storage.Tx) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if called {
		t.Error("fn ran despite cancelled context")
	}
}
