package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
)

func TestHub_PublishInRegistrationOrder(t *testing.T) {
	hub := NewHub()
	var got []string

	hub.OnRecordChange(func(RecordChange) { got = append(got, "first") })
	hub.OnRecordChange(func(RecordChange) { got = append(got, "second") })
	hub.OnRecordChange(func(RecordChange) { got = append(got, "third") })

	if err := hub.Publish(context.Background(), NewRecordDeleted(1)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	calls := 0
	unsubscribe := hub.OnRecordChange(func(RecordChange) { calls++ })

	hub.Publish(context.Background(), NewRecordDeleted(1))
	unsubscribe()
	unsubscribe()
	hub.Publish(context.Background(), NewRecordDeleted(2))

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if hub.Len() != 0 {
		t.Errorf("expected no subscriptions, got %d", hub.Len())
	}
}

func TestHub_PanickingCallbackDoesNotStopOthers(t *testing.T) {
	hub := NewHub()
	reached := false
	hub.OnRecordChange(func(RecordChange) { panic("boom") })
	hub.OnRecordChange(func(RecordChange) { reached = true })

	if err := hub.Publish(context.Background(), NewRecordDeleted(1)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !reached {
		t.Error("second callback not called after first panicked")
	}
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, RecordChange) error { return f.err }

func TestMulti_JoinsErrors(t *testing.T) {
	errA := errors.New("a")
	hub := NewHub()
	delivered := false
	hub.OnRecordChange(func(RecordChange) { delivered = true })

	m := Multi{failingPublisher{errA}, nil, hub}
	err := m.Publish(context.Background(), NewRecordDeleted(1))
	if !errors.Is(err, errA) {
		t.Fatalf("expected joined error to contain errA, got %v", err)
	}
	if !delivered {
		t.Error("hub did not receive change after earlier publisher failed")
	}
}

func TestNewRecordChange(t *testing.T) {
	rec := core.Record{ID: 7, Name: "Goat", Images: []string{"a.jpg"}, BoughtPrice: 100}

	c := NewRecordChange(ChangeInsert, rec)
	if c.ID == uuid.Nil {
		t.Error("expected a generated id")
	}
	if c.RecordID != 7 || c.Record == nil || c.Record.Name != "Goat" {
		t.Fatalf("unexpected change: %+v", c)
	}
	rec.Images[0] = "mutated.jpg"
	if c.Record.Images[0] != "a.jpg" {
		t.Error("change shares image slice with caller")
	}

	d := NewRecordDeleted(7)
	if d.Type != ChangeDelete || d.Record != nil || d.RecordID != 7 {
		t.Errorf("unexpected delete change: %+v", d)
	}
}

func TestRecordChangeFromJSON(t *testing.T) {
	valid, _ := NewRecordChange(ChangeUpdate, core.Record{ID: 3, Name: "Cow"}).ToJSON()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid update", body: string(valid)},
		{name: "valid delete", body: `{"type":"delete","recordId":4}`},
		{name: "malformed", body: `{"type":`, wantErr: true},
		{name: "unknown type", body: `{"type":"upsert","recordId":4}`, wantErr: true},
		{name: "missing record id", body: `{"type":"delete"}`, wantErr: true},
		{name: "insert without record", body: `{"type":"insert","recordId":4}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecordChangeFromJSON([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("RecordChangeFromJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
