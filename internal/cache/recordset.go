// Package cache keeps a transient, non-authoritative copy of the record list
// for whoever renders it. Storage stays the source of truth; the copy is
// refreshed from change events and can always be reloaded with Reset.
package cache

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/events"
)

// LoadFunc fetches the full record list from the authoritative store.
type LoadFunc func(ctx context.Context) ([]core.Record, error)

type RecordSet struct {
	mu   sync.RWMutex
	byID map[int64]core.Record
	load LoadFunc
}

func NewRecordSet(load LoadFunc) *RecordSet {
	return &RecordSet{byID: make(map[int64]core.Record), load: load}
}

// Reset replaces the contents with a fresh load.
func (s *RecordSet) Reset(ctx context.Context) error {
	recs, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	next := make(map[int64]core.Record, len(recs))
	for _, r := range recs {
		next[r.ID] = r.Clone()
	}

	s.mu.Lock()
	s.byID = next
	s.mu.Unlock()

	slog.DebugContext(ctx, "Record cache reloaded", "count", len(next))
	return nil
}

// Apply folds one change into the set. Inserts and updates older than the
// cached copy are ignored.
func (s *RecordSet) Apply(change events.RecordChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch change.Type {
	case events.ChangeDelete:
		delete(s.byID, change.RecordID)
	case events.ChangeInsert, events.ChangeUpdate:
		if change.Record == nil {
			return
		}
		if cur, ok := s.byID[change.RecordID]; ok && change.Record.UpdatedAt.Before(cur.UpdatedAt) {
			return
		}
		s.byID[change.RecordID] = change.Record.Clone()
	}
}

// Handle adapts Apply to the AMQP consumer handler signature.
func (s *RecordSet) Handle(_ context.Context, change events.RecordChange) error {
	s.Apply(change)
	return nil
}

// List returns a copy of every cached record ordered by id.
func (s *RecordSet) List() []core.Record {
	s.mu.RLock()
	out := make([]core.Record, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b core.Record) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *RecordSet) Get(id int64) (core.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return core.Record{}, false
	}
	return r.Clone(), true
}

func (s *RecordSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
