package events

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// Ensure interface conformance
var (
	_ Publisher = (*Hub)(nil)
	_ Publisher = Multi{}
)

// Hub fans record changes out to in-process callbacks.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(RecordChange)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(RecordChange))}
}

// OnRecordChange registers fn for every subsequent change. The returned
// function removes the registration and is safe to call more than once.
func (h *Hub) OnRecordChange(fn func(RecordChange)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish calls every registered callback synchronously, in registration
// order. A panicking callback is logged and does not stop the others.
func (h *Hub) Publish(ctx context.Context, change RecordChange) error {
	h.mu.RLock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(RecordChange), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		h.dispatch(ctx, fn, change)
	}
	return nil
}

// Len reports the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) dispatch(ctx context.Context, fn func(RecordChange), change RecordChange) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Record change callback panicked",
				"panic", r,
				"change_id", change.ID,
				"record_id", change.RecordID)
		}
	}()
	fn(change)
}

// Multi publishes to each publisher in turn and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, change RecordChange) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
