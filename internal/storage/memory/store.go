// Package memory is an in-process storage backend. Data lives only as long as
// the Store value.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
)

// Ensure interface conformance
var (
	_ storage.Store             = (*Store)(nil)
	_ storage.RecordRepository  = recordRepo{}
	_ storage.ExpenseRepository = expenseRepo{}
)

type tables struct {
	records     map[int64]core.Record
	expenses    map[int64]core.Expense
	nextRecord  int64
	nextExpense int64
}

func newTables() *tables {
	return &tables{
		records:  make(map[int64]core.Record),
		expenses: make(map[int64]core.Expense),
	}
}

func (t *tables) clone() *tables {
	out := &tables{
		records:     make(map[int64]core.Record, len(t.records)),
		expenses:    make(map[int64]core.Expense, len(t.expenses)),
		nextRecord:  t.nextRecord,
		nextExpense: t.nextExpense,
	}
	for id, r := range t.records {
		out.records[id] = r.Clone()
	}
	for id, e := range t.expenses {
		out.expenses[id] = e
	}
	return out
}

// Store keeps records and expenses in maps guarded by one mutex.
type Store struct {
	mu   sync.Mutex
	data *tables
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{data: newTables(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Records() storage.RecordRepository   { return recordRepo{s: s} }
func (s *Store) Expenses() storage.ExpenseRepository { return expenseRepo{s: s} }
func (s *Store) Close() error                        { return nil }

// WithTx runs fn against a private copy of the tables and swaps it in on
// success. The store is locked for the duration, so fn must only use tx.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(txView{s: s, t: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

type txView struct {
	s *Store
	t *tables
}

func (v txView) Records() storage.RecordRepository   { return recordRepo{s: v.s, t: v.t} }
func (v txView) Expenses() storage.ExpenseRepository { return expenseRepo{s: v.s, t: v.t} }

// with runs fn on the transaction tables when bound, otherwise on the live
// tables under the store lock.
func with(s *Store, t *tables, fn func(t *tables)) {
	if t != nil {
		fn(t)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

type recordRepo struct {
	s *Store
	t *tables
}

func (r recordRepo) Exists(_ context.Context, id int64) (bool, error) {
	var ok bool
	with(r.s, r.t, func(t *tables) { _, ok = t.records[id] })
	return ok, nil
}

func (r recordRepo) Insert(_ context.Context, in core.RecordInput) (core.Record, error) {
	var out core.Record
	with(r.s, r.t, func(t *tables) {
		t.nextRecord++
		now := r.s.stamp()
		in := in.Clone()
		rec := core.Record{
			ID:          t.nextRecord,
			Name:        in.Name,
			Images:      in.Images,
			BoughtPrice: in.BoughtPrice,
			SoldPrice:   in.SoldPrice,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		t.records[rec.ID] = rec
		out = rec.Clone()
	})
	return out, nil
}

func (r recordRepo) FindAll(_ context.Context) ([]core.Record, error) {
	var out []core.Record
	with(r.s, r.t, func(t *tables) {
		out = make([]core.Record, 0, len(t.records))
		for _, rec := range t.records {
			out = append(out, rec.Clone())
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r recordRepo) FindByID(_ context.Context, id int64) (core.Record, bool, error) {
	var (
		out core.Record
		ok  bool
	)
	with(r.s, r.t, func(t *tables) {
		var rec core.Record
		if rec, ok = t.records[id]; ok {
			out = rec.Clone()
		}
	})
	return out, ok, nil
}

func (r recordRepo) Update(_ context.Context, id int64, in core.RecordInput) (core.Record, error) {
	var (
		out core.Record
		ok  bool
	)
	with(r.s, r.t, func(t *tables) {
		var rec core.Record
		if rec, ok = t.records[id]; !ok {
			return
		}
		next := in.Clone()
		rec.Name = next.Name
		rec.Images = next.Images
		rec.BoughtPrice = next.BoughtPrice
		rec.SoldPrice = next.SoldPrice
		rec.UpdatedAt = r.s.stamp()
		t.records[id] = rec
		out = rec.Clone()
	})
	if !ok {
		return core.Record{}, storage.ErrNotFound
	}
	return out, nil
}

func (r recordRepo) Delete(_ context.Context, id int64) error {
	with(r.s, r.t, func(t *tables) { delete(t.records, id) })
	return nil
}

type expenseRepo struct {
	s *Store
	t *tables
}

func (r expenseRepo) Exists(_ context.Context, id int64) (bool, error) {
	var ok bool
	with(r.s, r.t, func(t *tables) { _, ok = t.expenses[id] })
	return ok, nil
}

func (r expenseRepo) Insert(_ context.Context, in core.ExpenseInput) (core.Expense, error) {
	var out core.Expense
	with(r.s, r.t, func(t *tables) {
		t.nextExpense++
		out = core.Expense{
			ID:        t.nextExpense,
			Name:      in.Name,
			Amount:    in.Amount,
			RecordID:  in.RecordID,
			CreatedAt: r.s.stamp(),
		}
		t.expenses[out.ID] = out
	})
	return out, nil
}

func (r expenseRepo) FindAll(_ context.Context) ([]core.Expense, error) {
	return r.filter(func(core.Expense) bool { return true }), nil
}

func (r expenseRepo) FindByID(_ context.Context, id int64) (core.Expense, bool, error) {
	var (
		out core.Expense
		ok  bool
	)
	with(r.s, r.t, func(t *tables) { out, ok = t.expenses[id] })
	return out, ok, nil
}

func (r expenseRepo) FindByRecordID(_ context.Context, recordID int64) ([]core.Expense, error) {
	return r.filter(func(e core.Expense) bool { return e.RecordID == recordID }), nil
}

func (r expenseRepo) UpdateName(_ context.Context, id int64, name string) (core.Expense, error) {
	return r.modify(id, func(e *core.Expense) { e.Name = name })
}

func (r expenseRepo) UpdateAmount(_ context.Context, id int64, amount decimal.Decimal) (core.Expense, error) {
	return r.modify(id, func(e *core.Expense) { e.Amount = amount })
}

func (r expenseRepo) Delete(_ context.Context, id int64) error {
	with(r.s, r.t, func(t *tables) { delete(t.expenses, id) })
	return nil
}

func (r expenseRepo) DeleteByRecordID(_ context.Context, recordID int64) error {
	with(r.s, r.t, func(t *tables) {
		for id, e := range t.expenses {
			if e.RecordID == recordID {
				delete(t.expenses, id)
			}
		}
	})
	return nil
}

func (r expenseRepo) filter(keep func(core.Expense) bool) []core.Expense {
	out := make([]core.Expense, 0)
	with(r.s, r.t, func(t *tables) {
		for _, e := range t.expenses {
			if keep(e) {
				out = append(out, e)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r expenseRepo) modify(id int64, fn func(e *core.Expense)) (core.Expense, error) {
	var (
		out core.Expense
		ok  bool
	)
	with(r.s, r.t, func(t *tables) {
		if out, ok = t.expenses[id]; !ok {
			return
		}
		fn(&out)
		t.expenses[id] = out
	})
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	return out, nil
}
