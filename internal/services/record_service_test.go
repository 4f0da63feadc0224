package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/events"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
	"github.com/mrx7355608/finance-app-2.0/internal/storage/memory"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []events.RecordChange
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, c events.RecordChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

func (p *recordingPublisher) types() []events.ChangeType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.ChangeType, 0, len(p.changes))
	for _, c := range p.changes {
		out = append(out, c.Type)
	}
	return out
}

// payload decodes body the way the HTTP layer does.
func payload(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return m
}

func newServices(pub events.Publisher) (*RecordService, *ExpenseService, storage.Store) {
	store := memory.New()
	return NewRecordService(store, pub), NewExpenseService(store), store
}

func mustCreateRecord(t *testing.T, s *RecordService, body string) core.Record {
	t.Helper()
	res, err := s.CreateRecord(context.Background(), payload(t, body))
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	return res.Data
}

func TestCreateRecord_Valid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want core.RecordInput
	}{
		{
			name: "unsold, one image",
			body: `{"name":"Goat","images":["a.jpg"],"boughtPrice":10000}`,
			want: core.RecordInput{Name: "Goat", Images: []string{"a.jpg"}, BoughtPrice: 10000},
		},
		{
			name: "sold, explicit null ignored",
			body: `{"name":"Cow","images":["a.jpg","b.jpg"],"boughtPrice":0,"soldPrice":null}`,
			want: core.RecordInput{Name: "Cow", Images: []string{"a.jpg", "b.jpg"}},
		},
		{
			name: "sold, max images, name kept verbatim",
			body: `{"name":"  Buffalo  ","images":["1","2","3","4","5","6","7","8","9","10"],"boughtPrice":50000,"soldPrice":65000}`,
			want: core.RecordInput{Name: "  Buffalo  ", Images: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, BoughtPrice: 50000, SoldPrice: core.Int64(65000)},
		},
		{
			name: "two characters counting a trailing space",
			body: `{"name":"a ","images":[" "],"boughtPrice":1}`,
			want: core.RecordInput{Name: "a ", Images: []string{" "}, BoughtPrice: 1},
		},
		{
			name: "name at 50 characters",
			body: `{"name":"` + strings.Repeat("x", 50) + `","images":["a.jpg"],"boughtPrice":1}`,
			want: core.RecordInput{Name: strings.Repeat("x", 50), Images: []string{"a.jpg"}, BoughtPrice: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, _, _ := newServices(nil)
			res, err := rs.CreateRecord(context.Background(), payload(t, tt.body))
			if err != nil {
				t.Fatalf("CreateRecord failed: %v", err)
			}
			if res.Message != "Record successfully created!" {
				t.Errorf("message = %q", res.Message)
			}

			got := res.Data
			if got.ID <= 0 || got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
				t.Errorf("server fields not populated: %+v", got)
			}
			assertRecordMatches(t, got, tt.want)

			fetched, err := rs.GetRecordByID(context.Background(), got.ID)
			if err != nil {
				t.Fatalf("GetRecordByID failed: %v", err)
			}
			assertRecordMatches(t, fetched.Data, tt.want)
			if !fetched.Data.CreatedAt.Equal(got.CreatedAt) {
				t.Errorf("createdAt changed on fetch")
			}
		})
	}
}

func assertRecordMatches(t *testing.T, got core.Record, want core.RecordInput) {
	t.Helper()
	if got.Name != want.Name || got.BoughtPrice != want.BoughtPrice {
		t.Errorf("got name=%q bought=%d, want name=%q bought=%d", got.Name, got.BoughtPrice, want.Name, want.BoughtPrice)
	}
	if (got.SoldPrice == nil) != (want.SoldPrice == nil) || (got.SoldPrice != nil && *got.SoldPrice != *want.SoldPrice) {
		t.Errorf("sold price = %v, want %v", got.SoldPrice, want.SoldPrice)
	}
	if len(got.Images) != len(want.Images) {
		t.Fatalf("images = %v, want %v", got.Images, want.Images)
	}
	for i := range want.Images {
		if got.Images[i] != want.Images[i] {
			t.Errorf("images[%d] = %q, want %q", i, got.Images[i], want.Images[i])
		}
	}
}

func TestCreateRecord_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"empty name", `{"name":"","images":["a"],"boughtPrice":1}`, core.FieldName},
		{"one char name", `{"name":"G","images":["a"],"boughtPrice":1}`, core.FieldName},
		{"51 char name", `{"name":"` + strings.Repeat("x", 51) + `","images":["a"],"boughtPrice":1}`, core.FieldName},
		{"no images", `{"name":"Goat","images":[],"boughtPrice":1}`, core.FieldImages},
		{"eleven images", `{"name":"Goat","images":["1","2","3","4","5","6","7","8","9","10","11"],"boughtPrice":1}`, core.FieldImages},
		{"negative bought price", `{"name":"Goat","images":["a"],"boughtPrice":-1}`, core.FieldBoughtPrice},
		{"negative sold price", `{"name":"Goat","images":["a"],"boughtPrice":1,"soldPrice":-5}`, core.FieldSoldPrice},
		{"missing bought price", `{"name":"Goat","images":["a"]}`, core.FieldBoughtPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, _, store := newServices(nil)
			_, err := rs.CreateRecord(context.Background(), payload(t, tt.body))

			var ve *core.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !ve.Has(tt.wantField) {
				t.Errorf("expected violation on %q, got %+v", tt.wantField, ve.Fields)
			}

			all, _ := store.Records().FindAll(context.Background())
			if len(all) != 0 {
				t.Errorf("invalid input persisted %d records", len(all))
			}
		})
	}
}

func TestCreateRecordInput_Typed(t *testing.T) {
	rs, _, _ := newServices(nil)

	_, err := rs.CreateRecordInput(context.Background(), core.RecordInput{Name: "G", Images: []string{"a"}})
	if !core.IsValidation(err) {
		t.Fatalf("expected ValidationError for short name, got %v", err)
	}

	res, err := rs.CreateRecordInput(context.Background(), core.RecordInput{Name: " Goat ", Images: []string{" a.jpg "}, BoughtPrice: 5})
	if err != nil {
		t.Fatalf("CreateRecordInput failed: %v", err)
	}
	if res.Data.Name != " Goat " || res.Data.Images[0] != " a.jpg " {
		t.Errorf("input was rewritten: %+v", res.Data)
	}
}

func TestGetAllRecords(t *testing.T) {
	rs, _, _ := newServices(nil)

	res, err := rs.GetAllRecords(context.Background())
	if err != nil {
		t.Fatalf("GetAllRecords failed: %v", err)
	}
	if res.Message != "Fetched 0 record(s)." || len(res.Data) != 0 {
		t.Errorf("unexpected empty result: %+v", res)
	}

	mustCreateRecord(t, rs, `{"name":"Goat","images":["a"],"boughtPrice":1}`)
	mustCreateRecord(t, rs, `{"name":"Cow","images":["a"],"boughtPrice":1}`)

	res, _ = rs.GetAllRecords(context.Background())
	if res.Message != "Fetched 2 record(s)." || len(res.Data) != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestGetRecordByID_NotFound(t *testing.T) {
	rs, _, _ := newServices(nil)

	_, err := rs.GetRecordByID(context.Background(), 99)
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Kind != core.KindRecord || nf.ID != 99 {
		t.Errorf("unexpected not found error: %+v", nf)
	}
	if err.Error() != "Record with ID 99 not found." {
		t.Errorf("message = %q", err.Error())
	}
}

func TestUpdateRecord(t *testing.T) {
	pub := &recordingPublisher{}
	rs, _, _ := newServices(pub)
	rec := mustCreateRecord(t, rs, `{"name":"Goat","images":["a"],"boughtPrice":2000}`)

	t.Run("valid replacement", func(t *testing.T) {
		res, err := rs.UpdateRecord(context.Background(), rec.ID,
			payload(t, `{"name":"Goat","images":["a","b"],"boughtPrice":2000,"soldPrice":3000}`))
		if err != nil {
			t.Fatalf("UpdateRecord failed: %v", err)
		}
		if res.Message != "Record updated." || res.Data.SoldPrice == nil || *res.Data.SoldPrice != 3000 || len(res.Data.Images) != 2 {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("validation runs before existence", func(t *testing.T) {
		_, err := rs.UpdateRecord(context.Background(), 999, payload(t, `{"name":"G","images":["a"],"boughtPrice":1}`))
		if !core.IsValidation(err) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := rs.UpdateRecordInput(context.Background(), 999, core.RecordInput{Name: "Goat", Images: []string{"a"}})
		if !core.IsNotFound(err) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	got := pub.types()
	if len(got) != 2 || got[0] != events.ChangeInsert || got[1] != events.ChangeUpdate {
		t.Errorf("published changes = %v, want [insert update]", got)
	}
}

func TestDeleteRecord_Cascade(t *testing.T) {
	pub := &recordingPublisher{}
	rs, es, store := newServices(pub)
	ctx := context.Background()

	keep := mustCreateRecord(t, rs, `{"name":"Cow","images":["a"],"boughtPrice":1}`)
	rec := mustCreateRecord(t, rs, `{"name":"Goat","images":["a"],"boughtPrice":1}`)
	for _, body := range []string{
		`{"name":"Feed","amount":500,"recordId":` + itoa(rec.ID) + `}`,
		`{"name":"Vet","amount":200.5,"recordId":` + itoa(rec.ID) + `}`,
		`{"name":"Feed","amount":10,"recordId":` + itoa(keep.ID) + `}`,
	} {
		if _, err := es.CreateExpense(ctx, payload(t, body)); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
	}

	ack, err := rs.DeleteRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if ack.Message != "Record "+itoa(rec.ID)+" has been deleted." {
		t.Errorf("message = %q", ack.Message)
	}

	left, err := es.GetExpensesByRecordID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetExpensesByRecordID failed: %v", err)
	}
	if len(left.Data) != 0 {
		t.Errorf("expected cascade to remove expenses, %d left", len(left.Data))
	}
	if all, _ := store.Expenses().FindAll(ctx); len(all) != 1 || all[0].RecordID != keep.ID {
		t.Errorf("cascade touched other records' expenses: %+v", all)
	}

	_, err = rs.DeleteRecord(ctx, rec.ID)
	if !core.IsNotFound(err) {
		t.Fatalf("second delete: expected NotFoundError, got %v", err)
	}
	if core.IsStorage(err) {
		t.Error("second delete reported a storage error")
	}

	last := pub.changes[len(pub.changes)-1]
	if last.Type != events.ChangeDelete || last.RecordID != rec.ID || last.Record != nil {
		t.Errorf("unexpected last change: %+v", last)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	rs, _, _ := newServices(pub)

	if _, err := rs.CreateRecord(context.Background(), payload(t, `{"name":"Goat","images":["a"],"boughtPrice":1}`)); err != nil {
		t.Fatalf("CreateRecord failed on publish error: %v", err)
	}
	if len(pub.changes) != 1 {
		t.Errorf("expected one publish attempt, got %d", len(pub.changes))
	}
}

func TestGetRecordSummary(t *testing.T) {
	rs, es, _ := newServices(nil)
	ctx := context.Background()

	rec := mustCreateRecord(t, rs, `{"name":"Goat","images":["a"],"boughtPrice":2000,"soldPrice":3000}`)
	if _, err := es.CreateExpenseInput(ctx, core.ExpenseInput{Name: "Feed", Amount: decimal.NewFromInt(500), RecordID: rec.ID}); err != nil {
		t.Fatalf("CreateExpenseInput failed: %v", err)
	}

	res, err := rs.GetRecordSummary(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecordSummary failed: %v", err)
	}
	sum := res.Data.Summary
	if !sum.TotalExpenses.Equal(decimal.NewFromInt(500)) || !sum.ProfitLoss.Equal(decimal.NewFromInt(500)) || !sum.IsProfitable {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if len(res.Data.Expenses) != 1 || res.Data.Record.ID != rec.ID {
		t.Errorf("unexpected summary payload: %+v", res.Data)
	}
	if res.Data.TotalExpensesDisplay != "Rs 500" || res.Data.ProfitLossDisplay != "Rs 500" {
		t.Errorf("display = %q / %q", res.Data.TotalExpensesDisplay, res.Data.ProfitLossDisplay)
	}

	if _, err := rs.GetRecordSummary(ctx, 404); !core.IsNotFound(err) {
		t.Errorf("expected NotFoundError for missing record, got %v", err)
	}
}

var errBackend = errors.New("disk I/O error")

// brokenStore fails every record read and write.
type brokenStore struct {
	storage.Store
}

type brokenRecords struct {
	storage.RecordRepository
}

func (brokenRecords) Exists(context.Context, int64) (bool, error) { return false, errBackend }
func (brokenRecords) Insert(context.Context, core.RecordInput) (core.Record, error) {
	return core.Record{}, errBackend
}
func (brokenRecords) FindAll(context.Context) ([]core.Record, error) { return nil, errBackend }
func (brokenRecords) FindByID(context.Context, int64) (core.Record, bool, error) {
	return core.Record{}, false, errBackend
}

type brokenTx struct{ storage.Tx }

func (t brokenTx) Records() storage.RecordRepository { return brokenRecords{t.Tx.Records()} }

func (s brokenStore) Records() storage.RecordRepository { return brokenRecords{s.Store.Records()} }
func (s brokenStore) WithTx(ctx context.Context, fn func(storage.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx storage.Tx) error { return fn(brokenTx{tx}) })
}

func TestRecordService_StorageErrors(t *testing.T) {
	store := brokenStore{memory.New()}
	rs := NewRecordService(store, nil)
	es := NewExpenseService(store)
	ctx := context.Background()

	checks := map[string]func() error{
		"create": func() error {
			_, err := rs.CreateRecordInput(ctx, core.RecordInput{Name: "Goat", Images: []string{"a"}})
			return err
		},
		"list":    func() error { _, err := rs.GetAllRecords(ctx); return err },
		"get":     func() error { _, err := rs.GetRecordByID(ctx, 1); return err },
		"delete":  func() error { _, err := rs.DeleteRecord(ctx, 1); return err },
		"summary": func() error { _, err := rs.GetRecordSummary(ctx, 1); return err },
		"expense create": func() error {
			_, err := es.CreateExpenseInput(ctx, core.ExpenseInput{Name: "Feed", Amount: decimal.NewFromInt(1), RecordID: 1})
			return err
		},
	}

	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			err := call()
			var se *core.StorageError
			if !errors.As(err, &se) {
				t.Fatalf("expected StorageError, got %v", err)
			}
			if !errors.Is(err, errBackend) {
				t.Errorf("StorageError does not wrap backend error: %v", err)
			}
		})
	}
}
