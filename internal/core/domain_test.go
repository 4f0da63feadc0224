package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func images(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = "https://img.example/" + strings.Repeat("a", i+1) + ".jpg"
	}
	return out
}

func TestParseRecordInputValid(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		sold *int64
	}{
		{"min name and one image", map[string]any{"name": "Ox", "images": images(1), "boughtPrice": json.Number("0")}, nil},
		{"max name and ten images", map[string]any{"name": strings.Repeat("b", 50), "images": images(10), "boughtPrice": 2000.0}, nil},
		{"sold price present", map[string]any{"name": "Bessie", "images": images(2), "boughtPrice": json.Number("2000"), "soldPrice": json.Number("3000")}, Int64(3000)},
		{"sold price null", map[string]any{"name": "Bessie", "images": images(2), "boughtPrice": 10, "soldPrice": nil}, nil},
		{"typed images", map[string]any{"name": "Goat", "images": []string{"a.jpg"}, "boughtPrice": int64(5)}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := ParseRecordInput(tc.raw)
			if err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if (in.SoldPrice == nil) != (tc.sold == nil) {
				t.Fatalf("sold price = %v, want %v", in.SoldPrice, tc.sold)
			}
			if tc.sold != nil && *in.SoldPrice != *tc.sold {
				t.Fatalf("sold price = %d, want %d", *in.SoldPrice, *tc.sold)
			}
		})
	}
}

func TestParseRecordInputInvalid(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{"name": "Bessie", "images": images(1), "boughtPrice": json.Number("100")}
	}
	cases := []struct {
		name   string
		mutate func(m map[string]any)
		field  string
		msg    string
	}{
		{"empty name", func(m map[string]any) { m["name"] = "" }, FieldName, "Name should be at least 2 characters long."},
		{"one char name", func(m map[string]any) { m["name"] = "B" }, FieldName, "Name should be at least 2 characters long."},
		{"single character name", func(m map[string]any) { m["name"] = "B" }, FieldName, "Name should be at least 2 characters long."},
		{"51 char name", func(m map[string]any) { m["name"] = strings.Repeat("x", 51) }, FieldName, "Name should not exceed 50 characters."},
		{"missing name", func(m map[string]any) { delete(m, "name") }, FieldName, "Animal name is required."},
		{"numeric name", func(m map[string]any) { m["name"] = 12 }, FieldName, "Name must be a string."},
		{"no images", func(m map[string]any) { m["images"] = []any{} }, FieldImages, "At least 1 image is required"},
		{"missing images", func(m map[string]any) { delete(m, "images") }, FieldImages, "At least 1 image is required"},
		{"eleven images", func(m map[string]any) { m["images"] = images(11) }, FieldImages, "Maximum of 10 images allowed"},
		{"image not string", func(m map[string]any) { m["images"] = []any{"a.jpg", 3} }, "images[1]", "Image must be a string"},
		{"empty image", func(m map[string]any) { m["images"] = []any{""} }, "images[0]", "Image URL is required"},
		{"images not a list", func(m map[string]any) { m["images"] = "a.jpg" }, FieldImages, "Images must be a list of image URLs."},
		{"negative bought price", func(m map[string]any) { m["boughtPrice"] = json.Number("-1") }, FieldBoughtPrice, "Bought price must be zero or greater."},
		{"fractional bought price", func(m map[string]any) { m["boughtPrice"] = 10.5 }, FieldBoughtPrice, "Bought price must be an integer."},
		{"string bought price", func(m map[string]any) { m["boughtPrice"] = "10" }, FieldBoughtPrice, "Bought price must be a number."},
		{"missing bought price", func(m map[string]any) { delete(m, "boughtPrice") }, FieldBoughtPrice, "Bought price is required."},
		{"negative sold price", func(m map[string]any) { m["soldPrice"] = json.Number("-5") }, FieldSoldPrice, "Sold price must be zero or greater."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := valid()
			tc.mutate(raw)
			_, err := ParseRecordInput(raw)
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
			}
			msgs := ve.Messages(tc.field)
			if len(msgs) == 0 || msgs[0] != tc.msg {
				t.Fatalf("field %s messages = %v, want %q (all: %v)", tc.field, msgs, tc.msg, ve.Fields)
			}
		})
	}
}

func TestParseRecordInputCollectsAllErrors(t *testing.T) {
	_, err := ParseRecordInput(map[string]any{
		"name":        "B",
		"images":      []any{},
		"boughtPrice": json.Number("-3"),
		"soldPrice":   json.Number("-1"),
	})
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, f := range []string{FieldName, FieldImages, FieldBoughtPrice, FieldSoldPrice} {
		if !ve.Has(f) {
			t.Errorf("expected a violation on %s, got %v", f, ve.Fields)
		}
	}
}

func TestRecordInputValidate(t *testing.T) {
	good := RecordInput{Name: " Bessie ", Images: []string{"a.jpg"}, BoughtPrice: 0}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (RecordInput{Name: "a ", Images: []string{" "}}).Validate(); err != nil {
		t.Fatalf("whitespace counts towards length and non-emptiness, got %v", err)
	}

	bads := []RecordInput{
		{Name: "B", Images: []string{"a"}, BoughtPrice: 1},
		{Name: "Bessie", Images: nil, BoughtPrice: 1},
		{Name: "Bessie", Images: make([]string, 11), BoughtPrice: 1},
		{Name: "Bessie", Images: []string{"a"}, BoughtPrice: -1},
		{Name: "Bessie", Images: []string{"a"}, BoughtPrice: 1, SoldPrice: Int64(-1)},
	}
	for i, in := range bads {
		if err := in.Validate(); !IsValidation(err) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestParseExpenseInput(t *testing.T) {
	in, err := ParseExpenseInput(map[string]any{"name": " Feed ", "amount": json.Number("12.50"), "recordId": json.Number("3")})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if in.Name != " Feed " || !in.Amount.Equal(decimal.RequireFromString("12.5")) || in.RecordID != 3 {
		t.Fatalf("unexpected input %+v", in)
	}

	cases := []struct {
		name  string
		raw   map[string]any
		field string
		msg   string
	}{
		{"empty name", map[string]any{"name": "", "amount": 1.0, "recordId": 1.0}, FieldName, "Expense name cannot be empty."},
		{"missing name", map[string]any{"amount": 1.0, "recordId": 1.0}, FieldName, "Expense name is required."},
		{"zero amount", map[string]any{"name": "Feed", "amount": 0.0, "recordId": 1.0}, FieldAmount, "Expense amount must be greater than 0."},
		{"negative amount", map[string]any{"name": "Feed", "amount": json.Number("-5"), "recordId": 1.0}, FieldAmount, "Expense amount must be greater than 0."},
		{"string amount", map[string]any{"name": "Feed", "amount": "5", "recordId": 1.0}, FieldAmount, "Expense amount must be a number."},
		{"missing amount", map[string]any{"name": "Feed", "recordId": 1.0}, FieldAmount, "Expense amount is required."},
		{"zero record id", map[string]any{"name": "Feed", "amount": 1.0, "recordId": 0.0}, FieldRecordID, "Record ID must be greater than 0."},
		{"fractional record id", map[string]any{"name": "Feed", "amount": 1.0, "recordId": 1.5}, FieldRecordID, "Record ID must be an integer."},
		{"missing record id", map[string]any{"name": "Feed", "amount": 1.0}, FieldRecordID, "Record ID is required."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseExpenseInput(tc.raw)
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if msgs := ve.Messages(tc.field); len(msgs) == 0 || msgs[0] != tc.msg {
				t.Fatalf("field %s messages = %v, want %q", tc.field, msgs, tc.msg)
			}
		})
	}
}

func TestValidateExpenseAmount(t *testing.T) {
	for _, s := range []string{"0", "-5"} {
		if err := ValidateExpenseAmount(decimal.RequireFromString(s)); !IsValidation(err) {
			t.Fatalf("amount %s: expected validation error, got %v", s, err)
		}
	}
	if err := ValidateExpenseAmount(decimal.NewFromInt(1)); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := ValidateExpenseName("   "); !IsValidation(err) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	nf := &NotFoundError{Kind: KindRecord, ID: 7}
	if nf.Error() != "Record with ID 7 not found." {
		t.Fatalf("unexpected message %q", nf.Error())
	}
	if IsReferential(nf) || !IsNotFound(nf) {
		t.Fatalf("not found error misclassified")
	}
	ref := &ReferentialError{RecordID: 9}
	if IsNotFound(ref) || !IsReferential(ref) {
		t.Fatalf("referential error misclassified")
	}
	se := &StorageError{Op: "insert record", Err: errTest}
	if !IsStorage(se) || se.Unwrap() != errTest {
		t.Fatalf("storage error does not unwrap")
	}
}

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "boom" }

func TestParseExpensePatch(t *testing.T) {
	tests := []struct {
		name       string
		raw        map[string]any
		wantName   bool
		wantAmount bool
		wantFields []string
	}{
		{name: "name only", raw: map[string]any{"name": "Hay"}, wantName: true},
		{name: "amount only", raw: map[string]any{"amount": json.Number("12.5")}, wantAmount: true},
		{name: "both", raw: map[string]any{"name": "Hay", "amount": 3.0}, wantName: true, wantAmount: true},
		{name: "nulls count as absent", raw: map[string]any{"name": nil, "amount": nil}, wantFields: []string{FieldName}},
		{name: "empty", raw: map[string]any{}, wantFields: []string{FieldName}},
		{name: "wrong types", raw: map[string]any{"name": 5.0, "amount": "ten"}, wantFields: []string{FieldName, FieldAmount}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseExpensePatch(tt.raw)
			if len(tt.wantFields) > 0 {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				for _, f := range tt.wantFields {
					if !ve.Has(f) {
						t.Errorf("missing violation for %s: %+v", f, ve.Fields)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExpensePatch() error = %v", err)
			}
			if (p.Name != nil) != tt.wantName || (p.Amount != nil) != tt.wantAmount {
				t.Errorf("unexpected patch: %+v", p)
			}
		})
	}
}
