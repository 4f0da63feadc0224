package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amounts are JSON numbers on the wire, the same shape the validators accept.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	MinNameLength = 2
	MaxNameLength = 50
	MinImages     = 1
	MaxImages     = 10
)

type (
	// Record is one tracked animal or asset.
	Record struct {
		ID          int64     `json:"id"`
		Name        string    `json:"name"`
		Images      []string  `json:"images"`
		BoughtPrice int64     `json:"boughtPrice"`
		SoldPrice   *int64    `json:"soldPrice"` // nil until sold
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// Expense is one cost item attributed to a Record.
	Expense struct {
		ID        int64           `json:"id"`
		Name      string          `json:"name"`
		Amount    decimal.Decimal `json:"amount"`
		RecordID  int64           `json:"recordId"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	// RecordInput is the validated payload for creating or fully replacing a Record.
	RecordInput struct {
		Name        string
		Images      []string
		BoughtPrice int64
		SoldPrice   *int64
	}

	// ExpenseInput is the validated payload for creating an Expense.
	ExpenseInput struct {
		Name     string
		Amount   decimal.Decimal
		RecordID int64
	}
)

// IsSold reports whether a sold price has been recorded.
func (r Record) IsSold() bool {
	return r.SoldPrice != nil
}

// Input returns the mutable fields of r as a RecordInput.
func (r Record) Input() RecordInput {
	return RecordInput{
		Name:        r.Name,
		Images:      append([]string(nil), r.Images...),
		BoughtPrice: r.BoughtPrice,
		SoldPrice:   cloneInt64(r.SoldPrice),
	}
}

// Clone returns a deep copy so callers can hand records out of shared state.
func (r Record) Clone() Record {
	out := r
	out.Images = append([]string(nil), r.Images...)
	out.SoldPrice = cloneInt64(r.SoldPrice)
	return out
}

// Clone returns a deep copy of in.
func (in RecordInput) Clone() RecordInput {
	out := in
	out.Images = append([]string(nil), in.Images...)
	out.SoldPrice = cloneInt64(in.SoldPrice)
	return out
}

// Int64 returns a pointer to v. Handy for optional prices.
func Int64(v int64) *int64 {
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
