package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Input field paths.
const (
	FieldName        = "name"
	FieldImages      = "images"
	FieldBoughtPrice = "boughtPrice"
	FieldSoldPrice   = "soldPrice"
	FieldAmount      = "amount"
	FieldRecordID    = "recordId"
)

// ParseRecordInput turns a loosely typed payload (typically JSON decoded with
// UseNumber) into a RecordInput. Every violation is reported.
func ParseRecordInput(raw map[string]any) (RecordInput, error) {
	errs := &ValidationError{}
	skip := map[string]bool{}
	var in RecordInput

	if name, ok := stringField(raw, FieldName, "Animal name is required.", "Name must be a string.", errs); ok {
		in.Name = name
	} else {
		skip[FieldName] = true
	}

	switch v := raw[FieldImages].(type) {
	case nil:
		errs.add(FieldImages, "At least 1 image is required")
		skip[FieldImages] = true
	case []string:
		in.Images = append([]string(nil), v...)
	case []any:
		in.Images = make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				errs.add(imagePath(i), "Image must be a string")
				skip[FieldImages] = true
				continue
			}
			in.Images = append(in.Images, s)
		}
		if skip[FieldImages] {
			appendImageCountErrors(len(v), errs)
		}
	default:
		errs.add(FieldImages, "Images must be a list of image URLs.")
		skip[FieldImages] = true
	}

	if n, ok := intField(raw, FieldBoughtPrice, "Bought price", true, errs); ok {
		in.BoughtPrice = *n
	} else {
		skip[FieldBoughtPrice] = true
	}

	if n, ok := intField(raw, FieldSoldPrice, "Sold price", false, errs); ok {
		in.SoldPrice = n
	} else {
		skip[FieldSoldPrice] = true
	}

	in.collect(errs, skip)
	if err := errs.errOrNil(); err != nil {
		return RecordInput{}, err
	}
	return in, nil
}

// Validate checks the record rules. Values are checked as given, surrounding
// whitespace included.
func (in RecordInput) Validate() error {
	errs := &ValidationError{}
	in.collect(errs, nil)
	return errs.errOrNil()
}

func (in RecordInput) collect(errs *ValidationError, skip map[string]bool) {
	if !skip[FieldName] {
		n := utf8.RuneCountInString(in.Name)
		switch {
		case n < MinNameLength:
			errs.add(FieldName, "Name should be at least 2 characters long.")
		case n > MaxNameLength:
			errs.add(FieldName, "Name should not exceed 50 characters.")
		}
	}
	if !skip[FieldImages] {
		appendImageCountErrors(len(in.Images), errs)
		for i, img := range in.Images {
			if img == "" {
				errs.add(imagePath(i), "Image URL is required")
			}
		}
	}
	if !skip[FieldBoughtPrice] && in.BoughtPrice < 0 {
		errs.add(FieldBoughtPrice, "Bought price must be zero or greater.")
	}
	if !skip[FieldSoldPrice] && in.SoldPrice != nil && *in.SoldPrice < 0 {
		errs.add(FieldSoldPrice, "Sold price must be zero or greater.")
	}
}

// ValidateImageCount checks how many images a record may reference.
func ValidateImageCount(n int) error {
	errs := &ValidationError{}
	appendImageCountErrors(n, errs)
	return errs.errOrNil()
}

func appendImageCountErrors(n int, errs *ValidationError) {
	switch {
	case n < MinImages:
		errs.add(FieldImages, "At least 1 image is required")
	case n > MaxImages:
		errs.add(FieldImages, "Maximum of 10 images allowed")
	}
}

func imagePath(i int) string {
	return fmt.Sprintf("%s[%d]", FieldImages, i)
}

// ParseExpenseInput turns a loosely typed payload into an ExpenseInput.
func ParseExpenseInput(raw map[string]any) (ExpenseInput, error) {
	errs := &ValidationError{}
	skip := map[string]bool{}
	var in ExpenseInput

	if name, ok := stringField(raw, FieldName, "Expense name is required.", "Expense name must be a string.", errs); ok {
		in.Name = name
	} else {
		skip[FieldName] = true
	}

	if v, present := raw[FieldAmount]; !present || v == nil {
		errs.add(FieldAmount, "Expense amount is required.")
		skip[FieldAmount] = true
	} else if d, ok := toDecimal(v); !ok {
		errs.add(FieldAmount, "Expense amount must be a number.")
		skip[FieldAmount] = true
	} else {
		in.Amount = d
	}

	if n, ok := intFieldLabeled(raw, FieldRecordID, "Record ID is required.", "Record ID must be a number.", "Record ID must be an integer.", true, errs); ok {
		in.RecordID = *n
	} else {
		skip[FieldRecordID] = true
	}

	in.collect(errs, skip)
	if err := errs.errOrNil(); err != nil {
		return ExpenseInput{}, err
	}
	return in, nil
}

// Validate checks the expense rules.
func (in ExpenseInput) Validate() error {
	errs := &ValidationError{}
	in.collect(errs, nil)
	return errs.errOrNil()
}

func (in ExpenseInput) collect(errs *ValidationError, skip map[string]bool) {
	if !skip[FieldName] {
		checkExpenseName(in.Name, errs)
	}
	if !skip[FieldAmount] {
		checkExpenseAmount(in.Amount, errs)
	}
	if !skip[FieldRecordID] && in.RecordID <= 0 {
		errs.add(FieldRecordID, "Record ID must be greater than 0.")
	}
}

// ValidateExpenseName checks a replacement expense name.
func ValidateExpenseName(name string) error {
	errs := &ValidationError{}
	checkExpenseName(name, errs)
	return errs.errOrNil()
}

// ValidateExpenseAmount checks a replacement expense amount.
func ValidateExpenseAmount(amount decimal.Decimal) error {
	errs := &ValidationError{}
	checkExpenseAmount(amount, errs)
	return errs.errOrNil()
}

// Whitespace-only names are empty. Accepted names are stored as given.
func checkExpenseName(name string, errs *ValidationError) {
	if strings.TrimSpace(name) == "" {
		errs.add(FieldName, "Expense name cannot be empty.")
	}
}

func checkExpenseAmount(amount decimal.Decimal, errs *ValidationError) {
	if !amount.IsPositive() {
		errs.add(FieldAmount, "Expense amount must be greater than 0.")
	}
}

func stringField(raw map[string]any, key, requiredMsg, typeMsg string, errs *ValidationError) (string, bool) {
	v, present := raw[key]
	if !present || v == nil {
		errs.add(key, requiredMsg)
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		errs.add(key, typeMsg)
		return "", false
	}
	return s, true
}

// intField reads an integer-valued field. A missing or null optional field
// yields (nil, true).
func intField(raw map[string]any, key, label string, required bool, errs *ValidationError) (*int64, bool) {
	return intFieldLabeled(raw, key,
		label+" is required.",
		label+" must be a number.",
		label+" must be an integer.",
		required, errs)
}

func intFieldLabeled(raw map[string]any, key, requiredMsg, typeMsg, intMsg string, required bool, errs *ValidationError) (*int64, bool) {
	v, present := raw[key]
	if !present || v == nil {
		if required {
			errs.add(key, requiredMsg)
			return nil, false
		}
		return nil, true
	}
	d, ok := toDecimal(v)
	if !ok {
		errs.add(key, typeMsg)
		return nil, false
	}
	if !d.IsInteger() || !d.BigInt().IsInt64() {
		errs.add(key, intMsg)
		return nil, false
	}
	n := d.IntPart()
	return &n, true
}

// toDecimal accepts the numeric shapes produced by encoding/json and by Go callers.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case decimal.Decimal:
		return n, true
	default:
		return decimal.Decimal{}, false
	}
}

// ExpensePatch is a partial expense update. Nil fields stay unchanged.
type ExpensePatch struct {
	Name   *string
	Amount *decimal.Decimal
}

// ParseExpensePatch reads the optional name and amount of a partial update.
// Only shapes are checked here; value rules apply when the patch is used.
func ParseExpensePatch(raw map[string]any) (ExpensePatch, error) {
	errs := &ValidationError{}
	var p ExpensePatch

	if v, present := raw[FieldName]; present && v != nil {
		if s, ok := v.(string); ok {
			p.Name = &s
		} else {
			errs.add(FieldName, "Expense name must be a string.")
		}
	}
	if v, present := raw[FieldAmount]; present && v != nil {
		if d, ok := toDecimal(v); ok {
			p.Amount = &d
		} else {
			errs.add(FieldAmount, "Expense amount must be a number.")
		}
	}
	if len(errs.Fields) == 0 && p.Name == nil && p.Amount == nil {
		errs.add(FieldName, "Expense name or amount is required.")
	}

	if err := errs.errOrNil(); err != nil {
		return ExpensePatch{}, err
	}
	return p, nil
}
