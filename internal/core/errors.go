package core

import (
	"errors"
	"fmt"
	"strings"
)

// EntityKind names the entity an error refers to.
type EntityKind string

const (
	KindRecord  EntityKind = "record"
	KindExpense EntityKind = "expense"
)

func (k EntityKind) title() string {
	switch k {
	case KindRecord:
		return "Record"
	case KindExpense:
		return "Expense"
	default:
		return string(k)
	}
}

// FieldError is a single violated rule on an input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Messages returns the messages reported for field, in order.
func (e *ValidationError) Messages(field string) []string {
	var out []string
	for _, f := range e.Fields {
		if f.Field == field {
			out = append(out, f.Message)
		}
	}
	return out
}

// Has reports whether field has at least one violation.
func (e *ValidationError) Has(field string) bool {
	return len(e.Messages(field)) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NotFoundError means the targeted id does not exist in storage.
type NotFoundError struct {
	Kind EntityKind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found.", e.Kind.title(), e.ID)
}

// ReferentialError means an Expense points at a Record that does not exist.
type ReferentialError struct {
	RecordID int64
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("Record with ID %d does not exist.", e.RecordID)
}

// StorageError wraps a failed backend call.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsReferential reports whether err is or wraps a *ReferentialError.
func IsReferential(err error) bool {
	var re *ReferentialError
	return errors.As(err, &re)
}

// IsStorage reports whether err is or wraps a *StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
