// Package events carries record change notifications between the services and
// whoever renders records (UI caches, remote listeners).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
)

// ChangeType is the storage operation behind a change.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

func (t ChangeType) Valid() bool {
	switch t {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// RecordChange describes one insert, update or delete of a record. Record is
// nil for deletes.
type RecordChange struct {
	ID         uuid.UUID    `json:"id"`
	Type       ChangeType   `json:"type"`
	RecordID   int64        `json:"recordId"`
	Record     *core.Record `json:"record,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// NewRecordChange stamps a change with a fresh id and the current time.
func NewRecordChange(t ChangeType, rec core.Record) RecordChange {
	c := RecordChange{
		ID:         uuid.New(),
		Type:       t,
		RecordID:   rec.ID,
		OccurredAt: time.Now().UTC(),
	}
	if t != ChangeDelete {
		r := rec.Clone()
		c.Record = &r
	}
	return c
}

// NewRecordDeleted is the change emitted after a record and its expenses are gone.
func NewRecordDeleted(id int64) RecordChange {
	return NewRecordChange(ChangeDelete, core.Record{ID: id})
}

// ToJSON encodes the change for the wire.
func (c RecordChange) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// RecordChangeFromJSON decodes and sanity-checks a wire message.
func RecordChangeFromJSON(data []byte) (RecordChange, error) {
	var c RecordChange
	if err := json.Unmarshal(data, &c); err != nil {
		return RecordChange{}, err
	}
	if !c.Type.Valid() {
		return RecordChange{}, fmt.Errorf("unknown change type %q", c.Type)
	}
	if c.RecordID <= 0 {
		return RecordChange{}, fmt.Errorf("invalid record id %d", c.RecordID)
	}
	if c.Type != ChangeDelete && c.Record == nil {
		return RecordChange{}, fmt.Errorf("%s change without record", c.Type)
	}
	return c, nil
}

// Publisher delivers changes to listeners. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, change RecordChange) error
}
