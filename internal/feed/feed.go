// Package feed delivers per-table change notifications. Repositories do
// not know about it; services publish an event after every successful
// mutation, and interested components subscribe per table, optionally
// scoped to one row key (a shift id or ticket id). Delivery is
// at-least-once and unordered across tables.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Table names carried on events.
const (
	TableTickets      = "tickets"
	TableShiftTickets = "shift_tickets"
	TableComments     = "ticket_comments"
)

// EventType distinguishes mutation kinds.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one table mutation. New is present for inserts and updates,
// Old for updates and deletes.
type Event struct {
	ID    string          `json:"id"`
	Table string          `json:"table"`
	Type  EventType       `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
	At    time.Time       `json:"at"`
}

// NewEvent builds an event, marshaling the before/after rows. A nil row
// is omitted.
func NewEvent(table string, typ EventType, newRow, oldRow any) (Event, error) {
	ev := Event{
		ID:    uuid.NewString(),
		Table: table,
		Type:  typ,
		At:    time.Now().UTC(),
	}
	if newRow != nil {
		raw, err := json.Marshal(newRow)
		if err != nil {
			return Event{}, err
		}
		ev.New = raw
	}
	if oldRow != nil {
		raw, err := json.Marshal(oldRow)
		if err != nil {
			return Event{}, err
		}
		ev.Old = raw
	}
	return ev, nil
}

// DecodeNew unmarshals the after-image into v.
func (e Event) DecodeNew(v any) error {
	return json.Unmarshal(e.New, v)
}

// DecodeOld unmarshals the before-image into v.
func (e Event) DecodeOld(v any) error {
	return json.Unmarshal(e.Old, v)
}

// Handler consumes one event.
type Handler func(Event)

// Feed publishes and subscribes to table change events. An empty scope
// subscribes to every row of the table; a non-empty scope restricts
// delivery to events published under the same key. The returned stop
// function must be called to tear the subscription down.
type Feed interface {
	Publish(ctx context.Context, ev Event, scope string) error
	Subscribe(ctx context.Context, table, scope string, fn Handler) (func(), error)
}

func channelName(table, scope string) string {
	if scope == "" {
		return "feed:" + table
	}
	return "feed:" + table + ":" + scope
}
