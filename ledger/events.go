package ledger

import (
	"context"
	"strconv"
	"time"
)

// =============================================================================
// STOCK MOVEMENT EVENTS
// =============================================================================

type EventType string

const (
	EventLotReceived           EventType = "lot.received"
	EventLotAmended            EventType = "lot.amended"
	EventLotDeleted            EventType = "lot.deleted"
	EventDistributionAllocated EventType = "distribution.allocated"
	EventDistributionDeleted   EventType = "distribution.deleted"
	EventDispensingCreated     EventType = "dispensing.created"
	EventDispensingEdited      EventType = "dispensing.edited"
	EventDispensingDeleted     EventType = "dispensing.deleted"
)

// Event describes one committed mutation. Stocks is the balance of the tier
// the event is about after the change (lot for lot.* events, entry for the
// rest).
type Event struct {
	Type         EventType    `json:"type"`
	LotID        LotID        `json:"lot_id,omitempty"`
	EntryID      EntryID      `json:"entry_id,omitempty"`
	RecipientID  RecipientID  `json:"recipient_id,omitempty"`
	DispensingID DispensingID `json:"dispensing_id,omitempty"`
	Quantity     int          `json:"quantity"`
	Stocks       int          `json:"stocks"`
	Actor        string       `json:"actor"`
	At           time.Time    `json:"at"`
}

// Key partitions events so that everything about one lot stays ordered.
func (e Event) Key() string {
	return "lot-" + strconv.FormatInt(int64(e.LotID), 10)
}

// Notifier receives events after the transaction that produced them has
// committed. A failing Notifier never undoes the mutation.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// MultiNotifier fans an event out to several notifiers and returns the first
// error after trying all of them.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, e Event) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
