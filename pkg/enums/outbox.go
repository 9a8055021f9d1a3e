package enums

import "fmt"

// OutboxAggregateType is the kind of row an outbox event is about.
type OutboxAggregateType string

// AggregateItem is the only aggregate. Movement events are keyed by their item
// so one item's events share an ordering key.
const AggregateItem OutboxAggregateType = "item"

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateItem
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the event carried by an outbox row. It is also the
// event_type attribute on published messages.
type OutboxEventType string

const (
	EventStockMovementRecorded OutboxEventType = "stock_movement_recorded"
	EventItemCreated           OutboxEventType = "item_created"
	EventItemDeleted           OutboxEventType = "item_deleted"
	EventLedgerDriftDetected   OutboxEventType = "ledger_drift_detected"
)

// eventAggregates fixes which aggregate each event type belongs to.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventStockMovementRecorded: AggregateItem,
	EventItemCreated:           AggregateItem,
	EventItemDeleted:           AggregateItem,
	EventLedgerDriftDetected:   AggregateItem,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type rows of this event must carry, or "" when unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
