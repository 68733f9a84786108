package payment

import (
	"encoding/json"
	"fmt"
)

// EventKind enumerates the five processor notifications the reconciler
// understands. Anything else parses into an event with an unknown kind and
// is dropped after logging.
type EventKind string

const (
	CheckoutCreated EventKind = "checkout.created"
	CheckoutUpdated EventKind = "checkout.updated"
	OrderCreated    EventKind = "order.created"
	OrderPaid       EventKind = "order.paid"
	OrderRefunded   EventKind = "order.refunded"
)

func (k EventKind) Known() bool {
	switch k {
	case CheckoutCreated, CheckoutUpdated, OrderCreated, OrderPaid, OrderRefunded:
		return true
	}
	return false
}

// Event is the single tagged-union shape all processor callbacks are
// normalized into before they reach the state machine. EntityID is the id
// of whatever the event is about: the checkout session for checkout.*
// events, the processor-side order for order.* events.
type Event struct {
	Kind       EventKind
	EntityID   string
	CheckoutID string
	CustomerID string
	Amount     int64
	Currency   string
	Metadata   map[string]string
}

// OrderRef returns the internal order id carried in the metadata bag.
// Only the first event of a checkout (checkout.created) carries it.
func (e Event) OrderRef() string {
	return e.Metadata["order_id"]
}

// wirePayload mirrors the processor's webhook JSON: a type tag and a data
// object whose fields depend on the entity.
type wirePayload struct {
	Type EventKind `json:"type"`
	Data struct {
		ID         string            `json:"id"`
		CheckoutID string            `json:"checkout_id"`
		CustomerID string            `json:"customer_id"`
		Amount     int64             `json:"amount"`
		Currency   string            `json:"currency"`
		Metadata   map[string]string `json:"metadata"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body into an Event.
func ParseEvent(body []byte) (Event, error) {
	var p wirePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("parse payment event: %w", err)
	}
	ev := Event{
		Kind:       p.Type,
		EntityID:   p.Data.ID,
		CheckoutID: p.Data.CheckoutID,
		CustomerID: p.Data.CustomerID,
		Amount:     p.Data.Amount,
		Currency:   p.Data.Currency,
		Metadata:   p.Data.Metadata,
	}
	// checkout.* events are about the checkout session itself.
	if ev.CheckoutID == "" && (ev.Kind == CheckoutCreated || ev.Kind == CheckoutUpdated) {
		ev.CheckoutID = ev.EntityID
	}
	return ev, nil
}
