package event

import "time"

const (
	OrdersTopic         = "orders.submitted"
	EventOrderSubmitted = "order.submitted"
)

// OrderLineItem is the wire form of a single line of a submitted order.
// Category and tags drive station routing in the kitchen service.
type OrderLineItem struct {
	MenuItemID string   `json:"menu_item_id"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	UnitPrice  float64  `json:"price"`
	Notes      string   `json:"notes,omitempty"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags,omitempty"`
}

// OrderSubmittedEvent is published when a guest-facing surface submits an
// order. The kitchen service consumes it to cut tickets per station.
type OrderSubmittedEvent struct {
	EventType    string          `json:"event_type"`
	OccurredAt   time.Time       `json:"occurred_at"`
	OrderID      string          `json:"order_id"`
	RestaurantID string          `json:"restaurant_id"`
	TableID      string          `json:"table_id,omitempty"`
	Items        []OrderLineItem `json:"items"`

	// Denormalized data for board display
	TableNumber string `json:"table_number,omitempty"`
}
