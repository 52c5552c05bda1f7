package event

import "time"

const (
	KitchenTicketsTopic            = "kitchen.tickets"
	EventKitchenTicketCreated      = "kitchen.ticket.created"
	EventKitchenTicketStatusChange = "kitchen.ticket.status_changed"
)

type TicketEventMetadata struct {
	EventType    string    `json:"event_type"`
	OccurredAt   time.Time `json:"occurred_at"`
	TicketID     string    `json:"ticket_id"`
	OrderID      string    `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	Station      string    `json:"station"`

	// Denormalized data for board display
	TableNumber string `json:"table_number,omitempty"`
}

type TicketCreatedEvent struct {
	TicketEventMetadata
	Status string          `json:"status"`
	Items  []OrderLineItem `json:"items"`
}

type TicketStatusChangedEvent struct {
	TicketEventMetadata
	NewStatus      string     `json:"new_status"`
	PreviousStatus string     `json:"previous_status"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ReadyAt        *time.Time `json:"ready_at,omitempty"`
	ServedAt       *time.Time `json:"served_at,omitempty"`
}
