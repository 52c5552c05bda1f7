package kitchen

import (
	"context"
	"time"
)

type TicketFilter struct {
	RestaurantID *RestaurantID
	Station      *string
	Status       *string
	OrderID      *OrderID
	ActiveOnly   bool
	Limit        int
	Offset       int
}

// TicketRepository is the durable store boundary. UpdateStatus is a single
// conditional write: it applies the new status only while the persisted
// status still equals from, and returns ErrStatusConflict otherwise. That
// guard is what keeps two station terminals from racing each other.
type TicketRepository interface {
	Create(ctx context.Context, t *Ticket) error
	FindByID(ctx context.Context, id TicketID) (*Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]Ticket, error)
	UpdateStatus(ctx context.Context, id TicketID, from, to string, now time.Time) (*Ticket, error)
}
