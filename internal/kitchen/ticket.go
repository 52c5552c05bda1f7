package kitchen

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/google/uuid"
)

type TicketID = uuid.UUID
type OrderID = uuid.UUID
type RestaurantID = uuid.UUID

// TicketItem is one line of work on a station ticket. Items are immutable
// once the ticket is persisted; only the ticket status moves afterwards.
type TicketItem struct {
	MenuItemID uuid.UUID `bson:"menu_item_id" json:"menu_item_id"`
	Name       string    `bson:"name" json:"name"`
	Quantity   int       `bson:"quantity" json:"quantity"`
	UnitPrice  float64   `bson:"unit_price" json:"unit_price"`
	Notes      string    `bson:"notes,omitempty" json:"notes,omitempty"`
	Category   string    `bson:"category" json:"category"`
}

// Ticket is the unit of work sent to one station for one order. An order
// produces exactly one ticket per distinct station touched by its items.
type Ticket struct {
	ID           TicketID     `bson:"_id" json:"id"`
	OrderID      OrderID      `bson:"order_id" json:"order_id"`
	RestaurantID RestaurantID `bson:"restaurant_id" json:"restaurant_id"`
	TableID      uuid.UUID    `bson:"table_id,omitempty" json:"table_id,omitempty"`
	Station      string       `bson:"station" json:"station"`
	Items        []TicketItem `bson:"items" json:"items"`
	Status       string       `bson:"status" json:"status"`

	// Denormalized data for board display
	TableNumber string `bson:"table_number,omitempty" json:"table_number,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	StartedAt *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	ReadyAt   *time.Time `bson:"ready_at,omitempty" json:"ready_at,omitempty"`
	ServedAt  *time.Time `bson:"served_at,omitempty" json:"served_at,omitempty"`

	ModelVersion int `bson:"model_version" json:"model_version"`
}

func (t *Ticket) GetID() uuid.UUID {
	return t.ID
}

func (t *Ticket) SetID(id uuid.UUID) {
	t.ID = id
}

func (t *Ticket) ResourceType() string {
	return "ticket"
}

func (t *Ticket) EnsureID() {
	if t.ID == uuid.Nil {
		t.ID = apt.GenerateNewID()
	}
}

func (t *Ticket) BeforeCreate() {
	t.EnsureID()
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	t.ModelVersion = 1
}

// IsActive reports whether the ticket still needs kitchen work.
func (t *Ticket) IsActive() bool {
	return ticketstatus.IsActive(t.Status)
}

// CanTransitionTo reports whether the lifecycle permits moving this ticket
// to the given status from its current one.
func (t *Ticket) CanTransitionTo(to ticketstatus.Status) bool {
	return ticketstatus.CanTransition(t.Status, to.Code())
}
