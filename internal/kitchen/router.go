package kitchen

import (
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/google/uuid"
)

// OrderLine is a validated line item of a submitted order.
type OrderLine struct {
	MenuItemID uuid.UUID
	Name       string
	Quantity   int
	UnitPrice  float64
	Notes      string
	Category   string
	Tags       []string
}

// Submission is a submitted order ready for routing.
type Submission struct {
	OrderID      OrderID
	RestaurantID RestaurantID
	TableID      uuid.UUID
	TableNumber  string
	Items        []OrderLine
}

// Route partitions a submission's items across stations and cuts one pending
// ticket per distinct station. The partition is stable: items keep their
// submission order within each ticket, and tickets appear in first-seen
// station order. Routing happens once, at submission; tickets are never
// re-routed afterwards.
func Route(sub Submission, now time.Time) ([]*Ticket, error) {
	if len(sub.Items) == 0 {
		return nil, &InvalidOrderError{Reason: "order has no items"}
	}

	byStation := make(map[string][]TicketItem)
	var stationOrder []string

	for i, line := range sub.Items {
		if line.Quantity < 1 {
			return nil, &InvalidOrderError{
				Reason: fmt.Sprintf("item %d (%s) has non-positive quantity %d", i, line.Name, line.Quantity),
			}
		}

		st := Classify(MenuItemRef{
			ID:       line.MenuItemID,
			Category: line.Category,
			Tags:     line.Tags,
		})

		code := st.Code()
		if _, seen := byStation[code]; !seen {
			stationOrder = append(stationOrder, code)
		}
		byStation[code] = append(byStation[code], TicketItem{
			MenuItemID: line.MenuItemID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			Notes:      line.Notes,
			Category:   line.Category,
		})
	}

	tickets := make([]*Ticket, 0, len(stationOrder))
	for _, code := range stationOrder {
		tickets = append(tickets, &Ticket{
			ID:           apt.GenerateNewID(),
			OrderID:      sub.OrderID,
			RestaurantID: sub.RestaurantID,
			TableID:      sub.TableID,
			Station:      code,
			Items:        byStation[code],
			Status:       ticketstatus.Statuses.Pending.Code(),
			TableNumber:  sub.TableNumber,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	return tickets, nil
}
