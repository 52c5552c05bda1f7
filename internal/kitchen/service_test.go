package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/comandaclub/comanda/pkg/enums/station"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/comandaclub/comanda/pkg/event"
	"github.com/google/uuid"
)

func newTestService(repo TicketRepository, publisher *MockPublisher) (*Service, *TicketStateCache) {
	cache := NewTicketStateCache(nil, repo, apt.NewNoopLogger())
	return NewService(repo, cache, publisher, apt.NewNoopLogger()), cache
}

func TestSubmitOrderCreatesTicketsPerStation(t *testing.T) {
	repo := NewMockTicketRepository()
	publisher := NewMockPublisher()
	service, cache := newTestService(repo, publisher)

	sub := testSubmission(
		OrderLine{MenuItemID: uuid.New(), Name: "Latte", Quantity: 1, Category: "Drink"},
		OrderLine{MenuItemID: uuid.New(), Name: "Pad Kra Pao", Quantity: 1, Category: "Main"},
		OrderLine{MenuItemID: uuid.New(), Name: "Mango Sticky Rice", Quantity: 1, Category: "Dessert"},
	)

	tickets, err := service.SubmitOrder(context.Background(), sub)
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}

	if len(tickets) != 3 {
		t.Fatalf("expected 3 tickets, got %d", len(tickets))
	}

	for _, ticket := range tickets {
		stored, err := repo.FindByID(context.Background(), ticket.ID)
		if err != nil {
			t.Errorf("ticket %s not persisted: %v", ticket.ID, err)
			continue
		}
		if stored.Status != ticketstatus.Statuses.Pending.Code() {
			t.Errorf("ticket %s persisted with status %s, want pending", ticket.ID, stored.Status)
		}
		if cache.Get(ticket.ID) == nil {
			t.Errorf("ticket %s missing from cache", ticket.ID)
		}
	}

	published := publisher.Events()
	if len(published) != 3 {
		t.Fatalf("expected 3 created events, got %d", len(published))
	}
	for _, pub := range published {
		if pub.Topic != event.KitchenTicketsTopic {
			t.Errorf("event published to %s, want %s", pub.Topic, event.KitchenTicketsTopic)
		}
		var evt event.TicketCreatedEvent
		if err := json.Unmarshal(pub.Data, &evt); err != nil {
			t.Fatalf("cannot unmarshal published event: %v", err)
		}
		if evt.EventType != event.EventKitchenTicketCreated {
			t.Errorf("event_type = %s, want %s", evt.EventType, event.EventKitchenTicketCreated)
		}
		if evt.OrderID != sub.OrderID.String() {
			t.Errorf("event order_id = %s, want %s", evt.OrderID, sub.OrderID)
		}
	}
}

func TestSubmitOrderIsIdempotentPerOrder(t *testing.T) {
	repo := NewMockTicketRepository()
	publisher := NewMockPublisher()
	service, _ := newTestService(repo, publisher)

	sub := testSubmission(
		OrderLine{MenuItemID: uuid.New(), Name: "Latte", Quantity: 1, Category: "Drink"},
		OrderLine{MenuItemID: uuid.New(), Name: "Pad Thai", Quantity: 1, Category: "Main"},
	)

	first, err := service.SubmitOrder(context.Background(), sub)
	if err != nil {
		t.Fatalf("first SubmitOrder returned error: %v", err)
	}

	second, err := service.SubmitOrder(context.Background(), sub)
	if err != nil {
		t.Fatalf("second SubmitOrder returned error: %v", err)
	}

	if len(second) != len(first) {
		t.Fatalf("duplicate submission cut %d tickets, want the original %d", len(second), len(first))
	}

	firstIDs := make(map[uuid.UUID]bool, len(first))
	for _, ticket := range first {
		firstIDs[ticket.ID] = true
	}
	for _, ticket := range second {
		if !firstIDs[ticket.ID] {
			t.Errorf("duplicate submission returned new ticket %s", ticket.ID)
		}
	}

	// No new created events for the replayed submission.
	if got := len(publisher.Events()); got != len(first) {
		t.Errorf("expected %d published events, got %d", len(first), got)
	}
}

func TestSubmitOrderRejectsInvalidOrder(t *testing.T) {
	repo := NewMockTicketRepository()
	service, _ := newTestService(repo, NewMockPublisher())

	_, err := service.SubmitOrder(context.Background(), testSubmission())
	if !IsInvalidOrder(err) {
		t.Fatalf("expected InvalidOrderError, got %v", err)
	}
}

func TestSubmitOrderPropagatesStoreFailure(t *testing.T) {
	repo := NewMockTicketRepository()
	repo.CreateFunc = func(ctx context.Context, ticket *Ticket) error {
		return &TransientStoreError{Op: "create", Err: errors.New("connection reset")}
	}
	service, _ := newTestService(repo, NewMockPublisher())

	sub := testSubmission(
		OrderLine{MenuItemID: uuid.New(), Name: "Latte", Quantity: 1, Category: "Drink"},
	)

	_, err := service.SubmitOrder(context.Background(), sub)
	if !IsTransient(err) {
		t.Fatalf("expected TransientStoreError, got %v", err)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	repo := NewMockTicketRepository()
	publisher := NewMockPublisher()
	service, _ := newTestService(repo, publisher)

	ticket := &Ticket{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		RestaurantID: uuid.New(),
		Station:      station.Stations.HotKitchen.Code(),
		Status:       ticketstatus.Statuses.Pending.Code(),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	repo.AddTicket(ticket)

	steps := []ticketstatus.Status{
		ticketstatus.Statuses.InProgress,
		ticketstatus.Statuses.Ready,
		ticketstatus.Statuses.Served,
	}

	for _, to := range steps {
		updated, err := service.Transition(context.Background(), ticket.ID, to)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", to.Code(), err)
		}
		if updated.Status != to.Code() {
			t.Fatalf("status = %s, want %s", updated.Status, to.Code())
		}
	}

	stored, err := repo.FindByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("cannot re-read ticket: %v", err)
	}
	if stored.StartedAt == nil || stored.ReadyAt == nil || stored.ServedAt == nil {
		t.Errorf("lifecycle timestamps not all set: started=%v ready=%v served=%v",
			stored.StartedAt, stored.ReadyAt, stored.ServedAt)
	}

	if got := len(publisher.Events()); got != len(steps) {
		t.Errorf("expected %d status change events, got %d", len(steps), got)
	}
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	tests := []struct {
		name string
		from ticketstatus.Status
		to   ticketstatus.Status
	}{
		{"pending cannot go straight to ready", ticketstatus.Statuses.Pending, ticketstatus.Statuses.Ready},
		{"pending cannot go straight to served", ticketstatus.Statuses.Pending, ticketstatus.Statuses.Served},
		{"ready cannot be cancelled", ticketstatus.Statuses.Ready, ticketstatus.Statuses.Cancelled},
		{"ready cannot go back to in-progress", ticketstatus.Statuses.Ready, ticketstatus.Statuses.InProgress},
		{"served is terminal", ticketstatus.Statuses.Served, ticketstatus.Statuses.Cancelled},
		{"cancelled is terminal", ticketstatus.Statuses.Cancelled, ticketstatus.Statuses.InProgress},
		{"no self transition", ticketstatus.Statuses.Pending, ticketstatus.Statuses.Pending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockTicketRepository()
			service, _ := newTestService(repo, NewMockPublisher())

			ticket := &Ticket{
				ID:           uuid.New(),
				OrderID:      uuid.New(),
				RestaurantID: uuid.New(),
				Station:      station.Stations.Bar.Code(),
				Status:       tt.from.Code(),
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}
			repo.AddTicket(ticket)

			_, err := service.Transition(context.Background(), ticket.ID, tt.to)
			if !IsInvalidTransition(err) {
				t.Fatalf("expected InvalidTransitionError, got %v", err)
			}

			stored, _ := repo.FindByID(context.Background(), ticket.ID)
			if stored.Status != tt.from.Code() {
				t.Errorf("rejected transition mutated status to %s", stored.Status)
			}
		})
	}
}

func TestTransitionUnknownTicket(t *testing.T) {
	repo := NewMockTicketRepository()
	service, _ := newTestService(repo, NewMockPublisher())

	_, err := service.Transition(context.Background(), uuid.New(), ticketstatus.Statuses.InProgress)
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestTransitionConcurrentOneWinner(t *testing.T) {
	repo := NewMockTicketRepository()
	service, _ := newTestService(repo, NewMockPublisher())

	ticket := &Ticket{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		RestaurantID: uuid.New(),
		Station:      station.Stations.HotKitchen.Code(),
		Status:       ticketstatus.Statuses.Pending.Code(),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	repo.AddTicket(ticket)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Transition(context.Background(), ticket.ID, ticketstatus.Statuses.InProgress)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case IsInvalidTransition(err):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
	if conflicts != racers-1 {
		t.Errorf("expected %d conflicts, got %d", racers-1, conflicts)
	}

	stored, _ := repo.FindByID(context.Background(), ticket.ID)
	if stored.Status != ticketstatus.Statuses.InProgress.Code() {
		t.Errorf("final status = %s, want in-progress", stored.Status)
	}
}

func TestTransitionConflictNamesWinnerStatus(t *testing.T) {
	repo := NewMockTicketRepository()
	calls := 0
	repo.FindByIDFunc = func(ctx context.Context, id TicketID) (*Ticket, error) {
		calls++
		status := ticketstatus.Statuses.Pending.Code()
		if calls > 1 {
			// The re-read after the lost race sees the winner's write.
			status = ticketstatus.Statuses.Cancelled.Code()
		}
		return &Ticket{ID: id, Status: status}, nil
	}
	repo.UpdateStatusFunc = func(ctx context.Context, id TicketID, from, to string, now time.Time) (*Ticket, error) {
		return nil, ErrStatusConflict
	}
	service, _ := newTestService(repo, NewMockPublisher())

	_, err := service.Transition(context.Background(), uuid.New(), ticketstatus.Statuses.InProgress)

	var transitionErr *InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if transitionErr.Current != ticketstatus.Statuses.Cancelled.Code() {
		t.Errorf("error reports current = %s, want the winner's cancelled", transitionErr.Current)
	}
}

func TestListActiveExcludesTerminalAndOrdersFIFO(t *testing.T) {
	repo := NewMockTicketRepository()
	service, _ := newTestService(repo, NewMockPublisher())
	restaurantID := uuid.New()

	base := time.Now().Add(-time.Hour)
	statuses := []string{
		ticketstatus.Statuses.Served.Code(),
		ticketstatus.Statuses.Ready.Code(),
		ticketstatus.Statuses.Cancelled.Code(),
		ticketstatus.Statuses.Pending.Code(),
		ticketstatus.Statuses.InProgress.Code(),
	}
	for i, status := range statuses {
		repo.AddTicket(&Ticket{
			ID:           uuid.New(),
			OrderID:      uuid.New(),
			RestaurantID: restaurantID,
			Station:      station.Stations.HotKitchen.Code(),
			Status:       status,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
	}

	active, err := service.ListActive(context.Background(), restaurantID)
	if err != nil {
		t.Fatalf("ListActive returned error: %v", err)
	}

	if len(active) != 3 {
		t.Fatalf("expected 3 active tickets, got %d", len(active))
	}
	for _, ticket := range active {
		if ticketstatus.IsTerminal(ticket.Status) {
			t.Errorf("terminal ticket %s in active list", ticket.ID)
		}
	}
	for i := 1; i < len(active); i++ {
		if active[i].CreatedAt.Before(active[i-1].CreatedAt) {
			t.Errorf("active list not in FIFO order at index %d", i)
		}
	}
}
