package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/comandaclub/comanda/pkg/event"
)

// Service owns ticket creation and the status lifecycle. It is the single
// writer of ticket status; boards only observe the change feed it emits.
type Service struct {
	repo      TicketRepository
	cache     *TicketStateCache
	publisher events.Publisher
	logger    apt.Logger
}

func NewService(repo TicketRepository, cache *TicketStateCache, publisher events.Publisher, logger apt.Logger) *Service {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// SubmitOrder routes a submission into station tickets and persists them.
// The order id is the idempotency key: a duplicate submission returns the
// tickets already cut for that order instead of cutting new ones.
func (s *Service) SubmitOrder(ctx context.Context, sub Submission) ([]*Ticket, error) {
	existing, err := s.repo.List(ctx, TicketFilter{OrderID: &sub.OrderID})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		s.logger.Info("order already routed, returning existing tickets", "order_id", sub.OrderID.String())
		result := make([]*Ticket, len(existing))
		for i := range existing {
			result[i] = &existing[i]
		}
		return result, nil
	}

	tickets, err := Route(sub, time.Now())
	if err != nil {
		return nil, err
	}

	for _, ticket := range tickets {
		if err := s.repo.Create(ctx, ticket); err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(ticket)
		}
		s.publishCreated(ctx, ticket)
	}

	s.logger.Info("order routed", "order_id", sub.OrderID.String(), "tickets", len(tickets))
	return tickets, nil
}

// Transition moves a ticket to the requested status. The lifecycle check and
// the write are a single conditional update against the persisted status, so
// concurrent calls on the same ticket resolve to one winner and one
// InvalidTransitionError.
func (s *Service) Transition(ctx context.Context, id TicketID, to ticketstatus.Status) (*Ticket, error) {
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !ticket.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{
			TicketID:  id,
			Current:   ticket.Status,
			Requested: to.Code(),
		}
	}

	previous := ticket.Status
	updated, err := s.repo.UpdateStatus(ctx, id, previous, to.Code(), time.Now())
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			// Lost the race. Re-read so the rejection names the status the
			// winner left behind.
			current := previous
			if fresh, findErr := s.repo.FindByID(ctx, id); findErr == nil {
				current = fresh.Status
			}
			return nil, &InvalidTransitionError{
				TicketID:  id,
				Current:   current,
				Requested: to.Code(),
			}
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(updated)
	}
	s.publishStatusChange(ctx, updated, previous)

	return updated, nil
}

// ListActive returns every non-terminal ticket for a restaurant, oldest
// order first, matching kitchen FIFO expectations.
func (s *Service) ListActive(ctx context.Context, restaurantID RestaurantID) ([]Ticket, error) {
	return s.repo.List(ctx, TicketFilter{
		RestaurantID: &restaurantID,
		ActiveOnly:   true,
	})
}

func (s *Service) publishCreated(ctx context.Context, ticket *Ticket) {
	if s.publisher == nil {
		return
	}

	items := make([]event.OrderLineItem, len(ticket.Items))
	for i, item := range ticket.Items {
		items[i] = event.OrderLineItem{
			MenuItemID: item.MenuItemID.String(),
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Notes:      item.Notes,
			Category:   item.Category,
		}
	}

	payload := event.TicketCreatedEvent{
		TicketEventMetadata: event.TicketEventMetadata{
			EventType:    event.EventKitchenTicketCreated,
			OccurredAt:   ticket.CreatedAt,
			TicketID:     ticket.ID.String(),
			OrderID:      ticket.OrderID.String(),
			RestaurantID: ticket.RestaurantID.String(),
			Station:      ticket.Station,
			TableNumber:  ticket.TableNumber,
		},
		Status: ticket.Status,
		Items:  items,
	}

	data, _ := json.Marshal(payload)
	if err := s.publisher.Publish(ctx, event.KitchenTicketsTopic, data); err != nil {
		s.logger.Errorf("Failed to publish ticket.created event: %v", err)
	}
}

func (s *Service) publishStatusChange(ctx context.Context, ticket *Ticket, previous string) {
	if s.publisher == nil {
		return
	}

	payload := event.TicketStatusChangedEvent{
		TicketEventMetadata: event.TicketEventMetadata{
			EventType:    event.EventKitchenTicketStatusChange,
			OccurredAt:   ticket.UpdatedAt,
			TicketID:     ticket.ID.String(),
			OrderID:      ticket.OrderID.String(),
			RestaurantID: ticket.RestaurantID.String(),
			Station:      ticket.Station,
			TableNumber:  ticket.TableNumber,
		},
		NewStatus:      ticket.Status,
		PreviousStatus: previous,
		UpdatedAt:      ticket.UpdatedAt,
		StartedAt:      ticket.StartedAt,
		ReadyAt:        ticket.ReadyAt,
		ServedAt:       ticket.ServedAt,
	}

	data, _ := json.Marshal(payload)
	if err := s.publisher.Publish(ctx, event.KitchenTicketsTopic, data); err != nil {
		s.logger.Errorf("Failed to publish ticket.status_changed event: %v", err)
	}
}
