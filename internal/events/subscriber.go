package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/comandaclub/comanda/internal/kitchen"
	"github.com/comandaclub/comanda/pkg/event"
	"github.com/google/uuid"
)

// OrderSubscriber consumes orders.submitted events and feeds them through
// the router into the ticket store. Submission is idempotent per order id and
// malformed events are dropped. Transient failures are returned to the
// transport: a durable consumer (JetStream) naks and redelivers them, while
// core NATS is fire-and-forget and loses the event.
type OrderSubscriber struct {
	subscriber events.Subscriber
	service    *kitchen.Service
	logger     apt.Logger
}

func NewOrderSubscriber(subscriber events.Subscriber, service *kitchen.Service, logger apt.Logger) *OrderSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &OrderSubscriber{
		subscriber: subscriber,
		service:    service,
		logger:     logger,
	}
}

func (s *OrderSubscriber) Start(ctx context.Context) error {
	if s.subscriber == nil {
		s.logger.Info("event subscriber not configured, skipping order subscription")
		return nil
	}

	s.logger.Info("subscribing to topic", "topic", event.OrdersTopic)
	if err := s.subscriber.Subscribe(ctx, event.OrdersTopic, s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event.OrdersTopic, err)
	}

	return nil
}

func (s *OrderSubscriber) Stop(ctx context.Context) error {
	return nil
}

func (s *OrderSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.OrderSubmittedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("Failed to unmarshal order event: %v", err)
		return nil
	}

	if evt.EventType != event.EventOrderSubmitted {
		s.logger.Debug("ignoring unknown event type", "event_type", evt.EventType)
		return nil
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		s.logger.Errorf("Invalid order_id: %v", err)
		return nil
	}

	restaurantID, err := uuid.Parse(evt.RestaurantID)
	if err != nil {
		s.logger.Errorf("Invalid restaurant_id: %v", err)
		return nil
	}

	sub := kitchen.Submission{
		OrderID:      orderID,
		RestaurantID: restaurantID,
		TableNumber:  evt.TableNumber,
	}

	if evt.TableID != "" {
		if tableID, err := uuid.Parse(evt.TableID); err == nil {
			sub.TableID = tableID
		}
	}

	for _, item := range evt.Items {
		menuItemID, _ := uuid.Parse(item.MenuItemID)
		sub.Items = append(sub.Items, kitchen.OrderLine{
			MenuItemID: menuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Notes:      item.Notes,
			Category:   item.Category,
			Tags:       item.Tags,
		})
	}

	tickets, err := s.service.SubmitOrder(ctx, sub)
	if err != nil {
		if kitchen.IsInvalidOrder(err) {
			// Permanent rejection; redelivery would fail the same way.
			s.logger.Errorf("Dropping invalid order %s: %v", evt.OrderID, err)
			return nil
		}
		s.logger.Errorf("Failed to route order %s: %v", evt.OrderID, err)
		return err
	}

	s.logger.Infof("Routed order %s into %d tickets", evt.OrderID, len(tickets))
	return nil
}
