package kitchen

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt/events"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/google/uuid"
)

// MockTicketRepository is a test double for TicketRepository. Its
// UpdateStatus honors the same compare-and-swap contract as the Mongo
// implementation so races can be exercised in-memory.
type MockTicketRepository struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]*Ticket

	CreateFunc       func(ctx context.Context, t *Ticket) error
	FindByIDFunc     func(ctx context.Context, id TicketID) (*Ticket, error)
	ListFunc         func(ctx context.Context, filter TicketFilter) ([]Ticket, error)
	UpdateStatusFunc func(ctx context.Context, id TicketID, from, to string, now time.Time) (*Ticket, error)
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{
		tickets: make(map[uuid.UUID]*Ticket),
	}
}

func (m *MockTicketRepository) Create(ctx context.Context, t *Ticket) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.BeforeCreate()
	copied := *t
	m.tickets[t.ID] = &copied
	return nil
}

func (m *MockTicketRepository) FindByID(ctx context.Context, id TicketID) (*Ticket, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, exists := m.tickets[id]
	if !exists {
		return nil, ErrTicketNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *MockTicketRepository) List(ctx context.Context, filter TicketFilter) ([]Ticket, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		if filter.RestaurantID != nil && t.RestaurantID != *filter.RestaurantID {
			continue
		}
		if filter.Station != nil && t.Station != *filter.Station {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.OrderID != nil && t.OrderID != *filter.OrderID {
			continue
		}
		if filter.ActiveOnly && filter.Status == nil && ticketstatus.IsTerminal(t.Status) {
			continue
		}
		result = append(result, *t)
	}
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].CreatedAt.Before(result[i].CreatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (m *MockTicketRepository) UpdateStatus(ctx context.Context, id TicketID, from, to string, now time.Time) (*Ticket, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, from, to, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, exists := m.tickets[id]
	if !exists {
		return nil, ErrTicketNotFound
	}
	if t.Status != from {
		return nil, ErrStatusConflict
	}
	t.Status = to
	t.UpdatedAt = now
	switch to {
	case ticketstatus.Statuses.InProgress.Code():
		t.StartedAt = &now
	case ticketstatus.Statuses.Ready.Code():
		t.ReadyAt = &now
	case ticketstatus.Statuses.Served.Code():
		t.ServedAt = &now
	}
	copied := *t
	return &copied, nil
}

// AddTicket seeds the mock repository.
func (m *MockTicketRepository) AddTicket(t *Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t
}

// MockPublisher is a test double for events.Publisher.
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
	PublishFunc     func(ctx context.Context, topic string, data []byte) error
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		PublishedEvents: make([]PublishedEvent, 0),
	}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	return nil
}

func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.PublishedEvents...)
}

// MockStreamConsumer is a test double for events.StreamConsumer.
type MockStreamConsumer struct {
	messages  []events.StreamMessage
	FetchFunc func(ctx context.Context, maxMessages int) ([]events.StreamMessage, error)
}

func NewMockStreamConsumer() *MockStreamConsumer {
	return &MockStreamConsumer{
		messages: make([]events.StreamMessage, 0),
	}
}

func (m *MockStreamConsumer) Fetch(ctx context.Context, maxMessages int) ([]events.StreamMessage, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, maxMessages)
	}
	return m.messages, nil
}

func (m *MockStreamConsumer) SubscribeStream(ctx context.Context, handler events.HandlerFunc) error {
	return nil
}

func (m *MockStreamConsumer) AddMessage(data []byte) {
	m.messages = append(m.messages, events.StreamMessage{Data: data})
}
