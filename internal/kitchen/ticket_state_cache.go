package kitchen

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/comandaclub/comanda/pkg/event"
	"github.com/google/uuid"
)

// TicketStateCache is the board projection: an in-memory view of tickets
// indexed by station and status. It is rebuilt on startup by replaying the
// persistent event stream, falling back to the repository, and kept current
// by the change feed. The feed is at-least-once and may reorder, so every
// merge is idempotent keyed by ticket id + updated_at.
type TicketStateCache struct {
	mu        sync.RWMutex
	tickets   map[uuid.UUID]*Ticket
	byStation map[string][]uuid.UUID
	byStatus  map[string][]uuid.UUID

	stream events.StreamConsumer // event replay on startup
	repo   TicketRepository      // fallback when the stream is unavailable
	logger apt.Logger
}

func NewTicketStateCache(stream events.StreamConsumer, repo TicketRepository, logger apt.Logger) *TicketStateCache {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &TicketStateCache{
		tickets:   make(map[uuid.UUID]*Ticket),
		byStation: make(map[string][]uuid.UUID),
		byStatus:  make(map[string][]uuid.UUID),
		stream:    stream,
		repo:      repo,
		logger:    logger,
	}
}

// Warm loads tickets into the cache, preferring event replay from the stream
// and falling back to the repository.
func (c *TicketStateCache) Warm(ctx context.Context) error {
	if c.stream != nil {
		if err := c.warmFromStream(ctx); err != nil {
			c.logger.Info("stream replay failed, falling back to repository", "error", err)
		} else {
			c.dropTerminalTickets()
			return nil
		}
	}

	if c.repo == nil {
		c.logger.Info("neither stream nor repository configured, cache remains empty")
		return nil
	}

	return c.warmFromRepo(ctx)
}

func (c *TicketStateCache) warmFromStream(ctx context.Context) error {
	messages, err := c.stream.Fetch(ctx, 10000)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, msg := range messages {
		c.applyEventLocked(msg.Data)
	}

	c.logger.Info("cache warmed from stream", "events", len(messages), "tickets", len(c.tickets))
	return nil
}

func (c *TicketStateCache) warmFromRepo(ctx context.Context) error {
	tickets, err := c.repo.List(ctx, TicketFilter{ActiveOnly: true})
	if err != nil {
		c.logger.Info("failed to warm cache from repository, cache remains empty", "error", err)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range tickets {
		c.setLocked(&tickets[i])
	}

	c.logger.Info("cache warmed from repository", "count", len(tickets))
	return nil
}

// ApplyEvent merges a raw change-feed event into the projection.
func (c *TicketStateCache) ApplyEvent(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyEventLocked(data)
}

func (c *TicketStateCache) applyEventLocked(data []byte) {
	var baseEvent struct {
		EventType string `json:"event_type"`
	}

	if err := json.Unmarshal(data, &baseEvent); err != nil {
		c.logger.Error("failed to unmarshal event type", "error", err)
		return
	}

	switch baseEvent.EventType {
	case event.EventKitchenTicketCreated:
		c.handleTicketCreatedLocked(data)
	case event.EventKitchenTicketStatusChange:
		c.handleTicketStatusChangedLocked(data)
	default:
		// Unknown event types are ignored for forward compatibility.
	}
}

func (c *TicketStateCache) handleTicketCreatedLocked(data []byte) {
	var evt event.TicketCreatedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("failed to unmarshal ticket.created event", "error", err)
		return
	}

	ticketID, _ := uuid.Parse(evt.TicketID)
	if existing := c.tickets[ticketID]; existing != nil {
		// Redelivered creation event; the projection already knows more.
		return
	}

	orderID, _ := uuid.Parse(evt.OrderID)
	restaurantID, _ := uuid.Parse(evt.RestaurantID)

	items := make([]TicketItem, len(evt.Items))
	for i, item := range evt.Items {
		menuItemID, _ := uuid.Parse(item.MenuItemID)
		items[i] = TicketItem{
			MenuItemID: menuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Notes:      item.Notes,
			Category:   item.Category,
		}
	}

	c.setLocked(&Ticket{
		ID:           ticketID,
		OrderID:      orderID,
		RestaurantID: restaurantID,
		Station:      evt.Station,
		Items:        items,
		Status:       evt.Status,
		TableNumber:  evt.TableNumber,
		CreatedAt:    evt.OccurredAt,
		UpdatedAt:    evt.OccurredAt,
	})
}

func (c *TicketStateCache) handleTicketStatusChangedLocked(data []byte) {
	var evt event.TicketStatusChangedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("failed to unmarshal ticket.status_changed event", "error", err)
		return
	}

	ticketID, _ := uuid.Parse(evt.TicketID)
	ticket := c.tickets[ticketID]
	if ticket == nil {
		// Status change arrived before the creation event; keep a minimal
		// entry so the board shows something until the refetch fills it in.
		orderID, _ := uuid.Parse(evt.OrderID)
		restaurantID, _ := uuid.Parse(evt.RestaurantID)
		ticket = &Ticket{
			ID:           ticketID,
			OrderID:      orderID,
			RestaurantID: restaurantID,
			Station:      evt.Station,
			TableNumber:  evt.TableNumber,
			CreatedAt:    evt.OccurredAt,
		}
	} else if !evt.UpdatedAt.After(ticket.UpdatedAt) {
		// Duplicate or out-of-order delivery; the projection already reflects
		// a newer write.
		return
	} else {
		// Work on a copy; setLocked needs the stored entry untouched to
		// unindex the previous status.
		copied := *ticket
		ticket = &copied
	}

	ticket.Status = evt.NewStatus
	ticket.UpdatedAt = evt.UpdatedAt
	ticket.StartedAt = evt.StartedAt
	ticket.ReadyAt = evt.ReadyAt
	ticket.ServedAt = evt.ServedAt

	c.setLocked(ticket)
}

// dropTerminalTickets filters out served and cancelled tickets after a
// replay so boards only show work that is still open.
func (c *TicketStateCache) dropTerminalTickets() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for id, ticket := range c.tickets {
		if ticketstatus.IsTerminal(ticket.Status) {
			c.removeFromIndex(c.byStation, ticket.Station, id)
			c.removeFromIndex(c.byStatus, ticket.Status, id)
			delete(c.tickets, id)
			removed++
		}
	}

	c.logger.Info("removed terminal tickets from cache", "count", removed)
}

// Set updates or adds a ticket to the cache.
func (c *TicketStateCache) Set(ticket *Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(ticket)
}

func (c *TicketStateCache) setLocked(ticket *Ticket) {
	if ticket == nil {
		return
	}

	if old, exists := c.tickets[ticket.ID]; exists {
		c.removeFromIndex(c.byStation, old.Station, ticket.ID)
		c.removeFromIndex(c.byStatus, old.Status, ticket.ID)
	}

	c.tickets[ticket.ID] = ticket
	c.addToIndex(c.byStation, ticket.Station, ticket.ID)
	c.addToIndex(c.byStatus, ticket.Status, ticket.ID)
}

// Get retrieves a ticket by ID.
func (c *TicketStateCache) Get(ticketID uuid.UUID) *Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickets[ticketID]
}

// GetByStationCode returns all tickets for a given station code.
func (c *TicketStateCache) GetByStationCode(code string) []*Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collectLocked(c.byStation[code])
}

// GetByStatusCode returns all tickets for a given status code.
func (c *TicketStateCache) GetByStatusCode(code string) []*Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collectLocked(c.byStatus[code])
}

// ActiveFIFO returns the active tickets for a restaurant ordered by
// created_at ascending, the same order ListActive reads from the store.
func (c *TicketStateCache) ActiveFIFO(restaurantID RestaurantID) []*Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Ticket, 0, len(c.tickets))
	for _, ticket := range c.tickets {
		if ticket.RestaurantID != restaurantID {
			continue
		}
		if !ticket.IsActive() {
			continue
		}
		result = append(result, ticket)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// GetAll returns all cached tickets.
func (c *TicketStateCache) GetAll() []*Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Ticket, 0, len(c.tickets))
	for _, ticket := range c.tickets {
		result = append(result, ticket)
	}
	return result
}

// Remove deletes a ticket from the cache.
func (c *TicketStateCache) Remove(ticketID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticket := c.tickets[ticketID]
	if ticket == nil {
		return
	}

	c.removeFromIndex(c.byStation, ticket.Station, ticketID)
	c.removeFromIndex(c.byStatus, ticket.Status, ticketID)
	delete(c.tickets, ticketID)
}

// Count returns the number of tickets in the cache.
func (c *TicketStateCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tickets)
}

func (c *TicketStateCache) collectLocked(ids []uuid.UUID) []*Ticket {
	result := make([]*Ticket, 0, len(ids))
	for _, id := range ids {
		if ticket := c.tickets[id]; ticket != nil {
			result = append(result, ticket)
		}
	}
	return result
}

func (c *TicketStateCache) addToIndex(index map[string][]uuid.UUID, key string, ticketID uuid.UUID) {
	index[key] = append(index[key], ticketID)
}

func (c *TicketStateCache) removeFromIndex(index map[string][]uuid.UUID, key string, ticketID uuid.UUID) {
	ids := index[key]
	for i, id := range ids {
		if id == ticketID {
			index[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}
