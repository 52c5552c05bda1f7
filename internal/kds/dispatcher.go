package kds

import (
	"context"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
)

// Event is a raw change-feed notification. The dispatcher forwards it
// without interpreting business meaning; each board decides whether to merge
// it into its local projection or trigger a full refetch.
type Event struct {
	Topic string
	Data  []byte
}

// Dispatcher holds one logical subscription to the ticket change feed and
// fans events out to connected boards. Boards subscribe with an id and get a
// buffered channel; a board that falls behind loses events rather than
// stalling the feed, and is expected to refetch. Reconnection of the
// underlying transport is the transport's job; events missed while
// disconnected are not replayed here.
type Dispatcher struct {
	subscriber events.Subscriber
	topic      string
	logger     apt.Logger

	mu     sync.RWMutex
	boards map[string]chan Event
	closed bool
}

const boardBufferSize = 64

func NewDispatcher(subscriber events.Subscriber, topic string, logger apt.Logger) *Dispatcher {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Dispatcher{
		subscriber: subscriber,
		topic:      topic,
		logger:     logger,
		boards:     make(map[string]chan Event),
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	if d.subscriber == nil {
		d.logger.Info("event subscriber not configured, dispatcher idle")
		return nil
	}

	d.logger.Info("dispatcher subscribing", "topic", d.topic)
	return d.subscriber.Subscribe(ctx, d.topic, d.forward)
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	for boardID, ch := range d.boards {
		close(ch)
		delete(d.boards, boardID)
	}
	return nil
}

// Subscribe registers a board and returns its event channel. The channel is
// closed on Unsubscribe or dispatcher shutdown.
func (d *Dispatcher) Subscribe(boardID string) <-chan Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	if existing, ok := d.boards[boardID]; ok {
		return existing
	}

	ch := make(chan Event, boardBufferSize)
	d.boards[boardID] = ch
	d.logger.Info("board subscribed", "board_id", boardID, "boards", len(d.boards))
	return ch
}

// Unsubscribe detaches a board and closes its channel.
func (d *Dispatcher) Unsubscribe(boardID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch, ok := d.boards[boardID]
	if !ok {
		return
	}
	delete(d.boards, boardID)
	close(ch)
	d.logger.Info("board unsubscribed", "board_id", boardID, "boards", len(d.boards))
}

// BoardCount returns the number of connected boards.
func (d *Dispatcher) BoardCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.boards)
}

func (d *Dispatcher) forward(ctx context.Context, msg []byte) error {
	evt := Event{Topic: d.topic, Data: msg}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for boardID, ch := range d.boards {
		select {
		case ch <- evt:
		default:
			// Board too slow; it will reconcile via refetch.
			d.logger.Info("board channel full, dropping event", "board_id", boardID)
		}
	}
	return nil
}
