package pkg

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// Subscription is a handle to an active topic subscription. Draining it
// stops delivery to the handler without tearing down the connection.
type Subscription struct {
	sub *nats.Subscription
}

func (s *Subscription) Unsubscribe() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string) (*NATSSubscriber, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSubscriber{conn: conn}, nil
}

// Subscribe implements events.Subscriber. The subscription lives until the
// connection closes; use SubscribeWithHandle when the caller needs to detach.
func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	_, err := s.subscribe(ctx, topic, handler)
	return err
}

// SubscribeWithHandle subscribes to a topic and returns a handle the caller
// can use to unsubscribe independently of the connection lifecycle.
func (s *NATSSubscriber) SubscribeWithHandle(ctx context.Context, topic string, handler events.HandlerFunc) (*Subscription, error) {
	sub, err := s.subscribe(ctx, topic, handler)
	if err != nil {
		return nil, err
	}
	return &Subscription{sub: sub}, nil
}

func (s *NATSSubscriber) subscribe(ctx context.Context, topic string, handler events.HandlerFunc) (*nats.Subscription, error) {
	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		// Delivery is at-least-once; handler errors must not stall the feed.
		_ = handler(ctx, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return sub, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
