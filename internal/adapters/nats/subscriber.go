package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/greenway/internal/core/domain"
)

// Subscriber consumes light events from NATS.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribePasses delivers recorded passes from the LIGHT_PASSES stream.
func (s *Subscriber) SubscribePasses(ctx context.Context, handler func(ctx context.Context, pass *domain.TrafficLightPass) error) error {
	sub, err := s.js.Subscribe("lights.pass.>", func(msg *nats.Msg) {
		var pass domain.TrafficLightPass
		if err := json.Unmarshal(msg.Data, &pass); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &pass); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("pass-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeAggregateTriggers invokes handler with the requested day (zero
// when the message carries no parseable day, meaning "previous UTC day").
// Triggers use plain NATS rather than JetStream: a missed trigger is
// harmless because the daily schedule covers the same day anyway.
func (s *Subscriber) SubscribeAggregateTriggers(handler func(day time.Time)) error {
	sub, err := s.conn.Subscribe(SubjectAggregateTrigger, func(msg *nats.Msg) {
		var req struct {
			Day string `json:"day"`
		}
		_ = json.Unmarshal(msg.Data, &req)

		var day time.Time
		if req.Day != "" {
			if parsed, err := time.Parse("2006-01-02", req.Day); err == nil {
				day = parsed
			}
		}
		handler(day)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains the connection.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
