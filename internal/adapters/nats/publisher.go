package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/greenway/internal/core/domain"
)

// Subjects and stream names for light events.
const (
	subjectPassPrefix       = "lights.pass."       // + light identifier
	subjectAggregation      = "lights.ranges.aggregated"
	SubjectAggregateTrigger = "lights.aggregate.trigger"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the light streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "LIGHT_PASSES",
			Subjects:  []string{"lights.pass.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "LIGHT_RANGES",
			Subjects:  []string{"lights.ranges.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishPass announces a freshly recorded traffic light pass.
func (p *Publisher) PublishPass(ctx context.Context, pass *domain.TrafficLightPass) error {
	data, err := json.Marshal(pass)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subjectPassPrefix+pass.LightIdentifier, data)
	return err
}

// PublishAggregation announces a completed aggregation run. The ranges
// themselves live in the database; the event carries the summary.
func (p *Publisher) PublishAggregation(ctx context.Context, result *domain.AggregationResult) error {
	summary := struct {
		Day       string `json:"day"`
		Ranges    int    `json:"ranges"`
		PassCount int    `json:"pass_count"`
	}{
		Day:       result.Day.Format("2006-01-02"),
		Ranges:    len(result.Ranges),
		PassCount: result.PassCount,
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subjectAggregation, data)
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket
// relay, aggregation triggers).
func RawConn(url string) (*nats.Conn, error) {
	return connect(url)
}

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
