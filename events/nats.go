package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/metrics"
)

const (
	subjectAll = "waitlist.>"
	queueGroup = "waitlist-sync"
)

// NATSBus publishes events as JSON on their type subject. Subscribers share a queue group
// so each event is handled once across instances.
type NATSBus struct {
	conn *nats.Conn
}

// NewNATSBus connects to the server at url
func NewNATSBus(url string) (*NATSBus, error) {
	conn, err := nats.Connect(url, nats.Name("waitlist"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBus{conn: conn}, nil
}

func (n *NATSBus) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err == nil {
		err = n.conn.Publish(string(e.Type), payload)
	}
	if err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(string(e.Type)).Inc()
		zap.S().Warnw("failed to publish event", "type", e.Type, "userId", e.UserID, "error", err)
		return
	}
	zap.S().Debugw("published event", "type", e.Type, "userId", e.UserID)
}

func (n *NATSBus) Subscribe(h Handler) error {
	_, err := n.conn.QueueSubscribe(subjectAll, queueGroup, func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			zap.S().Warnw("discarding malformed event", "subject", msg.Subject, "error", err)
			return
		}
		dispatch(h, e)
	})
	return err
}

// Close drains in-flight messages before closing the connection.
func (n *NATSBus) Close() error {
	return n.conn.Drain()
}
