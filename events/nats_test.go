package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSBus_RoundTrip(t *testing.T) {
	url := os.Getenv("NATS_TEST_URL")
	if url == "" {
		t.Skip("NATS_TEST_URL not set")
	}

	bus, err := NewNATSBus(url)
	require.NoError(t, err)

	received := make(chan Event, 1)
	require.NoError(t, bus.Subscribe(func(_ context.Context, e Event) {
		received <- e
	}))
	require.NoError(t, bus.conn.Flush())

	bus.Publish(context.Background(), Event{Type: TierUpgraded, UserID: "u1", Tier: 2, PreviousTier: 1})

	select {
	case e := <-received:
		assert.Equal(t, TierUpgraded, e.Type)
		assert.Equal(t, 2, e.Tier)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	assert.NoError(t, bus.Close())
}

func TestNewNATSBus_BadURL(t *testing.T) {
	_, err := NewNATSBus("nats://127.0.0.1:1")
	assert.Error(t, err)
}
