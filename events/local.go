package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/metrics"
)

// LocalBus is an in-process Bus backed by a buffered channel and a single worker,
// so handlers see events in publish order.
type LocalBus struct {
	queue chan Event

	mu       sync.RWMutex
	handlers []Handler
	closed   bool

	done chan struct{}
}

// NewLocalBus starts the worker. size is the number of events buffered before Publish drops.
func NewLocalBus(size int) *LocalBus {
	if size <= 0 {
		size = 256
	}
	b := &LocalBus{
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *LocalBus) run() {
	defer close(b.done)
	for e := range b.queue {
		b.mu.RLock()
		handlers := b.handlers
		b.mu.RUnlock()
		for _, h := range handlers {
			dispatch(h, e)
		}
	}
}

func dispatch(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("event handler panicked", "type", e.Type, "panic", r)
		}
	}()
	h(context.Background(), e)
}

// Publish enqueues e, dropping it when the buffer is full or the bus is closed.
func (b *LocalBus) Publish(_ context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		metrics.EventsDroppedTotal.WithLabelValues(string(e.Type)).Inc()
		return
	}
	select {
	case b.queue <- e:
	default:
		metrics.EventsDroppedTotal.WithLabelValues(string(e.Type)).Inc()
		zap.S().Warnw("event bus full, dropping event", "type", e.Type, "userId", e.UserID)
	}
}

// Subscribe registers h for every event type.
func (b *LocalBus) Subscribe(h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
	return nil
}

// Close stops accepting events and waits for queued ones to be handled.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	<-b.done
	return nil
}
