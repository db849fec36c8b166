// Package event provides a pub/sub event system for orchestrator lifecycle events using watermill.
package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// JournalTopic is the watermill topic every published event is mirrored to.
const JournalTopic = "tails.events"

// EventType represents the type of event.
type EventType string

const (
	ProcessStarted  EventType = "process.started"
	ProcessExited   EventType = "process.exited"
	ReloadStarted   EventType = "reload.started"
	ReloadCompleted EventType = "reload.completed"
	ReloadFailed    EventType = "reload.failed"
	FileChanged     EventType = "file.changed"
)

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

// subscriberEntry wraps a subscriber with an ID.
type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus is the event bus that manages pub/sub using watermill.
// Subscribers are called directly to preserve type information; every event
// is also mirrored as a JSON message on JournalTopic of the underlying
// watermill GoChannel, which Journal exposes as a stream.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[EventType][]subscriberEntry

	nextID uint64
	closed bool
}

// NewBus creates a new event bus with watermill infrastructure.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

// newID generates a unique subscriber ID.
func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	if b == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribe(eventType, id)
	}
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// collect returns the subscribers for an event, or false when the bus is closed.
func (b *Bus) collect(eventType EventType) ([]Subscriber, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, false
	}

	subs := make([]Subscriber, 0, len(b.subscribers[eventType]))
	for _, entry := range b.subscribers[eventType] {
		subs = append(subs, entry.fn)
	}
	return subs, true
}

// Publish sends an event to all subscribers asynchronously.
// Each subscriber is called in its own goroutine to prevent blocking.
// A nil bus drops the event, so components can treat the bus as optional.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	subs, ok := b.collect(event.Type)
	if !ok {
		return
	}
	b.journal(event)

	for _, sub := range subs {
		go sub(event)
	}
}

// journal mirrors the event onto the watermill topic. Events that cannot be
// encoded are only delivered to direct subscribers.
func (b *Bus) journal(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set("type", string(event.Type))
	_ = b.pubsub.Publish(JournalTopic, msg)
}

// Journal streams every event published after the call as a raw watermill
// message. Messages are acked by the bus once forwarded; the channel closes
// when ctx is done or the bus is closed.
func (b *Bus) Journal(ctx context.Context) (<-chan *message.Message, error) {
	in, err := b.pubsub.Subscribe(ctx, JournalTopic)
	if err != nil {
		return nil, err
	}

	out := make(chan *message.Message, 16)
	go func() {
		defer close(out)
		for msg := range in {
			select {
			case out <- msg:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close closes the bus and all its subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.mu.Unlock()

	return b.pubsub.Close()
}
