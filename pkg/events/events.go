package events

import (
	"sync"
	"time"
)

// Name identifies one of the outbound event-channel event types a
// runner agent writes back to its connected client.
type Name string

const (
	TayloredOutput   Name = "tayloredOutput"
	TayloredError    Name = "tayloredError"
	TayloredRunError Name = "tayloredRunError"
	DirectoryListing Name = "directoryListing"
	FileContent      Name = "fileContent"
)

// Event is one outbound envelope destined for the connection's writer
// goroutine. Payload is marshaled as-is by the channel encoder.
type Event struct {
	Name      Name
	Payload   any
	Timestamp time.Time
}

// Subscriber is a channel that receives published events.
type Subscriber chan *Event

// Broker multiplexes events published by many concurrent producer
// goroutines (one per inbound request being handled) onto the
// subscriber channels drained by a connection's single writer
// goroutine, so concurrent handlers never race to write the same
// socket directly.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a broker with a reasonably sized internal buffer;
// a runner agent constructs one per accepted connection.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts the distribution loop and closes all subscriber channels.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)

		b.mu.Lock()
		defer b.mu.Unlock()
		for sub := range b.subscribers {
			delete(b.subscribers, sub)
			close(sub)
		}
	})
}

// Subscribe registers a new subscriber channel. A connection's writer
// goroutine normally subscribes exactly once.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish hands an event to the broker. Safe to call concurrently from
// many goroutines; blocks only as long as it takes to enqueue onto the
// broker's internal channel, never on a slow subscriber.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// subscriber buffer full; drop rather than block the broker
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
