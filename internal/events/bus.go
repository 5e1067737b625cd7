package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSystemStarted   EventType = "SYSTEM_STARTED"
	EventSystemStopped   EventType = "SYSTEM_STOPPED"
	EventTickAccepted    EventType = "TICK_ACCEPTED"
	EventTickRejected    EventType = "TICK_REJECTED"
	EventSourceDisabled  EventType = "SOURCE_DISABLED"
	EventPairMaintenance EventType = "PAIR_MAINTENANCE"
	EventSignalCreated   EventType = "SIGNAL_CREATED"
	EventSignalActivated EventType = "SIGNAL_ACTIVATED"
	EventSignalClosed    EventType = "SIGNAL_CLOSED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run in their own
// goroutines so slow handlers never block producers.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}
