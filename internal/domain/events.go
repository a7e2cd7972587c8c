package domain

import (
	"sync"
	"time"
)

type EventType string

const (
	EventTypeMessageReceived     EventType = "message.received"
	EventTypeMessageSent         EventType = "message.sent"
	EventTypeConversationUpdated EventType = "conversation.updated"
	EventTypeConversationOpened  EventType = "conversation.opened"
	EventTypeConversationClosed  EventType = "conversation.closed"
	EventTypeTyping              EventType = "typing"
	EventTypeConnectionStatus    EventType = "connection.status"
)

type Event interface {
	Type() EventType
	Timestamp() time.Time
}

type MessageReceivedEvent struct {
	Message *Message
	// Visible is true when the message was appended to the active conversation's log.
	Visible   bool
	EventTime time.Time
}

func (e MessageReceivedEvent) Type() EventType      { return EventTypeMessageReceived }
func (e MessageReceivedEvent) Timestamp() time.Time { return e.EventTime }

type MessageSentEvent struct {
	Message   *Message
	Delivered bool
	EventTime time.Time
}

func (e MessageSentEvent) Type() EventType      { return EventTypeMessageSent }
func (e MessageSentEvent) Timestamp() time.Time { return e.EventTime }

type ConversationUpdatedEvent struct {
	Conversation Conversation
	EventTime    time.Time
}

func (e ConversationUpdatedEvent) Type() EventType      { return EventTypeConversationUpdated }
func (e ConversationUpdatedEvent) Timestamp() time.Time { return e.EventTime }

type ConversationOpenedEvent struct {
	ConversationID string
	EventTime      time.Time
}

func (e ConversationOpenedEvent) Type() EventType      { return EventTypeConversationOpened }
func (e ConversationOpenedEvent) Timestamp() time.Time { return e.EventTime }

type ConversationClosedEvent struct {
	ConversationID string
	EventTime      time.Time
}

func (e ConversationClosedEvent) Type() EventType      { return EventTypeConversationClosed }
func (e ConversationClosedEvent) Timestamp() time.Time { return e.EventTime }

type TypingEvent struct {
	ConversationID string
	UserID         string
	Typing         bool
	EventTime      time.Time
}

func (e TypingEvent) Type() EventType      { return EventTypeTyping }
func (e TypingEvent) Timestamp() time.Time { return e.EventTime }

type ConnectionStatusEvent struct {
	Connected bool
	Reason    string
	EventTime time.Time
}

func (e ConnectionStatusEvent) Type() EventType      { return EventTypeConnectionStatus }
func (e ConnectionStatusEvent) Timestamp() time.Time { return e.EventTime }

// EventBus provides pub/sub for domain events
type EventBus interface {
	Publish(event Event)
	Subscribe(eventTypes []EventType) <-chan Event
	// SubscribeQueued never drops. Events queue without bound until read,
	// and after Unsubscribe the channel delivers what is queued before it
	// closes, so the caller must read it until closed.
	SubscribeQueued(eventTypes []EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
}

// SimpleEventBus is a basic in-memory implementation of EventBus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]subscription
}

type subscription struct {
	ch         chan Event
	queue      *eventQueue
	eventTypes map[EventType]bool
}

func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make(map[<-chan Event]subscription),
	}
}

func (b *SimpleEventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.eventTypes) == 0 || sub.eventTypes[event.Type()] {
			if sub.queue != nil {
				sub.queue.push(event)
				continue
			}
			select {
			case sub.ch <- event:
			default:
				// Channel full, skip this subscriber
			}
		}
	}
}

func (b *SimpleEventBus) Subscribe(eventTypes []EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	b.subscribers[ch] = subscription{
		ch:         ch,
		eventTypes: typeSet(eventTypes),
	}

	return ch
}

func (b *SimpleEventBus) SubscribeQueued(eventTypes []EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event)
	q := newEventQueue()
	b.subscribers[ch] = subscription{
		ch:         ch,
		queue:      q,
		eventTypes: typeSet(eventTypes),
	}
	go q.pump(ch)

	return ch
}

func (b *SimpleEventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		if sub.queue != nil {
			sub.queue.close()
		} else {
			close(sub.ch)
		}
		delete(b.subscribers, ch)
	}
}

func typeSet(eventTypes []EventType) map[EventType]bool {
	m := make(map[EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		m[t] = true
	}
	return m
}

// eventQueue is an unbounded FIFO between Publish and one queued subscriber.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	closed bool
	ready  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(event Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, event)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pump feeds out in order and closes it once the queue is closed and empty.
func (q *eventQueue) pump(out chan Event) {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				close(out)
				return
			}
			<-q.ready
			continue
		}
		event := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		out <- event
	}
}

// NopEventBus drops every event.
type NopEventBus struct{}

func (NopEventBus) Publish(Event) {}

func (NopEventBus) Subscribe([]EventType) <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

func (b NopEventBus) SubscribeQueued(eventTypes []EventType) <-chan Event {
	return b.Subscribe(eventTypes)
}

func (NopEventBus) Unsubscribe(<-chan Event) {}
