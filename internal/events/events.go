// Package events provides the in-process event bus that carries progress
// and log events from long-running cluster operations to the CLI layer.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

type EventType string

const (
	EventTransferProgress  EventType = "transfer_progress"
	EventTransferCompleted EventType = "transfer_completed"
	EventTransferFailed    EventType = "transfer_failed"
	EventStateChange       EventType = "state_change"
	EventLog               EventType = "log"
)

const defaultBufferSize = 256

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// TransferProgressEvent reports chunk-level transfer progress. Emitted
// after each chunk; never persisted.
type TransferProgressEvent struct {
	BaseEvent
	FileName         string
	BytesTransferred int64
	TotalBytes       int64
	Percentage       float64
}

// TransferCompletedEvent marks the end of a transfer.
type TransferCompletedEvent struct {
	BaseEvent
	FileName   string
	TotalBytes int64
	Duration   time.Duration
}

// TransferFailedEvent carries a terminal transfer error.
type TransferFailedEvent struct {
	BaseEvent
	FileName string
	Err      error
}

// StateChangeEvent reports a job state transition observed during sync.
type StateChangeEvent struct {
	BaseEvent
	JobName  string
	OldState string
	NewState string
}

// LogEvent carries an operational log line for UI display.
type LogEvent struct {
	BaseEvent
	Message string
}

// Bus fans events out to subscribers. Publishing never blocks; events to
// full subscriber buffers are dropped and counted.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	all         []chan Event
	bufferSize  int
	closed      bool
	dropped     atomic.Int64
}

func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel receiving events of the given type. The
// channel is closed when the bus is closed.
func (b *Bus) Subscribe(eventType EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	return ch
}

// SubscribeAll returns a channel receiving every published event.
func (b *Bus) SubscribeAll() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, b.bufferSize)
	b.all = append(b.all, ch)
	return ch
}

func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}

	for _, ch := range b.all {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded due to full buffers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for _, channels := range b.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range b.all {
		close(ch)
	}
}
