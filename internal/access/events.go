package access

import (
	"sync"
	"time"

	"github.com/kozaktomas/facelock/internal/constants"
)

// Event types sent to listeners.
const (
	EventMatch          = "match"
	EventReject         = "reject"
	EventDoorOpen       = "door_open"
	EventDoorPhase      = "door_phase"
	EventEnrolled       = "enrolled"
	EventEnrollFailed   = "enroll_failed"
	EventIdentitySynced = "identity_synced"
	EventCommand        = "command"
	EventRecognition    = "recognition"
)

// Event is one controller notification.
type Event struct {
	Type    string    `json:"type"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Time    time.Time `json:"time"`
}

// Broadcaster fans events out to listeners. Slow listeners drop events.
type Broadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes and closes an event listener.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Listeners returns the number of attached listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// SendEvent sends an event to all listeners.
func (b *Broadcaster) SendEvent(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

func (b *Broadcaster) send(typ, msg string, data any) {
	b.SendEvent(Event{Type: typ, Message: msg, Data: data})
}
