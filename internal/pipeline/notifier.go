package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

// Notifier delivers stage events to per-caller subscription channels.
// Delivery is best-effort: a full or absent channel drops the event rather
// than blocking the pipeline.
type Notifier struct {
	mu     sync.Mutex
	subs   map[string]chan StageEvent
	buffer int
	logger *slog.Logger
}

// NewNotifier creates a Notifier with the given per-subscriber buffer.
func NewNotifier(buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &Notifier{
		subs:   make(map[string]chan StageEvent),
		buffer: buffer,
		logger: slog.Default().With("component", "notifier"),
	}
}

// Subscribe registers callerID and returns its event channel. A second
// subscription for the same caller replaces the first, closing it.
func (n *Notifier) Subscribe(callerID string) <-chan StageEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if old, ok := n.subs[callerID]; ok {
		close(old)
	}
	ch := make(chan StageEvent, n.buffer)
	n.subs[callerID] = ch
	return ch
}

// Unsubscribe removes callerID and closes its channel.
func (n *Notifier) Unsubscribe(callerID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.subs[callerID]; ok {
		close(ch)
		delete(n.subs, callerID)
	}
}

// Publish sends a stage event to callerID's channel. No subscriber or a
// full buffer means the event is dropped.
func (n *Notifier) Publish(callerID string, stage string, data map[string]any) {
	n.mu.Lock()
	ch, ok := n.subs[callerID]
	n.mu.Unlock()
	if !ok {
		return
	}
	event := StageEvent{Stage: stage, Timestamp: time.Now().UTC(), Data: data}
	select {
	case ch <- event:
	default:
		n.logger.Debug("subscriber buffer full, dropping event", "caller_id", callerID, "stage", stage)
	}
}
