package store

import (
	"context"
	"log/slog"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/kafka"
)

// Publisher delivers events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Recorder buffers search-completed events and publishes them to Kafka in
// the background. Record never blocks; a full buffer drops the event.
type Recorder struct {
	producer Publisher
	eventCh  chan SearchCompleted
	logger   *slog.Logger
	done     chan struct{}
}

// NewRecorder creates a Recorder with the given buffer size.
func NewRecorder(producer Publisher, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Recorder{
		producer: producer,
		eventCh:  make(chan SearchCompleted, bufferSize),
		logger:   slog.Default().With("component", "search-recorder"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop.
func (r *Recorder) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		for {
			select {
			case event, ok := <-r.eventCh:
				if !ok {
					return
				}
				r.publish(ctx, event)
			case <-ctx.Done():
				r.drainRemaining()
				return
			}
		}
	}()
	r.logger.Info("search recorder started", "buffer_size", cap(r.eventCh))
}

// Record enqueues an event for publication.
func (r *Recorder) Record(event SearchCompleted) {
	select {
	case r.eventCh <- event:
	default:
		r.logger.Warn("search-completed event dropped (buffer full)", "fingerprint", event.Fingerprint)
	}
}

// Close stops accepting events and waits for the loop to finish.
func (r *Recorder) Close() {
	close(r.eventCh)
	<-r.done
}

func (r *Recorder) publish(ctx context.Context, event SearchCompleted) {
	if err := r.producer.Publish(ctx, kafka.Event{
		Key:   event.Fingerprint,
		Value: event,
	}); err != nil {
		r.logger.Error("failed to publish search-completed event", "fingerprint", event.Fingerprint, "error", err)
	}
}

func (r *Recorder) drainRemaining() {
	for {
		select {
		case event, ok := <-r.eventCh:
			if !ok {
				return
			}
			r.publish(context.Background(), event)
		default:
			return
		}
	}
}
