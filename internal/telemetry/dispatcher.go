// Package telemetry ships pipeline events to the observability collector
// without blocking the request path.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/infrastructure/metrics"
)

// Event is one telemetry record bound for the observability collector.
type Event struct {
	ServiceName string         `json:"service_name"`
	EventType   string         `json:"event_type"`
	Data        map[string]any `json:"data"`
}

// Publisher delivers a single event to the collector.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

const publishTimeout = 5 * time.Second

// Dispatcher fans events out to the collector through a bounded queue and a
// fixed set of workers. Submission never blocks; events are dropped when the
// queue is full.
type Dispatcher struct {
	publisher Publisher
	queue     chan Event
	workers   int
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewDispatcher creates a dispatcher with the given worker count and queue
// capacity.
func NewDispatcher(publisher Publisher, workers, queueSize int, log zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		publisher: publisher,
		queue:     make(chan Event, queueSize),
		workers:   workers,
		stopChan:  make(chan struct{}),
		log:       log,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.log.Info().Int("workers", d.workers).Int("queue_size", cap(d.queue)).Msg("telemetry dispatcher started")
}

// Stop signals the workers to drain the queue and waits for them to finish
// or for ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info().Msg("telemetry dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues an event. It returns false when the queue is full and the
// event was dropped.
func (d *Dispatcher) Submit(event Event) bool {
	select {
	case d.queue <- event:
		metrics.SetTelemetryQueueDepth(len(d.queue))
		return true
	default:
		metrics.RecordTelemetryDropped()
		d.log.Warn().Str("event_type", event.EventType).Msg("telemetry queue full, dropping event")
		return false
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.publish(event)
		case <-d.stopChan:
			// Drain what is already queued, then exit.
			for {
				select {
				case event := <-d.queue:
					d.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) publish(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.log.Warn().Err(err).Str("event_type", event.EventType).Msg("failed to publish telemetry event")
	}
	metrics.SetTelemetryQueueDepth(len(d.queue))
}
