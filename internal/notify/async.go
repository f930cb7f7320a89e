package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"droneDispatch/internal/metrics"
	"droneDispatch/models"
)

const deliveryTimeout = 5 * time.Second

type job struct {
	ctx     context.Context
	userID  string
	event   models.EventType
	payload map[string]any
}

// Async hands notifications to a bounded worker pool. Notify never blocks: when the
// queue is full the notification is dropped and logged.
type Async struct {
	sink    Sink
	name    string
	log     *zap.Logger
	metrics *metrics.MetricsRegistry

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// NewAsync starts workers goroutines delivering to sink. name labels the metrics.
func NewAsync(sink Sink, name string, workers, queueSize int, log *zap.Logger, m *metrics.MetricsRegistry) *Async {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &Async{sink: sink, name: name, log: log, metrics: m, queue: make(chan job, queueSize)}
	a.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go a.run()
	}
	return a
}

// Notify enqueues the notification and returns immediately. It always returns nil.
func (a *Async) Notify(ctx context.Context, userID string, event models.EventType, payload map[string]any) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(userID, event, "closed")
		return nil
	}
	select {
	case a.queue <- job{ctx: context.WithoutCancel(ctx), userID: userID, event: event, payload: payload}:
	default:
		a.drop(userID, event, "queue full")
	}
	return nil
}

func (a *Async) drop(userID string, event models.EventType, reason string) {
	a.count(metrics.OutcomeDropped)
	a.log.Warn("notification dropped",
		zap.String("reason", reason),
		zap.String("user_id", userID),
		zap.String("event", string(event)))
}

func (a *Async) run() {
	defer a.wg.Done()
	for j := range a.queue {
		ctx, cancel := context.WithTimeout(j.ctx, deliveryTimeout)
		err := a.sink.Notify(ctx, j.userID, j.event, j.payload)
		cancel()
		if err != nil {
			a.count(metrics.OutcomeError)
			a.log.Error("notification delivery failed",
				zap.String("user_id", j.userID),
				zap.String("event", string(j.event)),
				zap.Error(err))
			continue
		}
		a.count(metrics.OutcomeOK)
	}
}

func (a *Async) count(outcome string) {
	if a.metrics != nil {
		a.metrics.NotificationsTotal.WithLabelValues(a.name, outcome).Inc()
	}
}

// Close stops accepting notifications and waits for queued ones to be delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	a.wg.Wait()
}
