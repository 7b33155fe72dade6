package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/sow-service/internal/events"
)

// Handler consumes one event. service.NotificationService.Handle fits.
type Handler func(ctx context.Context, event events.Event) error

// NotificationWorker moves notification delivery off the request path.
// Events are queued on Publish and handled by a fixed set of goroutines; a
// full queue drops the event so the publisher never blocks.
type NotificationWorker struct {
	handler Handler
	logger  *zap.Logger
	queue   chan events.Event
	workers int
	wg      sync.WaitGroup
	once    sync.Once
}

// NewNotificationWorker builds a worker with the given concurrency and buffer.
func NewNotificationWorker(handler Handler, logger *zap.Logger, workers, buffer int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &NotificationWorker{
		handler: handler,
		logger:  logger,
		queue:   make(chan events.Event, buffer),
		workers: workers,
	}
}

// Subscribe registers the worker for every scope-of-work event.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
}

// Start launches the worker goroutines. They exit when ctx is done or Stop
// drains the queue.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
}

// Stop closes the queue and waits for queued events to be handled.
func (w *NotificationWorker) Stop() {
	w.once.Do(func() {
		close(w.queue)
	})
	w.wg.Wait()
}

func (w *NotificationWorker) enqueue(ctx context.Context, event events.Event) error {
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("scope_of_work_id", event.ScopeOfWorkID))
	}
	return nil
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.queue:
			if !ok {
				return
			}
			// request contexts are gone by now; handlers get the worker's
			if err := w.handler(ctx, event); err != nil {
				w.logger.Warn("notification failed",
					zap.String("event_type", string(event.Type)),
					zap.String("scope_of_work_id", event.ScopeOfWorkID),
					zap.Error(err))
			}
		}
	}
}
