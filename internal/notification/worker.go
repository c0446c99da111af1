package notification

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"turnero-desk/internal/model"
)

// TurnNotifier runs the alert cycle for one turn.
type TurnNotifier interface {
	NotifyNewTurn(ctx context.Context, turn model.Turn) error
}

// WorkerPool runs alert cycles off the poller's goroutine.
type WorkerPool struct {
	size     int
	jobs     chan model.Turn
	notifier TurnNotifier
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, notifier TurnNotifier) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:     size,
		jobs:     make(chan model.Turn, size*16),
		notifier: notifier,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Debug().Int("worker", id).Msg("notification worker started")
	for {
		select {
		case turn := <-wp.jobs:
			log.Debug().Int("worker", id).Int64("turn_id", turn.ID).Msg("processing new turn")
			_ = wp.notifier.NotifyNewTurn(ctx, turn)
		case <-ctx.Done():
			log.Debug().Int("worker", id).Msg("notification worker shutting down")
			return
		}
	}
}

// Dispatch queues turn for alerting. It never blocks; when the queue is
// full the alert is dropped and logged.
func (wp *WorkerPool) Dispatch(turn model.Turn) {
	select {
	case wp.jobs <- turn:
	default:
		log.Warn().Int64("turn_id", turn.ID).Msg("notification queue full; dropping alert")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan model.Turn {
	return wp.jobs
}
