// Package scheduler contains the background loops: the dispatch worker pool,
// the campaign scheduler, and the queued-message sweep.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/app/services"
)

var (
	// Processed dispatch tasks partitioned by outcome
	dispatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Total number of dispatch tasks processed, by outcome",
		},
		[]string{"outcome"},
	)

	// Dispatch tasks currently being processed
	dispatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_inflight_tasks",
			Help: "Number of dispatch tasks currently being processed",
		},
	)

	// Tasks re-enqueued for another attempt after a transient failure
	dispatchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_retries_total",
			Help: "Total number of dispatch task retries enqueued",
		},
	)
)

// DispatchWorkerConfig tunes the worker pool
type DispatchWorkerConfig struct {
	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// RatePerSecond limits provider submits across all workers; zero disables
	// the limiter
	RatePerSecond int
	// TaskTimeout bounds one provider round trip plus its bookkeeping
	TaskTimeout time.Duration
}

func (c DispatchWorkerConfig) withDefaults() DispatchWorkerConfig {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Minute
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 30 * time.Second
	}
	return c
}

// DispatchWorker drains the task queue through a pool of goroutines. Retry
// policy lives here: transient outcomes go back on the queue with exponential
// backoff until the attempt budget runs out, after which the message stays
// queued and the sweep owns it.
type DispatchWorker struct {
	flow       businessflow.DispatchFlow
	dispatcher services.TaskDispatcher
	cfg        DispatchWorkerConfig
	logger     *log.Logger
}

// NewDispatchWorker creates a new dispatch worker pool
func NewDispatchWorker(
	flow businessflow.DispatchFlow,
	dispatcher services.TaskDispatcher,
	cfg DispatchWorkerConfig,
	logger *log.Logger,
) *DispatchWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &DispatchWorker{
		flow:       flow,
		dispatcher: dispatcher,
		cfg:        cfg.withDefaults(),
		logger:     logger,
	}
}

// Start launches the worker pool and returns a stop function that blocks
// until all workers have drained
func (w *DispatchWorker) Start(parent context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(parent)

	tasks, err := w.dispatcher.Consume(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	var limiter <-chan time.Time
	var limiterStop func()
	if w.cfg.RatePerSecond > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(w.cfg.RatePerSecond))
		limiter = ticker.C
		limiterStop = ticker.Stop
	}

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx, tasks, limiter)
		}()
	}

	return func() {
		cancel()
		wg.Wait()
		if limiterStop != nil {
			limiterStop()
		}
	}, nil
}

func (w *DispatchWorker) run(ctx context.Context, tasks <-chan services.Task, limiter <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			if limiter != nil {
				select {
				case <-limiter:
				case <-ctx.Done():
					return
				}
			}
			w.handle(ctx, task)
		}
	}
}

func (w *DispatchWorker) handle(ctx context.Context, task services.Task) {
	dispatchInFlight.Inc()
	defer dispatchInFlight.Dec()

	taskCtx, cancel := context.WithTimeout(ctx, w.cfg.TaskTimeout)
	defer cancel()

	outcome, err := w.flow.ProcessTask(taskCtx, task)
	dispatchOutcomesTotal.WithLabelValues(string(outcome)).Inc()

	switch outcome {
	case businessflow.DispatchOutcomeRetry:
		w.retry(ctx, task, err)
	default:
		if err != nil {
			w.logger.Printf("worker: task %s finished with outcome %s: %v", task.ID, outcome, err)
		}
		if err := w.dispatcher.Complete(ctx, task); err != nil {
			w.logger.Printf("worker: complete task %s failed: %v", task.ID, err)
		}
	}
}

func (w *DispatchWorker) retry(ctx context.Context, task services.Task, cause error) {
	next := task
	next.Attempt++

	if next.Attempt >= w.cfg.MaxAttempts {
		// Out of attempts. Release the task and leave the message queued;
		// the sweep re-enqueues it once it counts as stalled.
		w.logger.Printf("worker: task %s exhausted %d attempts: %v", task.ID, w.cfg.MaxAttempts, cause)
		if err := w.dispatcher.Complete(ctx, task); err != nil {
			w.logger.Printf("worker: complete task %s failed: %v", task.ID, err)
		}
		return
	}

	delay := w.backoff(next.Attempt)
	if err := w.dispatcher.Enqueue(ctx, next, delay); err != nil {
		w.logger.Printf("worker: re-enqueue task %s failed: %v", task.ID, err)
		return
	}
	dispatchRetriesTotal.Inc()
	w.logger.Printf("worker: task %s retrying in %s (attempt %d): %v", task.ID, delay, next.Attempt, cause)
}

func (w *DispatchWorker) backoff(attempt int) time.Duration {
	delay := w.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	if delay > w.cfg.MaxBackoff {
		delay = w.cfg.MaxBackoff
	}
	return delay
}
