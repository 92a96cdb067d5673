package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalTrigger submits a job of a fixed type on every tick.
type IntervalTrigger struct {
	interval  time.Duration
	jobType   JobType
	scheduler *Scheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a trigger for jobType.
func NewIntervalTrigger(interval time.Duration, jobType JobType, scheduler *Scheduler, logger *zap.Logger) *IntervalTrigger {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &IntervalTrigger{
		interval:  interval,
		jobType:   jobType,
		scheduler: scheduler,
		logger:    logger.Named("interval_trigger"),
	}
}

// Start starts the trigger loop
func (it *IntervalTrigger) Start(ctx context.Context) error {
	it.mu.Lock()
	if it.isRunning {
		it.mu.Unlock()
		return nil
	}
	it.isRunning = true
	it.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	it.cancel = cancel

	it.wg.Add(1)
	go it.runLoop(ctx)

	it.logger.Info("Interval trigger started",
		zap.String("job_type", string(it.jobType)),
		zap.Duration("interval", it.interval),
	)
	return nil
}

// Stop stops the trigger loop
func (it *IntervalTrigger) Stop(ctx context.Context) error {
	it.mu.Lock()
	if !it.isRunning {
		it.mu.Unlock()
		return nil
	}
	it.isRunning = false
	it.mu.Unlock()

	if it.cancel != nil {
		it.cancel()
	}

	done := make(chan struct{})
	go func() {
		it.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		it.logger.Info("Interval trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (it *IntervalTrigger) runLoop(ctx context.Context) {
	defer it.wg.Done()

	ticker := time.NewTicker(it.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			it.Trigger()
		}
	}
}

// Trigger submits a job immediately. A job of the same type that is still
// queued or running is not duplicated.
func (it *IntervalTrigger) Trigger() {
	_, err := it.scheduler.Submit(it.jobType)
	switch {
	case err == nil:
	case errors.Is(err, ErrJobAlreadyQueued):
		it.logger.Debug("Previous job still in flight, skipping tick",
			zap.String("job_type", string(it.jobType)))
	default:
		it.logger.Warn("Failed to submit scheduled job",
			zap.String("job_type", string(it.jobType)),
			zap.Error(err))
	}
}
