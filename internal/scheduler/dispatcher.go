package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/pkg/distlock"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

// Executor runs one campaign execution.
type Executor interface {
	Execute(ctx context.Context, campaignID string, execType domain.ExecutionType, executedBy string) (*domain.ExecutionLog, error)
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultVisibility   = 10 * time.Minute
	claimBatch          = 10

	// ExecutedBy is recorded on execution logs created by fired tasks.
	ExecutedBy = "scheduler"
)

// Dispatcher polls the queue for due tasks and fires them.
type Dispatcher struct {
	queue        Queue
	exec         Executor
	queueName    string
	pollInterval time.Duration
	visibility   time.Duration
	now          func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex

	fired  int64
	failed int64
}

// NewDispatcher creates a dispatcher. Zero durations take the defaults.
func NewDispatcher(queue Queue, exec Executor, queueName string, pollInterval, visibility time.Duration) *Dispatcher {
	if queueName == "" {
		queueName = DefaultQueue
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if visibility <= 0 {
		visibility = DefaultVisibility
	}
	return &Dispatcher{
		queue:        queue,
		exec:         exec,
		queueName:    queueName,
		pollInterval: pollInterval,
		visibility:   visibility,
		now:          time.Now,
	}
}

// Start launches the polling loop.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("dispatcher already running")
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.running = true

	logger.Info("dispatcher starting",
		"component", "dispatcher",
		"queue", d.queueName,
		"poll_interval", d.pollInterval)

	d.wg.Add(1)
	go d.loop()
	return nil
}

// Stop cancels the loop and waits for the in-progress batch to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	logger.Info("dispatcher stopped",
		"component", "dispatcher",
		"fired", atomic.LoadInt64(&d.fired),
		"failed", atomic.LoadInt64(&d.failed))
}

// Running reports whether the loop is active.
func (d *Dispatcher) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchDue(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dispatch failed", "component", "dispatcher", "error", err)
			}
		}
	}
}

// DispatchDue claims every due task and fires it. Each fired task is
// acknowledged whatever the execution outcome; the execution log records it.
// Once started, an execution is not cancelled by ctx. Tasks claimed but not
// yet started when ctx ends go back to the pending set.
// It returns the number of tasks fired.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		tasks, err := d.queue.Claim(ctx, d.queueName, d.now(), d.visibility, claimBatch)
		if err != nil {
			return total, err
		}
		for i, t := range tasks {
			if err := ctx.Err(); err != nil {
				d.release(tasks[i:])
				return total, err
			}
			d.fire(ctx, t)
			total++
		}
		if len(tasks) < claimBatch {
			return total, nil
		}
	}
}

func (d *Dispatcher) fire(ctx context.Context, t Task) {
	if t.Operation != OperationExecute {
		logger.Warn("unknown task operation", "component", "dispatcher", "task_id", t.ID, "operation", t.Operation)
		d.ack(t)
		return
	}

	stop := d.heartbeat(t)
	start := time.Now()
	entry, err := d.exec.Execute(context.WithoutCancel(ctx), t.Payload, domain.ExecutionScheduled, ExecutedBy)
	stop()

	switch {
	case err != nil:
		atomic.AddInt64(&d.failed, 1)
		logger.Error("scheduled execution failed",
			"component", "dispatcher",
			"task_id", t.ID,
			"campaign_id", t.Payload,
			"error", err)
	case entry != nil:
		atomic.AddInt64(&d.fired, 1)
		logger.Info("scheduled execution finished",
			"component", "dispatcher",
			"task_id", t.ID,
			"campaign_id", t.Payload,
			"status", string(entry.Status),
			"duration", time.Since(start))
	}
	d.ack(t)
}

// heartbeat keeps t invisible to the recovery sweep while it executes. The
// returned func stops it and waits for the goroutine to exit.
func (d *Dispatcher) heartbeat(t Task) func() {
	interval := d.visibility / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := d.queue.Extend(ctx, d.queueName, t.ID, d.now().Add(d.visibility))
				cancel()
				switch {
				case errors.Is(err, ErrTaskNotFound):
					logger.Warn("task left inflight during execution", "component", "dispatcher", "task_id", t.ID)
					return
				case err != nil:
					logger.Error("task heartbeat failed", "component", "dispatcher", "task_id", t.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (d *Dispatcher) ack(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.queue.Ack(ctx, t.ID); err != nil && !errors.Is(err, ErrTaskNotFound) {
		logger.Error("task ack failed", "component", "dispatcher", "task_id", t.ID, "error", err)
	}
}

// release hands unstarted tasks back. A failed release leaves the task
// inflight, where the recovery sweep picks it up after the visibility timeout.
func (d *Dispatcher) release(tasks []Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, t := range tasks {
		err := d.queue.Release(ctx, d.queueName, t.ID, t.FireAt)
		if err != nil && !errors.Is(err, ErrTaskNotFound) {
			logger.Error("task release failed", "component", "dispatcher", "task_id", t.ID, "error", err)
			continue
		}
		logger.Info("task released on shutdown", "component", "dispatcher", "task_id", t.ID)
	}
}

// Sweeper re-queues claimed tasks whose dispatcher died before acknowledging
// them. Only one sweeper in the cluster runs at a time.
type Sweeper struct {
	queue     Queue
	queueName string
	newLock   func() distlock.DistLock
	now       func() time.Time
}

// NewSweeper creates a sweeper. newLock is called once per sweep.
func NewSweeper(queue Queue, queueName string, newLock func() distlock.DistLock) *Sweeper {
	if queueName == "" {
		queueName = DefaultQueue
	}
	return &Sweeper{queue: queue, queueName: queueName, newLock: newLock, now: time.Now}
}

// Sweep recovers expired inflight tasks. It returns 0 without error when
// another process holds the sweep lock.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	var recovered int
	err := distlock.Run(ctx, s.newLock(), func(ctx context.Context) error {
		n, err := s.queue.RecoverExpired(ctx, s.queueName, s.now())
		recovered = n
		return err
	})
	if errors.Is(err, distlock.ErrNotHeld) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if recovered > 0 {
		logger.Warn("recovered stuck scheduled tasks", "component", "sweeper", "tasks", recovered)
	}
	return recovered, nil
}
