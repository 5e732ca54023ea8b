// Package worker drains the task queue and runs each job on a bounded pool
// of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/queue"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store"
	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
)

// Runner processes one task. *orchestrator.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, task models.Task) error
}

type Config struct {
	Concurrency  int
	DequeueWait  time.Duration
	ErrorBackoff time.Duration
}

// Pool pulls tasks while slots are free. Tasks keep running after the pool
// context is cancelled; Run returns once they have drained.
type Pool struct {
	queue  queue.Queue
	runner Runner
	store  store.Store
	config Config
	done   chan struct{}
}

func New(q queue.Queue, runner Runner, st store.Store, config Config) *Pool {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.DequeueWait <= 0 {
		config.DequeueWait = 5 * time.Second
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = time.Second
	}
	return &Pool{
		queue:  q,
		runner: runner,
		store:  st,
		config: config,
		done:   make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled and every in-flight task has finished.
// Tasks a previous run of this consumer left unacknowledged are queued
// again first, so a job interrupted by a crash resumes.
func (p *Pool) Run(ctx context.Context) error {
	slog.Info("worker pool starting", "concurrency", p.config.Concurrency)

	if n, err := p.queue.Recover(ctx); err != nil {
		slog.Error("recovering unacknowledged tasks failed", "error", err)
	} else if n > 0 {
		slog.Warn("redelivering unacknowledged tasks", "count", n)
	}

	sem := make(chan struct{}, p.config.Concurrency)
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(p.done)
		slog.Info("worker pool stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker pool draining", "in_flight", len(sem))
			return ctx.Err()
		case sem <- struct{}{}:
		}

		task, ok, err := p.queue.Dequeue(ctx, p.config.DequeueWait)
		if err != nil {
			<-sem
			if ctx.Err() != nil {
				continue
			}
			slog.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(p.config.ErrorBackoff):
			}
			continue
		}
		if !ok {
			<-sem
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			tctx := context.WithoutCancel(ctx)
			p.process(tctx, task)
			if err := p.queue.Ack(tctx, task); err != nil {
				slog.Error("ack failed", "job_uid", task.JobUID, "error", err)
			}
		}()
	}
}

// Done is closed once Run has returned.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

func (p *Pool) process(ctx context.Context, task models.Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while running job", "error", r, "job_uid", task.JobUID)
			err := p.store.UpdateJobStatus(ctx, task.JobUID, models.JobStatusError,
				store.WithErrorMessage(fmt.Sprintf("panic: %v", r)))
			if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
				slog.Error("marking job as error failed", "job_uid", task.JobUID, "error", err)
			}
		}
	}()

	slog.Info("running job", "job_uid", task.JobUID)
	if err := p.runner.Run(ctx, task); err != nil {
		slog.Error("job run failed", "job_uid", task.JobUID, "error", err)
	}
}
