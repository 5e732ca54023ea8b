// Package queuetest provides an in-memory queue.Queue for tests.
package queuetest

import (
	"context"
	"sync"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/queue"
	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
)

// Memory is a FIFO queue. EnqueueErr, when set, makes Enqueue fail.
type Memory struct {
	mu       sync.Mutex
	tasks    []models.Task
	inFlight []models.Task
	notify   chan struct{}

	EnqueueErr error
}

func NewMemory() *Memory {
	return &Memory{notify: make(chan struct{}, 1)}
}

var _ queue.Queue = (*Memory)(nil)

func (m *Memory) Enqueue(_ context.Context, task models.Task) error {
	m.mu.Lock()
	if m.EnqueueErr != nil {
		m.mu.Unlock()
		return m.EnqueueErr
	}
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

func (m *Memory) Dequeue(ctx context.Context, wait time.Duration) (models.Task, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		m.mu.Lock()
		if len(m.tasks) > 0 {
			t := m.tasks[0]
			m.tasks = m.tasks[1:]
			m.inFlight = append(m.inFlight, t)
			m.mu.Unlock()
			return t, true, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.Task{}, false, ctx.Err()
		case <-timer.C:
			return models.Task{}, false, nil
		case <-m.notify:
		}
	}
}

func (m *Memory) Ack(_ context.Context, task models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.inFlight {
		if t.JobUID == task.JobUID {
			m.inFlight = append(m.inFlight[:i], m.inFlight[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Recover(context.Context) (int, error) {
	m.mu.Lock()
	n := len(m.inFlight)
	m.tasks = append(m.inFlight, m.tasks...)
	m.inFlight = nil
	m.mu.Unlock()
	if n > 0 {
		select {
		case m.notify <- struct{}{}:
		default:
		}
	}
	return n, nil
}

func (m *Memory) Len(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.tasks)), nil
}

// Tasks returns the tasks not yet dequeued.
func (m *Memory) Tasks() []models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Task(nil), m.tasks...)
}

// InFlight returns the dequeued tasks not yet acknowledged.
func (m *Memory) InFlight() []models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Task(nil), m.inFlight...)
}
