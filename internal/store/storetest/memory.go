// Package storetest provides an in-memory store.Store for tests of the
// packages built on top of the store.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store"
	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/google/uuid"
)

// Memory implements store.Store with the same transition rules as the
// Postgres store. Fail, when set, is consulted before every operation and
// its error returned instead.
type Memory struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.Job
	results  map[uuid.UUID][]*models.JobResult
	examples map[int]uuid.UUID

	Fail func(op string) error
}

func NewMemory() *Memory {
	return &Memory{
		jobs:     make(map[uuid.UUID]*models.Job),
		results:  make(map[uuid.UUID][]*models.JobResult),
		examples: make(map[int]uuid.UUID),
	}
}

var _ store.Store = (*Memory)(nil)

func (m *Memory) fail(op string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op)
}

func (m *Memory) Ping(context.Context) error { return m.fail("Ping") }

func (m *Memory) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateJob"); err != nil {
		return err
	}
	for _, j := range m.jobs {
		if j.UID == job.UID || j.HashedUID == job.HashedUID {
			return store.ErrDuplicateKey
		}
	}
	cp := *job
	m.jobs[job.UID] = &cp
	return nil
}

func (m *Memory) GetJob(_ context.Context, uid uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetJob"); err != nil {
		return nil, err
	}
	j, ok := m.jobs[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *Memory) GetJobByHash(_ context.Context, hashedUID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetJobByHash"); err != nil {
		return nil, err
	}
	for _, j := range m.jobs {
		if j.HashedUID == hashedUID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) UpdateJobStatus(_ context.Context, uid uuid.UUID, status string, opts ...store.JobUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateJobStatus"); err != nil {
		return err
	}
	j, ok := m.jobs[uid]
	if !ok {
		return store.ErrNotFound
	}
	if !store.CanTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, j.Status, status)
	}
	p := store.ApplyJobUpdateOptions(opts...)
	j.Status = status
	j.UpdatedAt = time.Now().UTC()
	if p.ErrorMessage != nil {
		msg := *p.ErrorMessage
		j.ErrorMessage = &msg
	}
	if p.InputStructure != nil {
		j.InputStructure = *p.InputStructure
	}
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		j.ExpiresAt = &t
	}
	return nil
}

func (m *Memory) CompleteJob(ctx context.Context, uid uuid.UUID, input string, expiresAt *time.Time) error {
	opts := []store.JobUpdateOption{store.WithInputStructure(input)}
	if expiresAt != nil {
		opts = append(opts, store.WithExpiresAt(*expiresAt))
	}
	if err := m.fail("CompleteJob"); err != nil {
		return err
	}
	return m.UpdateJobStatus(ctx, uid, models.JobStatusCompleted, opts...)
}

func (m *Memory) FinalizeProcessingTime(_ context.Context, uid uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FinalizeProcessingTime"); err != nil {
		return err
	}
	j, ok := m.jobs[uid]
	if !ok {
		return store.ErrNotFound
	}
	var sum time.Duration
	for _, r := range m.results[uid] {
		sum += r.ProcessingTime.Truncate(time.Microsecond)
	}
	j.SumProcessingTime = &sum
	return nil
}

func (m *Memory) ListJobs(_ context.Context, filter store.JobFilter) ([]*models.Job, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListJobs"); err != nil {
		return nil, 0, err
	}
	var matched []*models.Job
	for _, j := range m.jobs {
		if j.Terminal() == filter.Finished {
			cp := *j
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(a, b int) bool { return matched[a].CreatedAt.After(matched[b].CreatedAt) })

	limit, page := filter.Limit, filter.Page
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))
	return append([]*models.Job{}, matched[start:end]...), len(matched), nil
}

func (m *Memory) CountJobsWithNamePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CountJobsWithNamePrefix"); err != nil {
		return 0, err
	}
	n := 0
	for _, j := range m.jobs {
		if strings.HasPrefix(j.JobName, prefix) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateJobResult(_ context.Context, r *models.JobResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateJobResult"); err != nil {
		return err
	}
	if _, ok := m.jobs[r.JobUID]; !ok {
		return fmt.Errorf("create job result: job %s does not exist", r.JobUID)
	}
	for _, existing := range m.results[r.JobUID] {
		if existing.Seed == r.Seed {
			return store.ErrDuplicateKey
		}
	}
	cp := *r
	m.results[r.JobUID] = append(m.results[r.JobUID], &cp)
	return nil
}

func (m *Memory) ListJobResults(_ context.Context, jobUID uuid.UUID) ([]*models.JobResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListJobResults"); err != nil {
		return nil, err
	}
	out := []*models.JobResult{}
	for _, r := range m.results[jobUID] {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seed < out[b].Seed })
	return out, nil
}

func (m *Memory) CountJobResults(_ context.Context, jobUID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CountJobResults"); err != nil {
		return 0, err
	}
	return len(m.results[jobUID]), nil
}

func (m *Memory) GetExampleJob(ctx context.Context, exampleID int) (*models.Job, error) {
	m.mu.Lock()
	uid, ok := m.examples[exampleID]
	m.mu.Unlock()
	if err := m.fail("GetExampleJob"); err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.GetJob(ctx, uid)
}

func (m *Memory) SetExampleJob(_ context.Context, exampleID int, jobUID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetExampleJob"); err != nil {
		return err
	}
	m.examples[exampleID] = jobUID
	return nil
}

func (m *Memory) DeleteExpiredJobs(_ context.Context, now time.Time) ([]store.ExpiredJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteExpiredJobs"); err != nil {
		return nil, err
	}
	var expired []store.ExpiredJob
	for uid, j := range m.jobs {
		if j.ExpiresAt == nil || !j.ExpiresAt.Before(now) {
			continue
		}
		e := store.ExpiredJob{UID: uid, HashedUID: j.HashedUID}
		for _, r := range m.results[uid] {
			e.Paths = append(e.Paths, r.Paths()...)
		}
		expired = append(expired, e)
		delete(m.jobs, uid)
		delete(m.results, uid)
		for id, ex := range m.examples {
			if ex == uid {
				delete(m.examples, id)
			}
		}
	}
	return expired, nil
}

// Put stores job as-is, bypassing the transition table.
func (m *Memory) Put(job *models.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.UID] = &cp
}

// Results returns the stored results of a job in insertion order.
func (m *Memory) Results(jobUID uuid.UUID) []*models.JobResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.JobResult(nil), m.results[jobUID]...)
}
