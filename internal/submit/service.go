// Package submit turns user input into queued jobs.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/mail"
	"strings"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/observability"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/queue"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/storage"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/uidhash"
	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/google/uuid"
)

// Sentinel errors for rejected submissions.
var (
	ErrMissingInput         = errors.New("missing RNA data")
	ErrAmbiguousInput       = errors.New("RNA can be sent as text or as a file, not both")
	ErrInvalidEmail         = errors.New("incorrect email format")
	ErrInvalidSeed          = errors.New("seed out of range")
	ErrInvalidConformations = errors.New("alternative_conformations must be between 1 and 5")
	ErrJobNameTooLong       = errors.New("job name too long")
	ErrUnknownExample       = errors.New("unknown example")
	ErrEnqueue              = errors.New("could not queue job")
)

const (
	// MaxSeed keeps seed+i inside a Postgres INTEGER for every conformation.
	MaxSeed       = 1<<31 - 1 - models.MaxAlternativeConformations
	randomSeedMax = 1_000_000_000
	maxJobName    = 255

	statusTTL = 30 * time.Minute
	hashTTL   = 24 * time.Hour
)

// InvalidStructureError carries the outcome of a structure that could not be
// accepted. Outcome is rna.ParseFailed or rna.ValidationFailed.
type InvalidStructureError struct {
	Outcome rna.Outcome
}

func (e *InvalidStructureError) Error() string {
	return "invalid structure: " + strings.Join(rna.Messages(e.Outcome), "; ")
}

// Params is a job submission. Exactly one of Raw and File must be set.
type Params struct {
	Raw           string
	File          string
	JobName       string
	Email         string
	Seed          *int
	Conformations *int
}

// Submission is an accepted job together with its validation outcome.
type Submission struct {
	Job        *models.Job
	Validation rna.Validated
	Existing   bool
}

// Suggestion pre-fills the submission form.
type Suggestion struct {
	Seed          int      `json:"seed"`
	JobName       string   `json:"job_name"`
	Conformations int      `json:"alternative_conformations"`
	Example       *Example `json:"example,omitempty"`
}

type Deps struct {
	Store     store.Store
	Cache     cache.Cache
	Queue     queue.Queue
	Files     *storage.Files
	Validator *rna.Validator
	Metrics   *observability.Metrics
}

// Service validates and submits jobs.
type Service struct {
	Deps
	memoTTL time.Duration
	now     func() time.Time
	seed    func() int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSeedSource replaces the random default seed.
func WithSeedSource(seed func() int) Option {
	return func(s *Service) { s.seed = seed }
}

// NewService creates a Service. Validation outcomes are memoized for
// memoTTL; zero disables the memo.
func NewService(deps Deps, memoTTL time.Duration, opts ...Option) *Service {
	if deps.Metrics == nil {
		deps.Metrics = observability.NewNoopMetrics()
	}
	s := &Service{
		Deps:    deps,
		memoTTL: memoTTL,
		now:     time.Now,
		seed:    func() int { return rand.IntN(randomSeedMax) + 1 },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate parses and validates raw input.
func (s *Service) Validate(ctx context.Context, raw string) rna.Outcome {
	key := cache.ValidationKey(raw)
	if s.memoTTL > 0 && s.Cache != nil {
		if b, ok, err := s.Cache.Get(ctx, key); err == nil && ok {
			if out, err := decodeOutcome(b); err == nil {
				s.Metrics.RecordValidation(ctx, outcomeLabel(out))
				return out
			}
		}
	}

	out := rna.Check(raw, s.Validator)
	s.Metrics.RecordValidation(ctx, outcomeLabel(out))

	if s.memoTTL > 0 && s.Cache != nil {
		b, err := encodeOutcome(out)
		if err == nil {
			err = s.Cache.Set(ctx, key, b, s.memoTTL)
		}
		if err != nil {
			slog.Debug("validation memo not stored", "error", err)
		}
	}
	return out
}

func outcomeLabel(o rna.Outcome) string {
	switch out := o.(type) {
	case rna.ParseFailed:
		return "parse_failed"
	case rna.ValidationFailed:
		return "validation_failed"
	case rna.Validated:
		if out.FixSuggested {
			return "fix_suggested"
		}
		return "validated"
	default:
		return "unknown"
	}
}

// Submit validates p and queues a job for it. Invalid structures are
// returned as *InvalidStructureError and leave no trace in the store.
func (s *Service) Submit(ctx context.Context, p Params) (*Submission, error) {
	raw, err := pickInput(p.Raw, p.File)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	seed, err := s.pickSeed(p.Seed)
	if err != nil {
		return nil, err
	}
	conformations := 1
	if p.Conformations != nil {
		conformations = *p.Conformations
	}
	if conformations < 1 || conformations > models.MaxAlternativeConformations {
		return nil, ErrInvalidConformations
	}
	name := strings.TrimSpace(p.JobName)
	if len(name) > maxJobName {
		return nil, ErrJobNameTooLong
	}

	validated, err := s.accept(ctx, raw)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if name, err = s.nextJobName(ctx); err != nil {
			return nil, err
		}
	}

	job, err := s.create(ctx, draft{
		name:          name,
		email:         email,
		seed:          seed,
		conformations: conformations,
		validated:     validated,
	})
	if err != nil {
		return nil, err
	}
	return &Submission{Job: job, Validation: validated}, nil
}

// SubmitExample returns the shared job of example n, creating and queueing
// it on first use. raw, when not empty, replaces the built-in structure of
// the example. Example jobs store no email and never expire.
func (s *Service) SubmitExample(ctx context.Context, n int, raw string) (*Submission, error) {
	existing, err := s.Store.GetExampleJob(ctx, n)
	switch {
	case err == nil:
		return &Submission{Job: existing, Existing: true}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("look up example %d: %w", n, err)
	}

	ex, ok := LookupExample(n)
	if !ok && raw == "" {
		return nil, ErrUnknownExample
	}
	if !ok {
		ex = Example{Number: n, Name: fmt.Sprintf("example_job_%d", n), Seed: s.seed(), Conformations: 1}
	}
	if raw == "" {
		raw = ex.Raw
	}

	validated, err := s.accept(ctx, raw)
	if err != nil {
		return nil, err
	}
	job, err := s.create(ctx, draft{
		name:          ex.Name,
		seed:          ex.Seed,
		conformations: ex.Conformations,
		validated:     validated,
		example:       &n,
	})
	if err != nil {
		return nil, err
	}
	return &Submission{Job: job, Validation: validated}, nil
}

// Suggest returns a fresh seed and the next default job name, or the
// settings of example n when n is given.
func (s *Service) Suggest(ctx context.Context, n *int) (*Suggestion, error) {
	if n != nil {
		ex, ok := LookupExample(*n)
		if !ok {
			return nil, ErrUnknownExample
		}
		return &Suggestion{Seed: ex.Seed, JobName: ex.Name, Conformations: ex.Conformations, Example: &ex}, nil
	}
	name, err := s.nextJobName(ctx)
	if err != nil {
		return nil, err
	}
	return &Suggestion{Seed: s.seed(), JobName: name, Conformations: 1}, nil
}

func pickInput(raw, file string) (string, error) {
	hasRaw, hasFile := strings.TrimSpace(raw) != "", strings.TrimSpace(file) != ""
	switch {
	case hasRaw && hasFile:
		return "", ErrAmbiguousInput
	case hasRaw:
		return raw, nil
	case hasFile:
		return file, nil
	default:
		return "", ErrMissingInput
	}
}

func normalizeEmail(email string) (*string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".") {
		return nil, ErrInvalidEmail
	}
	return &email, nil
}

func (s *Service) pickSeed(seed *int) (int, error) {
	if seed == nil {
		return s.seed(), nil
	}
	if *seed < 0 || *seed > MaxSeed {
		return 0, ErrInvalidSeed
	}
	return *seed, nil
}

// accept validates raw and returns the structure to run, repaired when a
// fix was suggested.
func (s *Service) accept(ctx context.Context, raw string) (rna.Validated, error) {
	out := s.Validate(ctx, raw)
	v, ok := out.(rna.Validated)
	if !ok {
		return rna.Validated{}, &InvalidStructureError{Outcome: out}
	}
	return v, nil
}

func (s *Service) nextJobName(ctx context.Context) (string, error) {
	prefix := "job-" + s.now().UTC().Format("20060102")
	n, err := s.Store.CountJobsWithNamePrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("count jobs: %w", err)
	}
	return fmt.Sprintf("%s-%d", prefix, n), nil
}

type draft struct {
	name          string
	email         *string
	seed          int
	conformations int
	validated     rna.Validated
	example       *int
}

func (s *Service) create(ctx context.Context, d draft) (*models.Job, error) {
	structure := d.validated.Structure
	if d.validated.FixSuggested {
		structure = d.validated.Repaired
	}
	separator := d.validated.Separator
	if separator == "" {
		separator = models.SeparatorNone
	}

	uid := uuid.New()
	if _, err := s.Files.WriteInput(uid, d.name, d.validated.Sequence, structure); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	now := s.now().UTC()
	job := &models.Job{
		UID:                      uid,
		HashedUID:                uidhash.Hash(uid),
		JobName:                  d.name,
		Email:                    d.email,
		InputStructure:           d.validated.Sequence + "\n" + structure,
		StrandSeparator:          separator,
		Seed:                     d.seed,
		AlternativeConformations: d.conformations,
		Status:                   models.JobStatusSubmitted,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.Store.CreateJob(ctx, job); err != nil {
		if rmErr := s.Files.RemoveJobFiles(uid); rmErr != nil {
			slog.Warn("removing orphaned input failed", "job_uid", uid, "error", rmErr)
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.Store.UpdateJobStatus(ctx, uid, models.JobStatusQueued); err != nil {
		return nil, fmt.Errorf("queue job: %w", err)
	}
	job.Status = models.JobStatusQueued

	if d.example != nil {
		if err := s.Store.SetExampleJob(ctx, *d.example, uid); err != nil {
			return nil, s.abandon(ctx, job, fmt.Errorf("link example %d: %w", *d.example, err))
		}
	}

	if err := s.Queue.Enqueue(ctx, models.Task{JobUID: uid, ExampleNumber: d.example}); err != nil {
		return nil, s.abandon(ctx, job, fmt.Errorf("%w: %w", ErrEnqueue, err))
	}
	if s.Cache != nil {
		_ = s.Cache.Set(ctx, cache.JobHashKey(job.HashedUID), []byte(uid.String()), hashTTL)
		_ = s.Cache.SetJobStatus(ctx, uid, models.JobStatusQueued, statusTTL)
	}

	slog.Info("job queued", "job_uid", uid, "job_name", d.name,
		"conformations", d.conformations, "example", d.example != nil)
	return job, nil
}

// abandon moves a queued job that will never run to Error.
func (s *Service) abandon(ctx context.Context, job *models.Job, cause error) error {
	slog.Error("job abandoned", "job_uid", job.UID, "error", cause)
	uctx := context.WithoutCancel(ctx)
	if err := s.Store.UpdateJobStatus(uctx, job.UID, models.JobStatusError,
		store.WithErrorMessage(cause.Error())); err != nil {
		slog.Error("marking job as error failed", "job_uid", job.UID, "error", err)
	}
	job.Status = models.JobStatusError
	return cause
}
