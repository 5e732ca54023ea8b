// Package orchestrator drives one job from Queued to a terminal state: it
// asks the engine for every requested conformation, stores and scores each
// produced structure and finally completes or fails the job.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/engine"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/notify"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/observability"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/render"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/storage"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store"
	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/google/uuid"
)

var (
	ErrRetriesExhausted = errors.New("engine retries exhausted")
	ErrPollTimeout      = errors.New("engine timeout")
	ErrNotRunnable      = errors.New("job is not queued")
	ErrBadInput         = errors.New("stored input structure is malformed")
)

// Settings bound the engine interaction of one job.
type Settings struct {
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
	Retention    time.Duration
	StatusTTL    time.Duration
}

// DefaultSettings returns the values used when the configuration leaves a
// field unset.
func DefaultSettings() Settings {
	return Settings{
		MaxRetries:   3,
		RetryDelay:   5 * time.Second,
		PollInterval: 5 * time.Second,
		PollTimeout:  30 * time.Minute,
		Retention:    14 * 24 * time.Hour,
		StatusTTL:    30 * time.Minute,
	}
}

// Deps are the collaborators of an Orchestrator. Renderer, Notifier and
// Metrics may be nil.
type Deps struct {
	Store     store.Store
	Cache     cache.Cache
	Engine    engine.Client
	Files     *storage.Files
	Renderer  render.Renderer
	Notifier  notify.Notifier
	Validator *rna.Validator
	Metrics   *observability.Metrics
}

// Orchestrator runs queued jobs. One Orchestrator may serve many workers but
// a single job must only be run by one of them at a time.
type Orchestrator struct {
	Deps
	settings Settings
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSleep replaces the context-aware sleep used between retries and polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func New(deps Deps, settings Settings, opts ...Option) *Orchestrator {
	def := DefaultSettings()
	if settings.MaxRetries < 1 {
		settings.MaxRetries = def.MaxRetries
	}
	if settings.PollTimeout <= 0 {
		settings.PollTimeout = def.PollTimeout
	}
	if settings.StatusTTL <= 0 {
		settings.StatusTTL = def.StatusTTL
	}
	if deps.Renderer == nil {
		deps.Renderer = render.Disabled{}
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewNoopMetrics()
	}
	o := &Orchestrator{
		Deps:     deps,
		settings: settings,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run processes task. Completed and Error jobs are left untouched. A job
// found Running was redelivered and resumes after its last stored result.
// Any failure moves the job to Error; results stored before the failure are
// kept.
func (o *Orchestrator) Run(ctx context.Context, task models.Task) error {
	started := o.now()

	job, err := o.Store.GetJob(ctx, task.JobUID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", task.JobUID, err)
	}

	switch job.Status {
	case models.JobStatusCompleted, models.JobStatusError:
		slog.Info("job already finished, skipping", "job_uid", job.UID, "status", job.Status)
		o.Metrics.RecordJob(ctx, observability.OutcomeSkipped, job.AlternativeConformations, 0)
		return nil
	case models.JobStatusSubmitted:
		return fmt.Errorf("job %s: %w", job.UID, ErrNotRunnable)
	case models.JobStatusQueued:
		if err := o.Store.UpdateJobStatus(ctx, job.UID, models.JobStatusRunning); err != nil {
			return o.fail(ctx, job, started, fmt.Errorf("mark running: %w", err))
		}
		job.Status = models.JobStatusRunning
		o.mirrorStatus(ctx, job.UID, models.JobStatusRunning)
	case models.JobStatusRunning:
		slog.Warn("job redelivered while running, resuming", "job_uid", job.UID)
	}

	if err := o.conformations(ctx, job); err != nil {
		return o.fail(ctx, job, started, err)
	}
	if err := o.complete(ctx, job, task.ExampleNumber != nil); err != nil {
		return o.fail(ctx, job, started, err)
	}

	o.Metrics.RecordJob(ctx, observability.OutcomeCompleted, job.AlternativeConformations, o.now().Sub(started))
	slog.Info("job completed", "job_uid", job.UID, "conformations", job.AlternativeConformations)
	return nil
}

func (o *Orchestrator) conformations(ctx context.Context, job *models.Job) error {
	seq, db, ok := strings.Cut(job.InputStructure, "\n")
	if !ok || seq == "" {
		return ErrBadInput
	}
	target, err := o.Validator.Pairs(seq, db)
	if err != nil {
		return fmt.Errorf("input pairs: %w", err)
	}

	done, err := o.Store.CountJobResults(ctx, job.UID)
	if err != nil {
		return fmt.Errorf("count results: %w", err)
	}

	for i := done; i < job.AlternativeConformations; i++ {
		seed := job.Seed + i
		result, err := o.conformation(ctx, job, seq, db, seed, target)
		if err != nil {
			return fmt.Errorf("conformation %d (seed %d): %w", i+1, seed, err)
		}
		if err := o.Store.CreateJobResult(ctx, result); err != nil {
			return fmt.Errorf("store result for seed %d: %w", seed, err)
		}
		slog.Info("conformation stored", "job_uid", job.UID, "seed", seed,
			"f1", *result.F1, "inf", *result.INF, "processing_time", result.ProcessingTime)
	}

	count, err := o.Store.CountJobResults(ctx, job.UID)
	if err != nil {
		return fmt.Errorf("count results: %w", err)
	}
	if count == job.AlternativeConformations {
		if err := o.Store.FinalizeProcessingTime(ctx, job.UID); err != nil {
			return fmt.Errorf("finalize processing time: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) conformation(ctx context.Context, job *models.Job, seq, db string, seed int, target rna.PairSet) (*models.JobResult, error) {
	start := o.now()

	out, err := o.attempt(ctx, job.UID, seed)
	if err != nil {
		return nil, err
	}

	raw, err := o.Files.TakeEngineStructure(out.JSONFilePath)
	if err != nil {
		return nil, err
	}
	produced, err := rna.Realign(db, raw)
	if err != nil {
		return nil, fmt.Errorf("realign engine structure: %w", err)
	}

	dotseq := o.Files.DotseqPath(job.UID, seed)
	if err := storage.WriteDotseq(dotseq, job.JobName,
		rna.ApplySeparator(seq, job.StrandSeparator),
		rna.ApplySeparator(produced, job.StrandSeparator)); err != nil {
		return nil, err
	}

	svg := o.Files.SVGPath(job.UID, seed)
	if err := o.Renderer.Secondary(ctx, seq, produced, svg); err != nil {
		o.renderFailed(ctx, job.UID, seed, "secondary", err)
		svg = ""
	}
	arc := o.Files.ArcPath(job.UID, seed)
	if err := o.Renderer.Arc(ctx, db, produced, arc); err != nil {
		o.renderFailed(ctx, job.UID, seed, "arc", err)
		arc = ""
	}

	model, err := o.Validator.Pairs(seq, produced)
	if err != nil {
		return nil, fmt.Errorf("produced pairs: %w", err)
	}
	acc := rna.Score(target, model)

	finished := o.now()
	return &models.JobResult{
		ID:                     uuid.New(),
		JobUID:                 job.UID,
		Seed:                   seed,
		TertiaryStructurePath:  out.PDBFilePath,
		SecondaryStructurePath: dotseq,
		SecondarySVGPath:       svg,
		ArcDiagramPath:         arc,
		F1:                     &acc.F1,
		INF:                    &acc.INF,
		ProcessingTime:         finished.Sub(start),
		CompletedAt:            finished.UTC(),
	}, nil
}

func (o *Orchestrator) renderFailed(ctx context.Context, uid uuid.UUID, seed int, kind string, err error) {
	if errors.Is(err, render.ErrDisabled) {
		return
	}
	o.Metrics.RecordRenderFailure(ctx, kind)
	slog.Warn("rendering failed", "job_uid", uid, "seed", seed, "kind", kind, "error", err)
}

func (o *Orchestrator) complete(ctx context.Context, job *models.Job, example bool) error {
	seq, db, _ := strings.Cut(job.InputStructure, "\n")
	input := rna.ApplySeparator(seq, job.StrandSeparator) + "\n" + rna.ApplySeparator(db, job.StrandSeparator)

	var expires *time.Time
	if !example {
		t := o.now().Add(o.settings.Retention).UTC()
		expires = &t
	}
	if err := o.Store.CompleteJob(ctx, job.UID, input, expires); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	job.Status = models.JobStatusCompleted
	job.InputStructure = input
	job.ExpiresAt = expires
	o.mirrorStatus(ctx, job.UID, models.JobStatusCompleted)

	if o.Notifier != nil {
		if err := o.Notifier.JobFinished(ctx, job); err != nil {
			slog.Warn("job finished notification failed", "job_uid", job.UID, "error", err)
		}
	}
	return nil
}

// fail marks the job Error and returns cause. The status update runs even if
// ctx was cancelled.
func (o *Orchestrator) fail(ctx context.Context, job *models.Job, started time.Time, cause error) error {
	slog.Error("job failed", "job_uid", job.UID, "error", cause)

	uctx := context.WithoutCancel(ctx)
	if err := o.Store.UpdateJobStatus(uctx, job.UID, models.JobStatusError,
		store.WithErrorMessage(cause.Error())); err != nil {
		slog.Error("marking job as error failed", "job_uid", job.UID, "error", err)
	} else {
		o.mirrorStatus(uctx, job.UID, models.JobStatusError)
	}
	o.Metrics.RecordJob(uctx, observability.OutcomeError, job.AlternativeConformations, o.now().Sub(started))
	return cause
}

func (o *Orchestrator) mirrorStatus(ctx context.Context, uid uuid.UUID, status string) {
	if o.Cache == nil {
		return
	}
	if err := o.Cache.SetJobStatus(ctx, uid, status, o.settings.StatusTTL); err != nil {
		slog.Warn("caching job status failed", "job_uid", uid, "status", status, "error", err)
	}
}
