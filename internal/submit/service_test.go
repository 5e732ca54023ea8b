package submit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache/cachetest"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/queue/queuetest"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/storage"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store/storetest"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/uidhash"
	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *Service
	store *storetest.Memory
	cache *cachetest.Memory
	queue *queuetest.Memory
	files *storage.Files
}

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	files, err := storage.New(t.TempDir())
	require.NoError(t, err)
	v, err := rna.NewValidator(rna.DefaultConfig())
	require.NoError(t, err)

	f := &fixture{
		store: storetest.NewMemory(),
		cache: cachetest.NewMemory(),
		queue: queuetest.NewMemory(),
		files: files,
	}
	f.svc = NewService(Deps{
		Store:     f.store,
		Cache:     f.cache,
		Queue:     f.queue,
		Files:     files,
		Validator: v,
	}, 10*time.Minute,
		WithClock(func() time.Time { return fixedNow }),
		WithSeedSource(func() int { return 777 }))
	return f
}

func intPtr(n int) *int { return &n }

// --- Validate ---

func TestValidate_Outcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.svc.Validate(ctx, ">x\nAGC UUU\n(.. ..)")
	v, ok := out.(rna.Validated)
	require.True(t, ok)
	assert.False(t, v.FixSuggested)
	assert.Equal(t, "(.. ..)", v.Repaired)

	out = f.svc.Validate(ctx, ">x\nUGC UUU\n(.. ..)")
	v, ok = out.(rna.Validated)
	require.True(t, ok)
	assert.True(t, v.FixSuggested)
	assert.Equal(t, []rna.Pair{{I: 0, J: 6}}, v.IncorrectPairs)

	_, ok = f.svc.Validate(ctx, ">a\nGC\n()\nGC\n()").(rna.ParseFailed)
	assert.True(t, ok)

	_, ok = f.svc.Validate(ctx, "GXC\n(.)").(rna.ValidationFailed)
	assert.True(t, ok)
}

func TestValidate_Memoized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := ">x\nGGGAAACCC\n(((...)))"

	first := f.svc.Validate(ctx, raw)
	_, found, err := f.cache.Get(ctx, cache.ValidationKey(raw))
	require.NoError(t, err)
	assert.True(t, found)

	// a cached entry is served without re-validating
	f.svc.Validator = nil
	second := f.svc.Validate(ctx, raw)
	assert.Equal(t, first, second)
}

func TestValidate_CacheErrorsIgnored(t *testing.T) {
	f := newFixture(t)
	f.cache.Err = errors.New("redis down")

	_, ok := f.svc.Validate(context.Background(), "GGGAAACCC\n(((...)))").(rna.Validated)
	assert.True(t, ok)
}

func TestMemo_RoundTrip(t *testing.T) {
	v, err := rna.NewValidator(rna.DefaultConfig())
	require.NoError(t, err)
	for _, raw := range []string{
		">x\nUGC UUU\n(.. ..)",
		">a\nGC\n()\nGC\n()",
		"GXC\n(.]",
		"",
	} {
		out := rna.Check(raw, v)
		b, err := encodeOutcome(out)
		require.NoError(t, err)
		got, err := decodeOutcome(b)
		require.NoError(t, err)
		assert.Equal(t, out, got, raw)
	}
}

// --- Submit ---

func TestSubmit_QueuesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Submit(ctx, Params{
		Raw:           ">tsh\nCGCGGAACG-CGGGACGCG\n((((...((-))...))))",
		Email:         "user@example.com",
		Conformations: intPtr(2),
	})
	require.NoError(t, err)

	job := sub.Job
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, "job-20250301-0", job.JobName)
	assert.Equal(t, 777, job.Seed)
	assert.Equal(t, 2, job.AlternativeConformations)
	assert.Equal(t, models.SeparatorHyphen, job.StrandSeparator)
	assert.Equal(t, "CGCGGAACG CGGGACGCG\n((((...(( ))...))))", job.InputStructure)
	assert.Equal(t, uidhash.Hash(job.UID), job.HashedUID)
	require.NotNil(t, job.Email)
	assert.Equal(t, "user@example.com", *job.Email)

	stored, err := f.store.GetJob(ctx, job.UID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, stored.Status)

	assert.Equal(t, []models.Task{{JobUID: job.UID}}, f.queue.Tasks())

	uid, ok, err := f.cache.Get(ctx, cache.JobHashKey(job.HashedUID))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, job.UID.String(), string(uid))
	status, ok, err := f.cache.GetJobStatus(ctx, job.UID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.JobStatusQueued, status)

	name, seq, db, err := storage.ReadDotseq(f.files.InputPath(job.UID))
	require.NoError(t, err)
	assert.Equal(t, "job-20250301-0", name)
	assert.Equal(t, "CGCGGAACG CGGGACGCG", seq)
	assert.Equal(t, "((((...(( ))...))))", db)
}

func TestSubmit_UsesRepairedStructure(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Submit(context.Background(), Params{Raw: ">x\nUGC UUU\n(.. ..)", Seed: intPtr(5)})
	require.NoError(t, err)
	assert.True(t, sub.Validation.FixSuggested)
	assert.Equal(t, "UGC UUU\n... ...", sub.Job.InputStructure)
	assert.Equal(t, 5, sub.Job.Seed)
}

func TestSubmit_FromFile(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Submit(context.Background(), Params{File: "GGGAAACCC\n(((...)))", JobName: "  mine  "})
	require.NoError(t, err)
	assert.Equal(t, "mine", sub.Job.JobName)
	assert.Equal(t, models.SeparatorNone, sub.Job.StrandSeparator)
}

func TestSubmit_DefaultNameCountsToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Submit(ctx, Params{Raw: "GGGAAACCC\n(((...)))"})
		require.NoError(t, err)
	}
	sub, err := f.svc.Submit(ctx, Params{Raw: "GGGAAACCC\n(((...)))"})
	require.NoError(t, err)
	assert.Equal(t, "job-20250301-2", sub.Job.JobName)
}

func TestSubmit_RejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   error
	}{
		{"missing input", Params{}, ErrMissingInput},
		{"blank input", Params{Raw: "  \n"}, ErrMissingInput},
		{"both inputs", Params{Raw: "GC\n()", File: "GC\n()"}, ErrAmbiguousInput},
		{"bad email", Params{Raw: "GC\n()", Email: "not-an-email"}, ErrInvalidEmail},
		{"email without domain dot", Params{Raw: "GC\n()", Email: "a@localhost"}, ErrInvalidEmail},
		{"display name email", Params{Raw: "GC\n()", Email: "Bob <bob@example.com>"}, ErrInvalidEmail},
		{"zero conformations", Params{Raw: "GC\n()", Conformations: intPtr(0)}, ErrInvalidConformations},
		{"six conformations", Params{Raw: "GC\n()", Conformations: intPtr(6)}, ErrInvalidConformations},
		{"negative seed", Params{Raw: "GC\n()", Seed: intPtr(-1)}, ErrInvalidSeed},
		{"huge seed", Params{Raw: "GC\n()", Seed: intPtr(MaxSeed + 1)}, ErrInvalidSeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Submit(context.Background(), tt.params)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.queue.Tasks())
		})
	}
}

func TestSubmit_InvalidStructureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, Params{Raw: "GXC\n(.)"})
	var ise *InvalidStructureError
	require.ErrorAs(t, err, &ise)
	_, ok := ise.Outcome.(rna.ValidationFailed)
	assert.True(t, ok)

	_, err = f.svc.Submit(ctx, Params{Raw: ">a\nGC\n()\nGC\n()"})
	require.ErrorAs(t, err, &ise)
	_, ok = ise.Outcome.(rna.ParseFailed)
	assert.True(t, ok)

	n, err := f.store.CountJobsWithNamePrefix(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.queue.Tasks())
}

func TestSubmit_EnqueueFailureMarksError(t *testing.T) {
	f := newFixture(t)
	f.queue.EnqueueErr = errors.New("redis down")

	sub, err := f.svc.Submit(context.Background(), Params{Raw: "GGGAAACCC\n(((...)))"})
	require.ErrorIs(t, err, ErrEnqueue)
	assert.Nil(t, sub)

	jobs, total, err := f.store.ListJobs(context.Background(), store.JobFilter{Finished: true})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, models.JobStatusError, jobs[0].Status)
	require.NotNil(t, jobs[0].ErrorMessage)
	assert.Contains(t, *jobs[0].ErrorMessage, "redis down")
}

func TestSubmit_CreateFailureRemovesInput(t *testing.T) {
	f := newFixture(t)
	f.store.Fail = func(op string) error {
		if op == "CreateJob" {
			return errors.New("db down")
		}
		return nil
	}

	_, err := f.svc.Submit(context.Background(), Params{Raw: "GGGAAACCC\n(((...)))"})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(f.files.Root(), "engine_inputs"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// --- examples ---

func TestSubmitExample_CreatesOnceThenReuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SubmitExample(ctx, 2, "")
	require.NoError(t, err)
	assert.False(t, first.Existing)
	assert.Equal(t, "example_job_2", first.Job.JobName)
	assert.Equal(t, 2, first.Job.AlternativeConformations)
	assert.Nil(t, first.Job.Email)
	assert.Equal(t, models.SeparatorSpace, first.Job.StrandSeparator)

	tasks := f.queue.Tasks()
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].ExampleNumber)
	assert.Equal(t, 2, *tasks[0].ExampleNumber)

	second, err := f.svc.SubmitExample(ctx, 2, "")
	require.NoError(t, err)
	assert.True(t, second.Existing)
	assert.Equal(t, first.Job.UID, second.Job.UID)
	assert.Len(t, f.queue.Tasks(), 1)
}

func TestSubmitExample_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SubmitExample(context.Background(), 99, "")
	assert.ErrorIs(t, err, ErrUnknownExample)
}

func TestSubmitExample_CustomStructure(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.SubmitExample(context.Background(), 99, "GGGAAACCC\n(((...)))")
	require.NoError(t, err)
	assert.Equal(t, "example_job_99", sub.Job.JobName)
	assert.Equal(t, 777, sub.Job.Seed)
}

func TestExamples_AllValidate(t *testing.T) {
	v, err := rna.NewValidator(rna.DefaultConfig())
	require.NoError(t, err)
	list := Examples()
	require.Len(t, list, 3)
	for i, ex := range list {
		assert.Equal(t, i+1, ex.Number)
		out, ok := rna.Check(ex.Raw, v).(rna.Validated)
		require.True(t, ok, ex.Name)
		assert.NotEmpty(t, out.Pairs, ex.Name)
	}
}

// --- Suggest ---

func TestSuggest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.svc.Suggest(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, &Suggestion{Seed: 777, JobName: "job-20250301-0", Conformations: 1}, s)

	s, err = f.svc.Suggest(ctx, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, "example_job_1", s.JobName)
	require.NotNil(t, s.Example)
	assert.Equal(t, 1, s.Example.Number)

	_, err = f.svc.Suggest(ctx, intPtr(42))
	assert.ErrorIs(t, err, ErrUnknownExample)
}
