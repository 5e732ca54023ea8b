package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/api/response"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/storage"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store"
	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// JobReader is the read side of the store used by the job endpoints.
type JobReader interface {
	GetJobByHash(ctx context.Context, hashedUID string) (*models.Job, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
	ListJobResults(ctx context.Context, jobUID uuid.UUID) ([]*models.JobResult, error)
}

type jobView struct {
	UIDH                     string     `json:"uidh"`
	JobName                  string     `json:"job_name"`
	Status                   string     `json:"status"`
	InputStructure           string     `json:"input_structure"`
	Seed                     int        `json:"seed"`
	AlternativeConformations int        `json:"alternative_conformations"`
	ErrorMessage             *string    `json:"error_message,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
	ExpiresAt                *time.Time `json:"expires_at,omitempty"`
	SumProcessingTime        *float64   `json:"sum_processing_time,omitempty"`
}

type resultView struct {
	Seed                  int       `json:"seed"`
	TertiaryStructure     string    `json:"tertiary_structure"`
	SecondaryStructure    string    `json:"secondary_structure"`
	SecondaryStructureSVG string    `json:"secondary_structure_svg,omitempty"`
	ArcDiagram            string    `json:"arc_diagram,omitempty"`
	F1                    *float64  `json:"f1"`
	INF                   *float64  `json:"inf"`
	ProcessingTime        float64   `json:"processing_time"`
	CompletedAt           time.Time `json:"completed_at"`
}

func newJobView(j *models.Job) jobView {
	v := jobView{
		UIDH:                     j.HashedUID,
		JobName:                  j.JobName,
		Status:                   j.Status,
		InputStructure:           rna.ApplySeparator(j.InputStructure, j.StrandSeparator),
		Seed:                     j.Seed,
		AlternativeConformations: j.AlternativeConformations,
		ErrorMessage:             j.ErrorMessage,
		CreatedAt:                j.CreatedAt,
		ExpiresAt:                j.ExpiresAt,
	}
	if j.SumProcessingTime != nil {
		secs := j.SumProcessingTime.Seconds()
		v.SumProcessingTime = &secs
	}
	return v
}

func newResultView(r *models.JobResult, files *storage.Files) resultView {
	return resultView{
		Seed:                  r.Seed,
		TertiaryStructure:     files.Rel(r.TertiaryStructurePath),
		SecondaryStructure:    files.Rel(r.SecondaryStructurePath),
		SecondaryStructureSVG: files.Rel(r.SecondarySVGPath),
		ArcDiagram:            files.Rel(r.ArcDiagramPath),
		F1:                    r.F1,
		INF:                   r.INF,
		ProcessingTime:        r.ProcessingTime.Seconds(),
		CompletedAt:           r.CompletedAt,
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs/active
// or, with finished set, GET /api/v1/jobs/finished.
func NewListJobsHandler(jobs JobReader, finished bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, err := pagination(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		list, total, err := jobs.ListJobs(r.Context(), store.JobFilter{Finished: finished, Page: page, Limit: limit})
		if err != nil {
			slog.Error("listing jobs failed", "finished", finished, "error", err)
			response.Internal(w)
			return
		}

		views := make([]jobView, len(list))
		for i, j := range list {
			views[i] = newJobView(j)
		}
		response.Collection(w, views, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{uidh}.
func NewGetJobHandler(jobs JobReader, files *storage.Files) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(w, r, jobs)
		if !ok {
			return
		}

		results, err := jobs.ListJobResults(r.Context(), job.UID)
		if err != nil {
			slog.Error("listing results failed", "job_uid", job.UID, "error", err)
			response.Internal(w)
			return
		}

		views := make([]resultView, len(results))
		for i, res := range results {
			views[i] = newResultView(res, files)
		}
		response.JSON(w, map[string]any{
			"job":     newJobView(job),
			"results": views,
		})
	}
}

// NewJobStatusHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{uidh}/status. The status is read from the cache when the
// submission or the worker left it there, and from the store otherwise.
func NewJobStatusHandler(jobs JobReader, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uidh := chi.URLParam(r, "uidh")

		if status, ok := cachedStatus(r.Context(), c, uidh); ok {
			response.JSON(w, map[string]string{"uidh": uidh, "status": status})
			return
		}

		job, ok := lookupJob(w, r, jobs)
		if !ok {
			return
		}
		response.JSON(w, map[string]string{"uidh": job.HashedUID, "status": job.Status})
	}
}

func cachedStatus(ctx context.Context, c cache.Cache, uidh string) (string, bool) {
	if c == nil {
		return "", false
	}
	b, ok, err := c.Get(ctx, cache.JobHashKey(uidh))
	if err != nil || !ok {
		return "", false
	}
	uid, err := uuid.ParseBytes(b)
	if err != nil {
		return "", false
	}
	status, ok, err := c.GetJobStatus(ctx, uid)
	if err != nil || !ok {
		return "", false
	}
	return status, true
}

// NewArchiveHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{uidh}/archive: a zip of the input and every artifact of
// a completed job.
func NewArchiveHandler(jobs JobReader, files *storage.Files) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(w, r, jobs)
		if !ok {
			return
		}
		if job.Status != models.JobStatusCompleted {
			response.Error(w, http.StatusConflict, "JOB_NOT_COMPLETED",
				"The job has not completed", map[string]string{"status": job.Status})
			return
		}

		results, err := jobs.ListJobResults(r.Context(), job.UID)
		if err != nil {
			slog.Error("listing results failed", "job_uid", job.UID, "error", err)
			response.Internal(w)
			return
		}

		paths := []string{files.InputPath(job.UID)}
		for _, res := range results {
			paths = append(paths, res.Paths()...)
		}

		var buf bytes.Buffer
		if err := files.WriteArchive(&buf, paths); err != nil {
			slog.Error("building archive failed", "job_uid", job.UID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"The archive could not be built", nil)
			return
		}

		response.Attachment(w, "application/zip", job.JobName+".zip", buf.Bytes())
	}
}

// lookupJob resolves the {uidh} path parameter, writing the error response
// when it fails.
func lookupJob(w http.ResponseWriter, r *http.Request, jobs JobReader) (*models.Job, bool) {
	uidh := chi.URLParam(r, "uidh")
	job, err := jobs.GetJobByHash(r.Context(), uidh)
	switch {
	case err == nil:
		return job, true
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
	default:
		slog.Error("loading job failed", "uidh", uidh, "error", err)
		response.Internal(w)
	}
	return nil, false
}
