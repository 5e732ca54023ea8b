package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/api/response"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/submit"
	"github.com/go-chi/chi/v5"
)

// Submitter defines the submission operations the handlers depend on.
type Submitter interface {
	Submit(ctx context.Context, p submit.Params) (*submit.Submission, error)
	SubmitExample(ctx context.Context, n int, raw string) (*submit.Submission, error)
	Suggest(ctx context.Context, n *int) (*submit.Suggestion, error)
}

var _ Submitter = (*submit.Service)(nil)

type submissionResponse struct {
	UIDH         string `json:"uidh"`
	JobName      string `json:"job_name"`
	Status       string `json:"status"`
	FixSuggested bool   `json:"fix_suggested"`
}

func newSubmissionResponse(s *submit.Submission) submissionResponse {
	return submissionResponse{
		UIDH:         s.Job.HashedUID,
		JobName:      s.Job.JobName,
		Status:       s.Job.Status,
		FixSuggested: s.Validation.FixSuggested,
	}
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewSubmitHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

		params, err := submitParams(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		sub, err := svc.Submit(r.Context(), params)
		if err != nil {
			writeSubmitError(w, err)
			return
		}
		response.Accepted(w, newSubmissionResponse(sub))
	}
}

func submitParams(r *http.Request) (submit.Params, error) {
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			return submit.Params{}, errors.New("invalid multipart body")
		}
		file, err := readUpload(r)
		if err != nil {
			return submit.Params{}, errors.New("unreadable fasta_file")
		}
		seed, err := formInt(r, "seed")
		if err != nil {
			return submit.Params{}, err
		}
		conformations, err := formInt(r, "alternative_conformations")
		if err != nil {
			return submit.Params{}, err
		}
		return submit.Params{
			Raw:           r.FormValue("fasta_raw"),
			File:          file,
			JobName:       r.FormValue("job_name"),
			Email:         r.FormValue("email"),
			Seed:          seed,
			Conformations: conformations,
		}, nil
	}

	var req struct {
		FastaRaw      string  `json:"fasta_raw"`
		JobName       string  `json:"job_name"`
		Email         string  `json:"email"`
		Seed          flexInt `json:"seed"`
		Conformations flexInt `json:"alternative_conformations"`
	}
	if err := decodeOptional(r, &req); err != nil {
		return submit.Params{}, errors.New("invalid JSON body")
	}
	return submit.Params{
		Raw:           req.FastaRaw,
		JobName:       req.JobName,
		Email:         req.Email,
		Seed:          req.Seed.Value,
		Conformations: req.Conformations.Value,
	}, nil
}

// NewSuggestHandler returns an http.HandlerFunc for GET /api/v1/jobs/suggested.
func NewSuggestHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var n *int
		if v := r.URL.Query().Get("example_number"); v != "" {
			num, err := strconv.Atoi(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"example_number must be an integer", nil)
				return
			}
			n = &num
		}

		suggestion, err := svc.Suggest(r.Context(), n)
		if err != nil {
			writeSubmitError(w, err)
			return
		}
		response.JSON(w, suggestion)
	}
}

// NewExampleHandler returns an http.HandlerFunc for
// POST /api/v1/examples/{exampleNumber}. An example that already has a job
// answers 200 with that job; a new one answers 202.
func NewExampleHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(chi.URLParam(r, "exampleNumber"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"exampleNumber must be an integer", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		var req struct {
			FastaRaw string `json:"fasta_raw"`
		}
		if err := decodeOptional(r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		sub, err := svc.SubmitExample(r.Context(), n, req.FastaRaw)
		if err != nil {
			writeSubmitError(w, err)
			return
		}
		if sub.Existing {
			response.JSON(w, newSubmissionResponse(sub))
			return
		}
		response.Accepted(w, newSubmissionResponse(sub))
	}
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var invalid *submit.InvalidStructureError
	switch {
	case errors.As(err, &invalid):
		writeOutcome(w, invalid.Outcome)
	case errors.Is(err, submit.ErrMissingInput),
		errors.Is(err, submit.ErrAmbiguousInput),
		errors.Is(err, submit.ErrInvalidEmail),
		errors.Is(err, submit.ErrInvalidSeed),
		errors.Is(err, submit.ErrInvalidConformations),
		errors.Is(err, submit.ErrJobNameTooLong):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, submit.ErrUnknownExample):
		response.Error(w, http.StatusNotFound, "EXAMPLE_NOT_FOUND", "Unknown example", nil)
	case errors.Is(err, submit.ErrEnqueue):
		response.Error(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE",
			"The job could not be queued, try again later", nil)
	default:
		slog.Error("submission failed", "error", err)
		response.Internal(w)
	}
}
