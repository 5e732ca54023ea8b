package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/api/response"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
)

// Validator checks a raw structure without creating a job.
type Validator interface {
	Validate(ctx context.Context, raw string) rna.Outcome
}

type validationResponse struct {
	Validated           bool       `json:"validated"`
	FixSuggested        bool       `json:"fix_suggested"`
	Name                string     `json:"name,omitempty"`
	Sequence            string     `json:"sequence"`
	Structure           string     `json:"structure"`
	Repaired            string     `json:"repaired,omitempty"`
	MismatchingBrackets []int      `json:"mismatching_brackets"`
	IncorrectPairs      []rna.Pair `json:"incorrect_pairs"`
}

// NewValidateHandler returns an http.HandlerFunc for POST /api/v1/validate.
// The structure comes as JSON {"fasta_raw": ...} or as a multipart
// fasta_file upload.
func NewValidateHandler(v Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

		var raw, file string
		if isMultipart(r) {
			if err := r.ParseMultipartForm(maxUpload); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart body", nil)
				return
			}
			var err error
			if file, err = readUpload(r); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable fasta_file", nil)
				return
			}
			raw = r.FormValue("fasta_raw")
		} else {
			var req struct {
				FastaRaw string `json:"fasta_raw"`
			}
			if err := decodeOptional(r, &req); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
			raw = req.FastaRaw
		}

		hasRaw, hasFile := strings.TrimSpace(raw) != "", strings.TrimSpace(file) != ""
		switch {
		case hasRaw && hasFile:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"RNA can be sent as text or as a file, not both", nil)
			return
		case !hasRaw && !hasFile:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing RNA data", nil)
			return
		case hasFile:
			raw = file
		}

		out := v.Validate(r.Context(), raw)
		validated, ok := out.(rna.Validated)
		if !ok {
			writeOutcome(w, out)
			return
		}
		response.JSON(w, newValidationResponse(validated))
	}
}

func newValidationResponse(v rna.Validated) validationResponse {
	resp := validationResponse{
		Validated:           true,
		FixSuggested:        v.FixSuggested,
		Name:                v.Name,
		Sequence:            rna.ApplySeparator(v.Sequence, v.Separator),
		Structure:           rna.ApplySeparator(v.Structure, v.Separator),
		MismatchingBrackets: v.MismatchingBrackets,
		IncorrectPairs:      v.IncorrectPairs,
	}
	if v.FixSuggested {
		resp.Repaired = rna.ApplySeparator(v.Repaired, v.Separator)
	}
	if resp.MismatchingBrackets == nil {
		resp.MismatchingBrackets = []int{}
	}
	if resp.IncorrectPairs == nil {
		resp.IncorrectPairs = []rna.Pair{}
	}
	return resp
}

// writeOutcome maps a failed validation to its error response: 400 when the
// input could not be parsed, 422 when it broke an alphabet or length rule.
func writeOutcome(w http.ResponseWriter, out rna.Outcome) {
	switch o := out.(type) {
	case rna.ParseFailed:
		response.Error(w, http.StatusBadRequest, "PARSE_FAILED", o.Err.Error(),
			map[string]any{"kind": o.Err.Kind, "block": o.Err.Block})
	case rna.ValidationFailed:
		response.Error(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED",
			"Structure failed validation", rna.Messages(o))
	default:
		response.Internal(w)
	}
}
