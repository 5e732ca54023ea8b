package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
)

// --- mock Validator ---

type mockValidator struct {
	fn func(raw string) rna.Outcome
}

func (m *mockValidator) Validate(_ context.Context, raw string) rna.Outcome {
	return m.fn(raw)
}

func returning(out rna.Outcome) (*mockValidator, *string) {
	var seen string
	return &mockValidator{fn: func(raw string) rna.Outcome {
		seen = raw
		return out
	}}, &seen
}

// --- helpers ---

func jsonReq(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func multipartReq(t *testing.T, target string, fields map[string]string, file string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if file != "" {
		fw, err := mw.CreateFormFile("fasta_file", "input.fasta")
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		fw.Write([]byte(file))
	}
	mw.Close()
	r := httptest.NewRequest(http.MethodPost, target, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func parseOK(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]any {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func parseErr(t *testing.T, rec *httptest.ResponseRecorder) (int, apiError) {
	t.Helper()
	var env struct {
		Error apiError `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, env.Error
}

// --- tests ---

func TestValidateHandler_Validated(t *testing.T) {
	v, seen := returning(rna.Validated{
		Name:      "x",
		Separator: models.SeparatorHyphen,
		Sequence:  "GGG CCC",
		Structure: "((( )))",
	})
	rec := httptest.NewRecorder()
	NewValidateHandler(v).ServeHTTP(rec, jsonReq(t, http.MethodPost, "/api/v1/validate",
		map[string]string{"fasta_raw": ">x\nGGG-CCC\n(((-)))"}))

	data := parseOK(t, rec, http.StatusOK)
	if *seen != ">x\nGGG-CCC\n(((-)))" {
		t.Errorf("validator got %q", *seen)
	}
	if data["validated"] != true || data["fix_suggested"] != false {
		t.Errorf("unexpected flags: %v", data)
	}
	if data["sequence"] != "GGG-CCC" || data["structure"] != "(((-)))" {
		t.Errorf("separator not restored: %v %v", data["sequence"], data["structure"])
	}
	if _, ok := data["repaired"]; ok {
		t.Error("repaired should be omitted without a fix")
	}
	if got := data["mismatching_brackets"].([]any); len(got) != 0 {
		t.Errorf("expected empty mismatching_brackets, got %v", got)
	}
}

func TestValidateHandler_FixSuggested(t *testing.T) {
	v, _ := returning(rna.Validated{
		Separator:           models.SeparatorNone,
		Sequence:            "GAAC",
		Structure:           "((.)",
		Repaired:            ".(.)",
		FixSuggested:        true,
		MismatchingBrackets: []int{0},
		IncorrectPairs:      []rna.Pair{{I: 1, J: 3}},
	})
	rec := httptest.NewRecorder()
	NewValidateHandler(v).ServeHTTP(rec, jsonReq(t, http.MethodPost, "/api/v1/validate",
		map[string]string{"fasta_raw": "GAAC\n((.)"}))

	data := parseOK(t, rec, http.StatusOK)
	if data["fix_suggested"] != true || data["repaired"] != ".(.)" {
		t.Errorf("unexpected fix info: %v", data)
	}
	pairs := data["incorrect_pairs"].([]any)
	if len(pairs) != 1 || pairs[0].(map[string]any)["j"] != float64(3) {
		t.Errorf("unexpected incorrect_pairs: %v", pairs)
	}
}

func TestValidateHandler_ValidationFailed(t *testing.T) {
	v, _ := returning(rna.ValidationFailed{Errors: []*rna.ValidationError{
		{Kind: rna.UnequalLengths},
	}})
	rec := httptest.NewRecorder()
	NewValidateHandler(v).ServeHTTP(rec, jsonReq(t, http.MethodPost, "/api/v1/validate",
		map[string]string{"fasta_raw": "GC\n("}))

	code, e := parseErr(t, rec)
	if code != http.StatusUnprocessableEntity || e.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected 422 VALIDATION_FAILED, got %d %s", code, e.Code)
	}
	details := e.Details.([]any)
	if len(details) != 1 || details[0] != "RNA and DotBracket not of equal lengths" {
		t.Errorf("unexpected details: %v", details)
	}
}

func TestValidateHandler_ParseFailed(t *testing.T) {
	v, _ := returning(rna.ParseFailed{Err: &rna.ParseError{Kind: rna.MissingLines, Block: 2}})
	rec := httptest.NewRecorder()
	NewValidateHandler(v).ServeHTTP(rec, jsonReq(t, http.MethodPost, "/api/v1/validate",
		map[string]string{"fasta_raw": ">a\nGC\n()\n>b\nGC"}))

	code, e := parseErr(t, rec)
	if code != http.StatusBadRequest || e.Code != "PARSE_FAILED" {
		t.Fatalf("expected 400 PARSE_FAILED, got %d %s", code, e.Code)
	}
	if e.Details.(map[string]any)["kind"] != "MISSING_LINES" {
		t.Errorf("unexpected details: %v", e.Details)
	}
}

func TestValidateHandler_File(t *testing.T) {
	v, seen := returning(rna.Validated{Sequence: "GC", Structure: "()"})
	rec := httptest.NewRecorder()
	NewValidateHandler(v).ServeHTTP(rec, multipartReq(t, "/api/v1/validate", nil, "GC\n()"))

	parseOK(t, rec, http.StatusOK)
	if *seen != "GC\n()" {
		t.Errorf("validator got %q", *seen)
	}
}

func TestValidateHandler_BadInput(t *testing.T) {
	called := false
	v := &mockValidator{fn: func(string) rna.Outcome {
		called = true
		return rna.Validated{}
	}}

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"missing data", func() *http.Request {
			return jsonReq(t, http.MethodPost, "/api/v1/validate", map[string]string{})
		}},
		{"both inputs", func() *http.Request {
			return multipartReq(t, "/api/v1/validate", map[string]string{"fasta_raw": "GC\n()"}, "GC\n()")
		}},
		{"invalid json", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader("{"))
			r.Header.Set("Content-Type", "application/json")
			return r
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewValidateHandler(v).ServeHTTP(rec, tt.req())
			code, e := parseErr(t, rec)
			if code != http.StatusBadRequest || e.Code != "INVALID_REQUEST" {
				t.Errorf("expected 400 INVALID_REQUEST, got %d %s", code, e.Code)
			}
		})
	}
	if called {
		t.Error("validator must not run for bad input")
	}
}

func TestValidateHandler_BodyTooLarge(t *testing.T) {
	v, _ := returning(rna.Validated{})
	big := strings.Repeat("G", maxUpload+1)
	rec := httptest.NewRecorder()
	NewValidateHandler(v).ServeHTTP(rec, jsonReq(t, http.MethodPost, "/api/v1/validate",
		map[string]string{"fasta_raw": big}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in   string
		want *int
		err  bool
	}{
		{`42`, intPtr(42), false},
		{`"17"`, intPtr(17), false},
		{`" 3 "`, intPtr(3), false},
		{`null`, nil, false},
		{`""`, nil, false},
		{`"abc"`, nil, true},
		{`1.5`, nil, true},
	}
	for _, tt := range tests {
		var f flexInt
		err := json.Unmarshal([]byte(tt.in), &f)
		if tt.err {
			if err == nil {
				t.Errorf("%s: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.in, err)
			continue
		}
		if (f.Value == nil) != (tt.want == nil) || (f.Value != nil && *f.Value != *tt.want) {
			t.Errorf("%s: got %v, want %v", tt.in, f.Value, tt.want)
		}
	}
}

func intPtr(n int) *int { return &n }
