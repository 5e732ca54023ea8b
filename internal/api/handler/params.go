// Package handler contains the HTTP handlers of the REST API.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// maxUpload bounds request bodies, uploaded structure files included.
const maxUpload = 1 << 20

const fileField = "fasta_file"

var errBadNumber = errors.New("must be an integer")

// flexInt accepts both 42 and "42". Form-encoded clients send numbers as
// strings.
type flexInt struct {
	Value *int
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		f.Value = nil
		return nil
	}
	s = strings.Trim(s, `"`)
	if strings.TrimSpace(s) == "" {
		f.Value = nil
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errBadNumber
	}
	f.Value = &n
	return nil
}

// isMultipart reports whether r carries a multipart form.
func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// readUpload returns the contents of the uploaded structure file, or "" when
// the form has none.
func readUpload(r *http.Request) (string, error) {
	f, _, err := r.FormFile(fileField)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(f, maxUpload)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formInt parses an optional integer form field.
func formInt(r *http.Request, field string) (*int, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s %w", field, errBadNumber)
	}
	return &n, nil
}

// decodeOptional decodes a JSON body into v. An empty body leaves v alone.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// pagination reads page and limit query parameters. page defaults to 1 and
// limit to 20, capped at 100.
func pagination(r *http.Request) (page, limit int, err error) {
	page, limit = 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, errors.New("page must be a positive integer")
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, nil
}
