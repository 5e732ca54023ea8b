// Package models contains the data models shared by the API, the worker and
// the store.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. The single-letter values are what the database stores and
// what API clients see.
const (
	JobStatusSubmitted = "S"
	JobStatusQueued    = "Q"
	JobStatusRunning   = "R"
	JobStatusCompleted = "C"
	JobStatusError     = "E"
)

// Strand separators as stored on a Job.
const (
	SeparatorSpace  = " "
	SeparatorHyphen = "-"
	SeparatorNone   = "N"
)

// MaxAlternativeConformations bounds how many engine attempts one job may request.
const MaxAlternativeConformations = 5

// Job is one user submission. The worker picks it up by UID, calls the engine
// once per conformation and stores a JobResult for each.
type Job struct {
	UID                      uuid.UUID      `db:"uid"                       json:"-"`
	HashedUID                string         `db:"hashed_uid"                json:"uidh"`
	JobName                  string         `db:"job_name"                  json:"job_name"`
	Email                    *string        `db:"email"                     json:"-"`
	InputStructure           string         `db:"input_structure"           json:"input_structure"`
	StrandSeparator          string         `db:"strand_separator"          json:"strand_separator"`
	Seed                     int            `db:"seed"                      json:"seed"`
	AlternativeConformations int            `db:"alternative_conformations" json:"alternative_conformations"`
	Status                   string         `db:"status"                    json:"status"`
	ErrorMessage             *string        `db:"error_message"             json:"error_message,omitempty"`
	CreatedAt                time.Time      `db:"created_at"                json:"created_at"`
	UpdatedAt                time.Time      `db:"updated_at"                json:"updated_at"`
	ExpiresAt                *time.Time     `db:"expires_at"                json:"expires_at,omitempty"`
	SumProcessingTime        *time.Duration `db:"sum_processing_time"       json:"sum_processing_time,omitempty"`
}

// Terminal reports whether the job has reached Completed or Error.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusError
}
