package models

import "github.com/google/uuid"

// ExampleStructure maps a demo example number to the job that was computed
// for it, so repeated example submissions reuse one result set.
type ExampleStructure struct {
	ID     int       `db:"id"      json:"id"`
	JobUID uuid.UUID `db:"job_uid" json:"-"`
}
