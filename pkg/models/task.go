package models

import "github.com/google/uuid"

// Task is the queue message that asks a worker to orchestrate one job.
type Task struct {
	JobUID        uuid.UUID `json:"job_uid"`
	ExampleNumber *int      `json:"example_number,omitempty"`
}
