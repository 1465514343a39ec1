package model

import "time"

// RunStatus is the lifecycle state of one conversion run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one conversion of a dataset into the database sinks.
type Run struct {
	ID        string    `json:"id"`
	Dataset   string    `json:"dataset"`
	Status    RunStatus `json:"status"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
