package model

import "time"

// Execution records one connector invocation over a batch of workflow items.
type Execution struct {
	ID          string    `db:"id" json:"id"`
	Resource    string    `db:"resource" json:"resource"`
	Operation   string    `db:"operation" json:"operation"`
	ProjectID   string    `db:"project_id" json:"project_id"`
	ItemCount   int       `db:"item_count" json:"item_count"`
	FailedCount int       `db:"failed_count" json:"failed_count"`
	Error       *string   `db:"error" json:"error,omitempty"`
	StartedAt   time.Time `db:"started_at" json:"started_at"`
	FinishedAt  time.Time `db:"finished_at" json:"finished_at"`
}
