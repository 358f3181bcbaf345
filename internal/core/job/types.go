package job

import (
	"time"

	"prodintel/internal/core/batch"
)

// Job is the internal record kept in redis for an async batch run. It is not
// the API response shape; handlers project it.
type Job struct {
	JobID     string        `json:"job_id"`
	Type      Type          `json:"type"`
	Status    Status        `json:"status"`
	CreatedAt time.Time     `json:"created_at,omitempty"`
	UpdatedAt time.Time     `json:"updated_at,omitempty"`
	Progress  *ProgressInfo `json:"progress,omitempty"`
	Results   JobResult     `json:"results,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Type for internal job classification
type Type string

const (
	TypeBatchExtract Type = "batch_extract"
)

// Status for internal job tracking
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the job can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ProgressInfo mirrors the runner's latest progress event for status polling.
type ProgressInfo struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	LastURL   string `json:"last_url,omitempty"`
	LastState string `json:"last_state,omitempty"` // "success" or the failure kind
}

// Internal job result storage
type JobResult struct {
	Batch *BatchJobData `json:"batch_result,omitempty"`
}

// BatchJobData is the stored outcome of one batch run: the ordered outcomes,
// their summary, and the schema they were extracted against.
type BatchJobData struct {
	SchemaName string                 `json:"schema_name,omitempty"`
	Schema     batch.ExtractionSchema `json:"schema"`
	Outcomes   batch.BatchResult      `json:"outcomes,omitempty"`
	Summary    *batch.Summary         `json:"summary,omitempty"`
}
