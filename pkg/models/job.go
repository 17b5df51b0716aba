package models

import (
	"time"
)

// Job statuses. A job never moves out of completed or failed; retrying is a
// caller-level decision (submit a new batch for the remaining files).
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// TrainingJob is one bounded slice of a batch's file list, executed as a
// single streaming call to the training backend. The queue owns the job for
// its lifetime; callers only ever see Snapshot copies.
type TrainingJob struct {
	ID              string
	KnowledgeBaseID int64
	VersionID       int64
	Channel         string
	Files           []*KnowledgeBaseFile
	JobIndex        int
	TotalJobs       int
	Status          string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Error           error
}

// JobSnapshot is a read-only view of a job for status queries.
type JobSnapshot struct {
	ID          string     `json:"id"`
	JobIndex    int        `json:"job_index"`
	TotalJobs   int        `json:"total_jobs"`
	Status      string     `json:"status"`
	FileCount   int        `json:"file_count"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Snapshot returns a copy of the job's externally visible state. The caller
// must hold the queue's lock.
func (j *TrainingJob) Snapshot() JobSnapshot {
	s := JobSnapshot{
		ID:          j.ID,
		JobIndex:    j.JobIndex,
		TotalJobs:   j.TotalJobs,
		Status:      j.Status,
		FileCount:   len(j.Files),
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Error != nil {
		s.Error = j.Error.Error()
	}
	return s
}

// BatchStatus aggregates job counts for one training channel.
type BatchStatus struct {
	Channel    string        `json:"channel"`
	Jobs       []JobSnapshot `json:"jobs"`
	Pending    int           `json:"pending"`
	Processing int           `json:"processing"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
}
