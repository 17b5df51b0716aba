package trainer

import (
	"github.com/kiranshivaraju/trainhub/internal/hub"
)

// Stream event types emitted by the training service. Anything else (or an
// absent type) is treated as a progress event, so the backend can add event
// kinds without breaking the orchestrator.
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// StreamEvent is one decoded line of a training stream. Fields the backend
// did not send keep their zero value.
type StreamEvent struct {
	Type            string `json:"type"`
	CurrentFile     int    `json:"current_file"`
	TotalFiles      int    `json:"total_files"`
	CurrentChunk    int    `json:"current_chunk"`
	TotalChunks     int    `json:"total_chunks"`
	Percentage      int    `json:"percentage"`
	Status          string `json:"status"`
	Message         string `json:"message"`
	CurrentFileName string `json:"current_file_name"`
}

// EventType normalizes an absent type tag to a progress event.
func (e StreamEvent) EventType() string {
	if e.Type == "" {
		return EventProgress
	}
	return e.Type
}

// Progress maps the event onto the broadcast Progress shape, tagged with the
// identity of the job that produced it.
func (e StreamEvent) Progress(jobID string, jobIndex, totalJobs int) *hub.Progress {
	return &hub.Progress{
		CurrentFile:     e.CurrentFile,
		TotalFiles:      e.TotalFiles,
		CurrentChunk:    e.CurrentChunk,
		TotalChunks:     e.TotalChunks,
		Percentage:      e.Percentage,
		Status:          e.Status,
		Message:         e.Message,
		CurrentFileName: e.CurrentFileName,
		JobID:           jobID,
		JobIndex:        jobIndex,
		TotalJobs:       totalJobs,
	}
}
