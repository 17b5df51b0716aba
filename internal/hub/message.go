package hub

// Message is the envelope delivered to every subscriber of a channel.
type Message struct {
	ID       int64     `json:"id,string"`
	Type     string    `json:"type"`
	Channel  string    `json:"channel"`
	Data     any       `json:"data"`
	Progress *Progress `json:"progress,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Progress describes one moment of one job's execution. Fields the backend
// did not send stay at their zero value; subscribers treat zero as unknown.
type Progress struct {
	CurrentFile     int    `json:"current_file"`
	TotalFiles      int    `json:"total_files"`
	CurrentChunk    int    `json:"current_chunk"`
	TotalChunks     int    `json:"total_chunks"`
	Percentage      int    `json:"percentage"`
	Status          string `json:"status"` // processing, embedding, storing, completed, failed
	Message         string `json:"message,omitempty"`
	CurrentFileName string `json:"current_file_name,omitempty"`
	JobID           string `json:"job_id,omitempty"`
	JobIndex        int    `json:"job_index,omitempty"`
	TotalJobs       int    `json:"total_jobs,omitempty"`
}
