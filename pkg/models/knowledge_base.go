package models

import (
	"time"
)

// Knowledge base lifecycle statuses.
const (
	KnowledgeBaseStatusActive   = "active"
	KnowledgeBaseStatusTraining = "training"
)

// Version lifecycle statuses. A version stays in "training" after a partial
// failure so the caller can decide whether to retrain.
const (
	VersionStatusTraining  = "training"
	VersionStatusCompleted = "completed"
)

// KnowledgeBase is a named collection of files that can be trained into a
// versioned embedding set.
type KnowledgeBase struct {
	ID          int64     `db:"id"          json:"id,string"`
	Name        string    `db:"name"        json:"name"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status"      json:"status"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}

// KnowledgeBaseFile is one uploaded file belonging to a knowledge base.
type KnowledgeBaseFile struct {
	ID              int64     `db:"id"                json:"id,string"`
	KnowledgeBaseID int64     `db:"knowledge_base_id" json:"knowledge_base_id,string"`
	Name            string    `db:"name"              json:"name"`
	FilePath        string    `db:"file_path"         json:"file_path"`
	FileSize        int64     `db:"file_size"         json:"file_size"`
	MimeType        string    `db:"mime_type"         json:"mime_type"`
	CreatedAt       time.Time `db:"created_at"        json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"        json:"updated_at"`
}

// KnowledgeBaseVersion is one training run's output over a knowledge base's
// files. Metrics columns are recomputed from the stored embeddings after a
// successful run.
type KnowledgeBaseVersion struct {
	ID                  int64      `db:"id"                    json:"id,string"`
	KnowledgeBaseID     int64      `db:"knowledge_base_id"     json:"knowledge_base_id,string"`
	VersionNumber       int        `db:"version_number"        json:"version_number"`
	Status              string     `db:"status"                json:"status"`
	TotalEmbeddings     int        `db:"total_embeddings"      json:"total_embeddings"`
	TotalChunks         int        `db:"total_chunks"          json:"total_chunks"`
	TrainingStartedAt   time.Time  `db:"training_started_at"   json:"training_started_at"`
	TrainingCompletedAt *time.Time `db:"training_completed_at" json:"training_completed_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at"            json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"            json:"updated_at"`
}
