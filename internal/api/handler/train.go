package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/trainhub/internal/api/response"
	"github.com/kiranshivaraju/trainhub/internal/queue"
	"github.com/kiranshivaraju/trainhub/internal/store"
	"github.com/kiranshivaraju/trainhub/pkg/models"
)

// TrainingStore defines the store operations the train handler depends on.
type TrainingStore interface {
	GetKnowledgeBase(ctx context.Context, id int64) (*models.KnowledgeBase, error)
	ListFiles(ctx context.Context, knowledgeBaseID int64) ([]*models.KnowledgeBaseFile, error)
	CreateVersion(ctx context.Context, knowledgeBaseID int64) (*models.KnowledgeBaseVersion, error)
}

// Submitter defines the interface the train handler uses to enqueue a batch.
type Submitter interface {
	Submit(ctx context.Context, kbID, versionID int64, files []*models.KnowledgeBaseFile, channel string) error
}

// NewTrainHandler returns an http.HandlerFunc for
// POST /api/v1/knowledge-bases/{kbID}/train.
func NewTrainHandler(st TrainingStore, q Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kbID, err := strconv.ParseInt(chi.URLParam(r, "kbID"), 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"kbID must be a numeric id", nil)
			return
		}

		kb, err := st.GetKnowledgeBase(r.Context(), kbID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND",
					"Knowledge base not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load knowledge base", nil)
			return
		}

		if kb.Status == models.KnowledgeBaseStatusTraining {
			response.Error(w, http.StatusConflict, "ALREADY_TRAINING",
				"Knowledge base is already training", nil)
			return
		}

		files, err := st.ListFiles(r.Context(), kbID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load knowledge base files", nil)
			return
		}
		if len(files) == 0 {
			response.Error(w, http.StatusBadRequest, "NO_FILES",
				"Knowledge base has no files to train on", nil)
			return
		}

		version, err := st.CreateVersion(r.Context(), kbID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create training version", nil)
			return
		}

		channel := fmt.Sprintf("training_%d_%d", kbID, version.ID)
		if err := q.Submit(r.Context(), kbID, version.ID, files, channel); err != nil {
			if errors.Is(err, queue.ErrNoFiles) {
				response.Error(w, http.StatusBadRequest, "NO_FILES",
					"Knowledge base has no files to train on", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to queue training jobs", nil)
			return
		}

		response.Accepted(w, trainResponse{
			Channel:       channel,
			VersionID:     strconv.FormatInt(version.ID, 10),
			VersionNumber: version.VersionNumber,
			TotalFiles:    len(files),
		})
	}
}

type trainResponse struct {
	Channel       string `json:"channel"`
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	TotalFiles    int    `json:"total_files"`
}
