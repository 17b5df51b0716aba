package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/trainhub/internal/api/response"
	"github.com/kiranshivaraju/trainhub/pkg/models"
)

// StatusProvider reports the live state of a channel's jobs.
type StatusProvider interface {
	Status(channel string) (models.BatchStatus, bool)
}

// SnapshotReader reads terminal batch snapshots persisted after a run.
type SnapshotReader interface {
	GetBatchStatus(ctx context.Context, channel string) ([]byte, bool, error)
}

// NewStatusHandler returns an http.HandlerFunc for
// GET /api/v1/training/{channel}/status. Live queue state wins; after a
// restart the cached terminal snapshot is served instead.
func NewStatusHandler(q StatusProvider, snapshots SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := chi.URLParam(r, "channel")
		if channel == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"channel is required", nil)
			return
		}

		if status, ok := q.Status(channel); ok {
			response.JSON(w, status)
			return
		}

		if snapshots != nil {
			data, found, err := snapshots.GetBatchStatus(r.Context(), channel)
			if err == nil && found {
				var status models.BatchStatus
				if err := json.Unmarshal(data, &status); err == nil {
					response.JSON(w, status)
					return
				}
			}
		}

		response.Error(w, http.StatusNotFound, "NOT_FOUND",
			"No training batch found for channel", nil)
	}
}
