package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/trainhub/internal/api/handler"
	"github.com/kiranshivaraju/trainhub/internal/store"
	"github.com/kiranshivaraju/trainhub/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTrainingStore implements handler.TrainingStore.
type stubTrainingStore struct {
	kb      *models.KnowledgeBase
	kbErr   error
	files   []*models.KnowledgeBaseFile
	listErr error
	version *models.KnowledgeBaseVersion
	verErr  error
}

func (s *stubTrainingStore) GetKnowledgeBase(_ context.Context, id int64) (*models.KnowledgeBase, error) {
	if s.kbErr != nil {
		return nil, s.kbErr
	}
	return s.kb, nil
}

func (s *stubTrainingStore) ListFiles(_ context.Context, _ int64) ([]*models.KnowledgeBaseFile, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.files, nil
}

func (s *stubTrainingStore) CreateVersion(_ context.Context, kbID int64) (*models.KnowledgeBaseVersion, error) {
	if s.verErr != nil {
		return nil, s.verErr
	}
	return s.version, nil
}

// stubSubmitter records the batch handed to it.
type stubSubmitter struct {
	err     error
	channel string
	kbID    int64
	verID   int64
	files   []*models.KnowledgeBaseFile
}

func (s *stubSubmitter) Submit(_ context.Context, kbID, versionID int64, files []*models.KnowledgeBaseFile, channel string) error {
	s.kbID = kbID
	s.verID = versionID
	s.files = files
	s.channel = channel
	return s.err
}

func trainRequest(t *testing.T, h http.HandlerFunc, kbID string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/api/v1/knowledge-bases/{kbID}/train", h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-bases/"+kbID+"/train", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func activeKB(id int64) *models.KnowledgeBase {
	return &models.KnowledgeBase{ID: id, Name: "kb", Status: models.KnowledgeBaseStatusActive}
}

func someFiles(n int) []*models.KnowledgeBaseFile {
	files := make([]*models.KnowledgeBaseFile, n)
	for i := range files {
		files[i] = &models.KnowledgeBaseFile{ID: int64(i + 1), Name: "f.pdf", FilePath: "/tmp/f.pdf"}
	}
	return files
}

func TestTrain_InvalidKBID(t *testing.T) {
	h := handler.NewTrainHandler(&stubTrainingStore{}, &stubSubmitter{})
	rec := trainRequest(t, h, "not-a-number")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrain_KnowledgeBaseNotFound(t *testing.T) {
	st := &stubTrainingStore{kbErr: store.ErrNotFound}
	h := handler.NewTrainHandler(st, &stubSubmitter{})
	rec := trainRequest(t, h, "42")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestTrain_AlreadyTraining(t *testing.T) {
	st := &stubTrainingStore{
		kb: &models.KnowledgeBase{ID: 42, Status: models.KnowledgeBaseStatusTraining},
	}
	h := handler.NewTrainHandler(st, &stubSubmitter{})
	rec := trainRequest(t, h, "42")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_TRAINING")
}

func TestTrain_NoFiles(t *testing.T) {
	st := &stubTrainingStore{kb: activeKB(42), files: nil}
	h := handler.NewTrainHandler(st, &stubSubmitter{})
	rec := trainRequest(t, h, "42")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_FILES")
}

func TestTrain_Accepted(t *testing.T) {
	st := &stubTrainingStore{
		kb:      activeKB(42),
		files:   someFiles(3),
		version: &models.KnowledgeBaseVersion{ID: 7, KnowledgeBaseID: 42, VersionNumber: 2},
	}
	sub := &stubSubmitter{}
	h := handler.NewTrainHandler(st, sub)
	rec := trainRequest(t, h, "42")

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body struct {
		Data struct {
			Channel       string `json:"channel"`
			VersionID     string `json:"version_id"`
			VersionNumber int    `json:"version_number"`
			TotalFiles    int    `json:"total_files"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "training_42_7", body.Data.Channel)
	assert.Equal(t, "7", body.Data.VersionID)
	assert.Equal(t, 2, body.Data.VersionNumber)
	assert.Equal(t, 3, body.Data.TotalFiles)

	assert.Equal(t, int64(42), sub.kbID)
	assert.Equal(t, int64(7), sub.verID)
	assert.Len(t, sub.files, 3)
	assert.Equal(t, "training_42_7", sub.channel)
}

func TestTrain_StoreFailure(t *testing.T) {
	st := &stubTrainingStore{kbErr: errors.New("db down")}
	h := handler.NewTrainHandler(st, &stubSubmitter{})
	rec := trainRequest(t, h, "42")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTrain_CreateVersionFailure(t *testing.T) {
	st := &stubTrainingStore{
		kb:     activeKB(42),
		files:  someFiles(1),
		verErr: errors.New("db down"),
	}
	h := handler.NewTrainHandler(st, &stubSubmitter{})
	rec := trainRequest(t, h, "42")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTrain_SubmitFailure(t *testing.T) {
	st := &stubTrainingStore{
		kb:      activeKB(42),
		files:   someFiles(1),
		version: &models.KnowledgeBaseVersion{ID: 7, KnowledgeBaseID: 42, VersionNumber: 1},
	}
	h := handler.NewTrainHandler(st, &stubSubmitter{err: errors.New("queue stopped")})
	rec := trainRequest(t, h, "42")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
