package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/trainhub/internal/cache"
	"github.com/kiranshivaraju/trainhub/internal/store"
	"github.com/kiranshivaraju/trainhub/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock store ---

type testStore struct {
	pingErr error
}

func (s *testStore) Ping(_ context.Context) error { return s.pingErr }
func (s *testStore) GetKnowledgeBase(_ context.Context, _ int64) (*models.KnowledgeBase, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) UpdateKnowledgeBaseStatus(_ context.Context, _ int64, _ string) error {
	return nil
}
func (s *testStore) ListFiles(_ context.Context, _ int64) ([]*models.KnowledgeBaseFile, error) {
	return nil, nil
}
func (s *testStore) CreateVersion(_ context.Context, _ int64) (*models.KnowledgeBaseVersion, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) GetVersion(_ context.Context, _ int64) (*models.KnowledgeBaseVersion, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) UpdateVersionStatus(_ context.Context, _ int64, _ string, _ *time.Time) error {
	return nil
}
func (s *testStore) RefreshVersionMetrics(_ context.Context, _ int64) error { return nil }

var _ store.Store = (*testStore)(nil)

// --- mock cache ---

type testCache struct {
	pingErr error
}

func (c *testCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *testCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *testCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *testCache) Ping(_ context.Context) error                                     { return c.pingErr }
func (c *testCache) SetBatchStatus(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}
func (c *testCache) GetBatchStatus(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*testCache)(nil)

// --- health handler ---

func TestHealthHandler_AllHealthy(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Status   string            `json:"status"`
			Services map[string]string `json:"services"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Data.Status)
	assert.Equal(t, "ok", body.Data.Services["database"])
	assert.Equal(t, "ok", body.Data.Services["cache"])
}

func TestHealthHandler_DatabaseDegraded(t *testing.T) {
	h := healthHandler(&testStore{pingErr: errors.New("no connection")}, &testCache{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "DEGRADED")
}

func TestHealthHandler_CacheDegraded(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{pingErr: errors.New("redis down")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
