package store

import (
	"context"
	"errors"
	"time"

	"github.com/kiranshivaraju/trainhub/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetKnowledgeBase(ctx context.Context, id int64) (*models.KnowledgeBase, error)
	UpdateKnowledgeBaseStatus(ctx context.Context, id int64, status string) error
	ListFiles(ctx context.Context, knowledgeBaseID int64) ([]*models.KnowledgeBaseFile, error)

	// CreateVersion allocates the next version number for a knowledge base
	// and flips the knowledge base to training.
	CreateVersion(ctx context.Context, knowledgeBaseID int64) (*models.KnowledgeBaseVersion, error)
	GetVersion(ctx context.Context, versionID int64) (*models.KnowledgeBaseVersion, error)
	UpdateVersionStatus(ctx context.Context, versionID int64, status string, completedAt *time.Time) error

	// RefreshVersionMetrics recomputes a version's summary metrics from its
	// stored embeddings.
	RefreshVersionMetrics(ctx context.Context, versionID int64) error
}
