package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/trainhub/internal/id"
	"github.com/kiranshivaraju/trainhub/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
	gen  *id.Generator
}

// NewPostgresStore creates a new PostgresStore. New row ids are drawn from
// the snowflake generator.
func NewPostgresStore(pool *pgxpool.Pool, gen *id.Generator) *PostgresStore {
	return &PostgresStore{pool: pool, gen: gen}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Knowledge bases ---

func (s *PostgresStore) GetKnowledgeBase(ctx context.Context, kbID int64) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, status, created_at, updated_at
		 FROM knowledge_bases WHERE id = $1`, kbID,
	).Scan(&kb.ID, &kb.Name, &kb.Description, &kb.Status, &kb.CreatedAt, &kb.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get knowledge base: %w", err)
	}
	return &kb, nil
}

func (s *PostgresStore) UpdateKnowledgeBaseStatus(ctx context.Context, kbID int64, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE knowledge_bases SET status = $1, updated_at = NOW() WHERE id = $2`, status, kbID)
	if err != nil {
		return fmt.Errorf("update knowledge base status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListFiles(ctx context.Context, kbID int64) ([]*models.KnowledgeBaseFile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, knowledge_base_id, name, file_path, file_size, mime_type, created_at, updated_at
		 FROM knowledge_base_files WHERE knowledge_base_id = $1 ORDER BY created_at, id`, kbID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*models.KnowledgeBaseFile
	for rows.Next() {
		var f models.KnowledgeBaseFile
		if err := rows.Scan(&f.ID, &f.KnowledgeBaseID, &f.Name, &f.FilePath, &f.FileSize,
			&f.MimeType, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// --- Versions ---

func (s *PostgresStore) CreateVersion(ctx context.Context, kbID int64) (*models.KnowledgeBaseVersion, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create version: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE knowledge_bases SET status = $1, updated_at = NOW() WHERE id = $2`,
		models.KnowledgeBaseStatusTraining, kbID)
	if err != nil {
		return nil, fmt.Errorf("mark knowledge base training: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	var v models.KnowledgeBaseVersion
	err = tx.QueryRow(ctx,
		`INSERT INTO knowledge_base_versions
		   (id, knowledge_base_id, version_number, status, training_started_at, created_at, updated_at)
		 SELECT $1, $2,
		   COALESCE(MAX(version_number), 0) + 1, $3, NOW(), NOW(), NOW()
		 FROM knowledge_base_versions WHERE knowledge_base_id = $2
		 RETURNING id, knowledge_base_id, version_number, status, total_embeddings, total_chunks,
		   training_started_at, training_completed_at, created_at, updated_at`,
		s.gen.Next(), kbID, models.VersionStatusTraining,
	).Scan(&v.ID, &v.KnowledgeBaseID, &v.VersionNumber, &v.Status, &v.TotalEmbeddings, &v.TotalChunks,
		&v.TrainingStartedAt, &v.TrainingCompletedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create version: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, versionID int64) (*models.KnowledgeBaseVersion, error) {
	var v models.KnowledgeBaseVersion
	err := s.pool.QueryRow(ctx,
		`SELECT id, knowledge_base_id, version_number, status, total_embeddings, total_chunks,
		   training_started_at, training_completed_at, created_at, updated_at
		 FROM knowledge_base_versions WHERE id = $1`, versionID,
	).Scan(&v.ID, &v.KnowledgeBaseID, &v.VersionNumber, &v.Status, &v.TotalEmbeddings, &v.TotalChunks,
		&v.TrainingStartedAt, &v.TrainingCompletedAt, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) UpdateVersionStatus(ctx context.Context, versionID int64, status string, completedAt *time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE knowledge_base_versions
		 SET status = $1, training_completed_at = $2, updated_at = NOW()
		 WHERE id = $3`, status, completedAt, versionID)
	if err != nil {
		return fmt.Errorf("update version status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RefreshVersionMetrics recomputes embedding and chunk counts from the rows
// the training backend wrote for this version.
func (s *PostgresStore) RefreshVersionMetrics(ctx context.Context, versionID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE knowledge_base_versions v
		 SET total_embeddings = (
		       SELECT COUNT(*) FROM knowledge_base_embeddings e
		       WHERE e.knowledge_base_version_id = v.id
		     ),
		     total_chunks = (
		       SELECT COUNT(DISTINCT (e.knowledge_base_file_id, e.chunk_index))
		       FROM knowledge_base_embeddings e
		       WHERE e.knowledge_base_version_id = v.id
		     ),
		     updated_at = NOW()
		 WHERE v.id = $1`, versionID)
	if err != nil {
		return fmt.Errorf("refresh version metrics: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
