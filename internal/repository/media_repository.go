package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dearfuture/capsule-api/internal/models"
)

// MediaRepository persists media object metadata. The blob itself lives in
// the filesystem store.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository creates the repository.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts a media metadata row.
func (r *MediaRepository) Create(ctx context.Context, media *models.MediaObject) error {
	if media.ID == "" {
		media.ID = uuid.NewString()
	}
	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO media (id, owner_id, file_name, mime_type, size_bytes, file_path, created_at)
VALUES (:id, :owner_id, :file_name, :mime_type, :size_bytes, :file_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, media); err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	return nil
}

// GetByID returns a media object by identifier, or nil when absent.
func (r *MediaRepository) GetByID(ctx context.Context, id string) (*models.MediaObject, error) {
	const query = `SELECT id, owner_id, file_name, mime_type, size_bytes, file_path, created_at
FROM media WHERE id = $1`
	var media models.MediaObject
	if err := r.db.GetContext(ctx, &media, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get media %s: %w", id, err)
	}
	return &media, nil
}

// Delete removes a media metadata row.
func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM media WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete media %s: %w", id, err)
	}
	return nil
}
