package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dearfuture/capsule-api/internal/models"
	appErrors "github.com/dearfuture/capsule-api/pkg/errors"
)

const capsuleColumns = "id, slug, owner_id, title, message, unlock_at, created_at, visibility, media_ref, is_unlocked"

// CapsuleRepository provides PostgreSQL persistence for capsules.
type CapsuleRepository struct {
	db *sqlx.DB
}

// NewCapsuleRepository creates the repository.
func NewCapsuleRepository(db *sqlx.DB) *CapsuleRepository {
	return &CapsuleRepository{db: db}
}

// Create inserts a new capsule record. The store assigns the id and creation
// timestamp; both are immutable afterwards.
func (r *CapsuleRepository) Create(ctx context.Context, capsule *models.Capsule) error {
	if capsule.ID == "" {
		capsule.ID = uuid.NewString()
	}
	if capsule.CreatedAt.IsZero() {
		capsule.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO capsules (id, slug, owner_id, title, message, unlock_at, created_at, visibility, media_ref, is_unlocked)
VALUES (:id, :slug, :owner_id, :title, :message, :unlock_at, :created_at, :visibility, :media_ref, :is_unlocked)`
	if _, err := r.db.NamedExecContext(ctx, query, capsule); err != nil {
		return fmt.Errorf("create capsule: %w", err)
	}
	return nil
}

// GetByID returns a capsule by identifier, or nil when absent.
func (r *CapsuleRepository) GetByID(ctx context.Context, id string) (*models.Capsule, error) {
	query := fmt.Sprintf("SELECT %s FROM capsules WHERE id = $1", capsuleColumns)
	var capsule models.Capsule
	if err := r.db.GetContext(ctx, &capsule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get capsule %s: %w", id, err)
	}
	return &capsule, nil
}

// GetBySlug resolves a shareable link slug to its capsule, or nil when absent.
func (r *CapsuleRepository) GetBySlug(ctx context.Context, slug string) (*models.Capsule, error) {
	query := fmt.Sprintf("SELECT %s FROM capsules WHERE slug = $1", capsuleColumns)
	var capsule models.Capsule
	if err := r.db.GetContext(ctx, &capsule, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get capsule by slug %s: %w", slug, err)
	}
	return &capsule, nil
}

// ListByOwner returns the owner's capsules. The advisory is_unlocked hint is
// used only to sort locked capsules first; every row is re-evaluated against
// the current instant before any content is projected.
func (r *CapsuleRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.Capsule, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM capsules WHERE owner_id = $1
ORDER BY is_unlocked ASC, unlock_at ASC LIMIT %d`, capsuleColumns, limit)
	var capsules []models.Capsule
	if err := r.db.SelectContext(ctx, &capsules, query, ownerID); err != nil {
		return nil, fmt.Errorf("list capsules for owner %s: %w", ownerID, err)
	}
	return capsules, nil
}

// Delete removes a capsule record.
func (r *CapsuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM capsules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete capsule %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete capsule %s: %w", id, err)
	}
	if affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// ListLockedDue returns ids of capsules whose hint still says locked although
// their unlock instant has passed. Feeds the hint reconciliation sweep.
func (r *CapsuleRepository) ListLockedDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf("SELECT id FROM capsules WHERE is_unlocked = false AND unlock_at <= $1 LIMIT %d", limit)
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, now); err != nil {
		return nil, fmt.Errorf("list due capsules: %w", err)
	}
	return ids, nil
}

// MarkUnlockedHint flips the advisory unlocked flag for the given capsules.
// The flag is a list-rendering hint only; it never overrides evaluation.
func (r *CapsuleRepository) MarkUnlockedHint(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE capsules SET is_unlocked = true WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return fmt.Errorf("mark capsules unlocked: %w", err)
	}
	return nil
}
