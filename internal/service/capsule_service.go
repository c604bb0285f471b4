package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dearfuture/capsule-api/internal/models"
	appErrors "github.com/dearfuture/capsule-api/pkg/errors"
	"github.com/dearfuture/capsule-api/pkg/export"
)

// CapsuleStore is the persistence contract shared by the Postgres repository
// and the legacy REST store. Backends that cannot serve hint maintenance only
// need these five operations.
type CapsuleStore interface {
	Create(ctx context.Context, capsule *models.Capsule) error
	GetByID(ctx context.Context, id string) (*models.Capsule, error)
	GetBySlug(ctx context.Context, slug string) (*models.Capsule, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.Capsule, error)
	Delete(ctx context.Context, id string) error
}

type capsuleMedia interface {
	Put(ctx context.Context, ownerID string, upload MediaUpload) (*models.MediaObject, error)
	Resolve(ctx context.Context, mediaRef string) (string, error)
	Remove(ctx context.Context, mediaRef string) error
}

// SlugCache caches raw capsule records keyed by share slug. Evaluated
// projections are never cached; they depend on the instant of evaluation.
type SlugCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type evaluationObserver interface {
	ObserveEvaluation(state string)
	RecordCacheOperation(hit bool)
}

const defaultListLimit = 100

// CapsuleService orchestrates capsule lifecycle around the pure evaluator:
// persistence, media attachment, slug cache, and export rendering.
type CapsuleService struct {
	store   CapsuleStore
	media   capsuleMedia
	cache   SlugCache
	metrics evaluationObserver
	logger  *zap.Logger
	slugTTL time.Duration
	now     func() time.Time
}

// NewCapsuleService constructs the service. cache and metrics may be nil.
func NewCapsuleService(store CapsuleStore, media capsuleMedia, cache SlugCache, metrics evaluationObserver, logger *zap.Logger, slugTTL time.Duration) *CapsuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if slugTTL <= 0 {
		slugTTL = 5 * time.Minute
	}
	return &CapsuleService{
		store:   store,
		media:   media,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		slugTTL: slugTTL,
		now:     time.Now,
	}
}

// Create validates the draft, stores the optional media blob, and persists the
// capsule. The blob goes in first so a capsule row never references media that
// does not exist; if the row insert fails the blob is rolled back.
func (s *CapsuleService) Create(ctx context.Context, ownerID string, draft models.CapsuleDraft, upload *MediaUpload) (models.CapsuleView, error) {
	now := s.now().UTC()

	if upload != nil && draft.Media == nil {
		draft.Media = &models.MediaDraft{
			FileName:  upload.FileName,
			MimeType:  upload.MimeType,
			SizeBytes: upload.SizeBytes,
		}
	}
	if fieldErrs := ValidateDraft(draft, now); len(fieldErrs) > 0 {
		return models.CapsuleView{}, appErrors.Validation(fieldErrs)
	}

	capsule := &models.Capsule{
		OwnerID:    ownerID,
		Title:      strings.TrimSpace(draft.Title),
		Message:    draft.Message,
		UnlockAt:   draft.UnlockAt.UTC(),
		Visibility: draft.Visibility,
	}
	if draft.Visibility == models.VisibilityShareable {
		slug := newSlug()
		capsule.Slug = &slug
	}

	if upload != nil {
		media, err := s.media.Put(ctx, ownerID, *upload)
		if err != nil {
			return models.CapsuleView{}, err
		}
		capsule.MediaRef = &media.ID
	}

	if err := s.store.Create(ctx, capsule); err != nil {
		if capsule.MediaRef != nil {
			if rmErr := s.media.Remove(ctx, *capsule.MediaRef); rmErr != nil {
				s.logger.Warn("failed to roll back media after create failure",
					zap.String("media_ref", *capsule.MediaRef), zap.Error(rmErr))
			}
		}
		return models.CapsuleView{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create capsule")
	}

	s.logger.Info("capsule created",
		zap.String("capsule_id", capsule.ID),
		zap.String("owner_id", ownerID),
		zap.Time("unlock_at", capsule.UnlockAt),
		zap.String("visibility", string(capsule.Visibility)))

	view := s.evaluate(ctx, capsule, models.Viewer{Identity: ownerID}, now)
	return view, nil
}

// GetView resolves a capsule by id and evaluates it for the viewer at the
// current instant. A NotFound state maps to the same error whether the record
// is absent or merely invisible to this viewer.
func (s *CapsuleService) GetView(ctx context.Context, id string, viewer models.Viewer) (models.CapsuleView, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return models.CapsuleView{}, s.storeError(err, "failed to load capsule")
	}
	view := s.evaluate(ctx, record, viewer, s.now().UTC())
	if view.State == models.StateNotFound {
		return models.CapsuleView{}, appErrors.ErrNotFound
	}
	return view, nil
}

// GetSharedView resolves a capsule through its share slug. The raw record is
// cached by slug; evaluated projections are never cached because they depend
// on the instant of evaluation.
func (s *CapsuleService) GetSharedView(ctx context.Context, slug string, viewer models.Viewer) (models.CapsuleView, error) {
	viewer.HasSlug = true

	record, err := s.lookupBySlug(ctx, slug)
	if err != nil {
		return models.CapsuleView{}, err
	}
	view := s.evaluate(ctx, record, viewer, s.now().UTC())
	if view.State == models.StateNotFound {
		return models.CapsuleView{}, appErrors.ErrNotFound
	}
	return view, nil
}

// ListOwnerViews returns the owner's capsules evaluated at a single shared
// instant. Only the owner may list; anyone else gets the same not-found error
// as for an absent owner, so the listing leaks no existence information.
func (s *CapsuleService) ListOwnerViews(ctx context.Context, ownerID string, viewer models.Viewer, limit int) ([]models.CapsuleView, error) {
	if viewer.Anonymous() || viewer.Identity != ownerID {
		return nil, appErrors.ErrNotFound
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	records, err := s.store.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, s.storeError(err, "failed to list capsules")
	}

	now := s.now().UTC()
	views := make([]models.CapsuleView, 0, len(records))
	for i := range records {
		views = append(views, s.evaluate(ctx, &records[i], viewer, now))
	}
	return views, nil
}

// Delete removes a capsule, its media, and its slug cache entry. Only the
// owner may delete; for private capsules a stranger sees not-found, for
// visible ones forbidden.
func (s *CapsuleService) Delete(ctx context.Context, id string, viewer models.Viewer) error {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return s.storeError(err, "failed to load capsule")
	}
	if record == nil {
		return appErrors.ErrNotFound
	}
	isOwner := !viewer.Anonymous() && viewer.Identity == record.OwnerID
	if !isOwner {
		if record.Visibility == models.VisibilityPrivate {
			return appErrors.ErrNotFound
		}
		return appErrors.ErrForbidden
	}

	if record.MediaRef != nil {
		if err := s.media.Remove(ctx, *record.MediaRef); err != nil {
			s.logger.Warn("failed to delete capsule media",
				zap.String("capsule_id", id), zap.Error(err))
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.storeError(err, "failed to delete capsule")
	}
	if record.Slug != nil && s.cache != nil {
		if err := s.cache.Delete(ctx, slugCacheKey(*record.Slug)); err != nil {
			s.logger.Warn("failed to drop slug cache entry",
				zap.String("slug", *record.Slug), zap.Error(err))
		}
	}

	s.logger.Info("capsule deleted", zap.String("capsule_id", id), zap.String("owner_id", record.OwnerID))
	return nil
}

// ExportUnlocked renders the owner's already-unlocked capsules as a CSV table
// or a PDF memory book. Locked capsules are excluded entirely so an export can
// never leak sealed content.
func (s *CapsuleService) ExportUnlocked(ctx context.Context, ownerID string, viewer models.Viewer, format string) ([]byte, string, error) {
	if viewer.Anonymous() || viewer.Identity != ownerID {
		return nil, "", appErrors.ErrNotFound
	}

	records, err := s.store.ListByOwner(ctx, ownerID, defaultListLimit)
	if err != nil {
		return nil, "", s.storeError(err, "failed to list capsules")
	}

	now := s.now().UTC()
	var unlocked []models.CapsuleView
	for i := range records {
		view := s.evaluate(ctx, &records[i], viewer, now)
		if view.State == models.StateUnlocked {
			unlocked = append(unlocked, view)
		}
	}

	switch format {
	case "csv", "":
		data := export.Dataset{
			Headers: []string{"Title", "Created", "Unlocked", "Visibility", "Message"},
		}
		for _, v := range unlocked {
			data.Rows = append(data.Rows, map[string]string{
				"Title":      v.Title,
				"Created":    v.CreatedAt.Format(time.RFC3339),
				"Unlocked":   v.UnlockAt.Format(time.RFC3339),
				"Visibility": string(v.Visibility),
				"Message":    v.Message,
			})
		}
		payload, err := export.NewCSVExporter().Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "text/csv", nil
	case "pdf":
		entries := make([]export.Entry, 0, len(unlocked))
		for _, v := range unlocked {
			entries = append(entries, export.Entry{
				Heading: v.Title,
				Meta: []string{
					fmt.Sprintf("Sealed %s", v.CreatedAt.Format("2 January 2006")),
					fmt.Sprintf("Opened %s", v.UnlockAt.Format("2 January 2006")),
				},
				Body: v.Message,
			})
		}
		if len(entries) == 0 {
			entries = append(entries, export.Entry{
				Heading: "Nothing to remember yet",
				Body:    "No capsules have unlocked. Come back after an unlock date passes.",
			})
		}
		payload, err := export.NewPDFExporter().Render("Memory Book", entries)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// evaluate runs the pure evaluator and decorates unlocked views with a signed
// media URL.
func (s *CapsuleService) evaluate(ctx context.Context, record *models.Capsule, viewer models.Viewer, now time.Time) models.CapsuleView {
	view := Evaluate(record, viewer, now)
	if s.metrics != nil {
		s.metrics.ObserveEvaluation(string(view.State))
	}
	if view.State == models.StateUnlocked && view.MediaRef != nil && s.media != nil {
		url, err := s.media.Resolve(ctx, *view.MediaRef)
		if err != nil {
			s.logger.Warn("failed to resolve media url",
				zap.String("capsule_id", view.ID), zap.Error(err))
		} else {
			view.MediaURL = url
		}
	}
	return view
}

func (s *CapsuleService) lookupBySlug(ctx context.Context, slug string) (*models.Capsule, error) {
	key := slugCacheKey(slug)
	if s.cache != nil {
		var cached models.Capsule
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	record, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, s.storeError(err, "failed to load capsule by slug")
	}
	if record != nil && s.cache != nil {
		if err := s.cache.Set(ctx, key, record, s.slugTTL); err != nil {
			s.logger.Warn("failed to cache slug lookup", zap.String("slug", slug), zap.Error(err))
		}
	}
	return record, nil
}

// storeError keeps typed store errors intact and wraps everything else as an
// internal failure.
func (s *CapsuleService) storeError(err error, message string) error {
	if typed := appErrors.FromError(err); typed != nil && typed.Code != appErrors.ErrInternal.Code {
		switch typed.Code {
		case appErrors.ErrNotFound.Code, appErrors.ErrUpstream.Code:
			return typed
		}
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func slugCacheKey(slug string) string {
	return "capsule:slug:" + slug
}

func newSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
