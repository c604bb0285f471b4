package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dearfuture/capsule-api/internal/models"
	appErrors "github.com/dearfuture/capsule-api/pkg/errors"
)

type mediaStore interface {
	Create(ctx context.Context, media *models.MediaObject) error
	GetByID(ctx context.Context, id string) (*models.MediaObject, error)
	Delete(ctx context.Context, id string) error
}

type mediaFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type mediaSignedURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string) (id, relPath string, expiresAt time.Time, err error)
}

// MediaUpload carries upload metadata and the stream reader.
type MediaUpload struct {
	FileName  string
	MimeType  string
	SizeBytes int64
	Content   io.Reader
}

// MediaDownload bundles a blob reader with its metadata for streaming.
type MediaDownload struct {
	File      *os.File
	FileName  string
	MimeType  string
	SizeBytes int64
}

// MediaServiceConfig holds blob store parameters.
type MediaServiceConfig struct {
	BaseURL   string
	APIPrefix string
}

// MediaService is the media store adapter: it persists exactly one blob per
// capsule and resolves stored references into signed, fetchable URLs.
type MediaService struct {
	repo    mediaStore
	storage mediaFileStorage
	signer  mediaSignedURLSigner
	logger  *zap.Logger
	cfg     MediaServiceConfig
}

// NewMediaService constructs the service.
func NewMediaService(repo mediaStore, storage mediaFileStorage, signer mediaSignedURLSigner, logger *zap.Logger, cfg MediaServiceConfig) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &MediaService{repo: repo, storage: storage, signer: signer, logger: logger, cfg: cfg}
}

// Put stores the blob and its metadata row, returning the media object whose
// id serves as the capsule's mediaRef. Size and MIME checks happen in draft
// validation before this point; Put only guards against a missing stream.
func (s *MediaService) Put(ctx context.Context, ownerID string, upload MediaUpload) (*models.MediaObject, error) {
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "media content is required")
	}
	media := &models.MediaObject{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		FileName:  sanitizeFileName(upload.FileName),
		MimeType:  upload.MimeType,
		SizeBytes: upload.SizeBytes,
		CreatedAt: time.Now().UTC(),
	}
	media.FilePath = fmt.Sprintf("%s/%s%s", ownerID, media.ID, path.Ext(media.FileName))

	if _, err := s.storage.SaveStream(media.FilePath, upload.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist media blob")
	}
	if err := s.repo.Create(ctx, media); err != nil {
		_ = s.storage.Delete(media.FilePath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create media metadata")
	}
	return media, nil
}

// Resolve turns a stored mediaRef into a fetchable signed URL.
func (s *MediaService) Resolve(ctx context.Context, mediaRef string) (string, error) {
	media, err := s.repo.GetByID(ctx, mediaRef)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media metadata")
	}
	if media == nil {
		return "", appErrors.ErrNotFound
	}
	token, _, err := s.signer.Generate(media.ID, media.FilePath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign media url")
	}
	return fmt.Sprintf("%s%s/media/%s?token=%s", s.cfg.BaseURL, s.cfg.APIPrefix, media.ID, token), nil
}

// Open validates a signed token and returns the blob stream for download.
func (s *MediaService) Open(ctx context.Context, mediaID, token string) (*MediaDownload, error) {
	tokenID, relPath, _, err := s.signer.Parse(token)
	if err != nil || tokenID != mediaID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired media token")
	}
	media, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media metadata")
	}
	if media == nil || media.FilePath != relPath {
		return nil, appErrors.ErrNotFound
	}
	file, err := s.storage.Open(media.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open media blob")
	}
	return &MediaDownload{
		File:      file,
		FileName:  media.FileName,
		MimeType:  media.MimeType,
		SizeBytes: media.SizeBytes,
	}, nil
}

// Remove deletes the metadata row and blob for a mediaRef. Used when the
// owning capsule is deleted; there is no update-in-place.
func (s *MediaService) Remove(ctx context.Context, mediaRef string) error {
	media, err := s.repo.GetByID(ctx, mediaRef)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media metadata")
	}
	if media == nil {
		return nil
	}
	if err := s.storage.Delete(media.FilePath); err != nil {
		s.logger.Warn("failed to delete media blob", zap.String("media_id", media.ID), zap.Error(err))
	}
	if err := s.repo.Delete(ctx, media.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete media metadata")
	}
	return nil
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "attachment"
	}
	return name
}
