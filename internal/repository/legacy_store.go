package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/dearfuture/capsule-api/internal/models"
	appErrors "github.com/dearfuture/capsule-api/pkg/errors"
)

// LegacyStore is a thin REST client implementing the capsule store contract
// against the legacy backend. The legacy service predates the canonical wire
// shape: it names the unlock instant "unlockDate" (epoch milliseconds), the
// owner "userId" and the attachment "media". This store normalises those
// records into the single Capsule shape so callers never see the difference.
type LegacyStore struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewLegacyStore constructs the client. baseURL points at the legacy API
// root, e.g. http://localhost:3000/api.
func NewLegacyStore(baseURL string, timeout time.Duration, logger *zap.Logger) *LegacyStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegacyStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type legacyCapsule struct {
	ID           string  `json:"id"`
	Slug         *string `json:"slug,omitempty"`
	UserID       string  `json:"userId"`
	Title        string  `json:"title"`
	Message      string  `json:"message"`
	UnlockDateMS int64   `json:"unlockDate"`
	CreatedAtMS  int64   `json:"createdAt"`
	Visibility   string  `json:"visibility"`
	Media        *string `json:"media,omitempty"`
	IsUnlocked   bool    `json:"isUnlocked"`
}

type legacyError struct {
	Error string `json:"error"`
}

func (c legacyCapsule) toModel() models.Capsule {
	return models.Capsule{
		ID:           c.ID,
		Slug:         c.Slug,
		OwnerID:      c.UserID,
		Title:        c.Title,
		Message:      c.Message,
		UnlockAt:     time.UnixMilli(c.UnlockDateMS).UTC(),
		CreatedAt:    time.UnixMilli(c.CreatedAtMS).UTC(),
		Visibility:   models.Visibility(c.Visibility),
		MediaRef:     c.Media,
		UnlockedHint: c.IsUnlocked,
	}
}

func fromModel(capsule *models.Capsule) legacyCapsule {
	return legacyCapsule{
		ID:           capsule.ID,
		Slug:         capsule.Slug,
		UserID:       capsule.OwnerID,
		Title:        capsule.Title,
		Message:      capsule.Message,
		UnlockDateMS: capsule.UnlockAt.UnixMilli(),
		CreatedAtMS:  capsule.CreatedAt.UnixMilli(),
		Visibility:   string(capsule.Visibility),
		Media:        capsule.MediaRef,
		IsUnlocked:   capsule.UnlockedHint,
	}
}

// Create persists a new capsule through the legacy API. The legacy service
// assigns id and createdAt; both are copied back onto the record.
func (s *LegacyStore) Create(ctx context.Context, capsule *models.Capsule) error {
	payload, err := json.Marshal(fromModel(capsule))
	if err != nil {
		return fmt.Errorf("encode capsule: %w", err)
	}
	created, err := s.do(ctx, http.MethodPost, "/capsules", payload)
	if err != nil {
		return err
	}
	if created == nil {
		return appErrors.Clone(appErrors.ErrUpstream, "legacy store returned no record on create")
	}
	capsule.ID = created.ID
	capsule.CreatedAt = time.UnixMilli(created.CreatedAtMS).UTC()
	if created.Slug != nil {
		capsule.Slug = created.Slug
	}
	return nil
}

// GetByID returns a capsule by identifier, or nil when absent.
func (s *LegacyStore) GetByID(ctx context.Context, id string) (*models.Capsule, error) {
	raw, err := s.do(ctx, http.MethodGet, "/capsules/"+url.PathEscape(id), nil)
	if err != nil || raw == nil {
		return nil, err
	}
	capsule := raw.toModel()
	return &capsule, nil
}

// GetBySlug resolves a share slug, or nil when absent.
func (s *LegacyStore) GetBySlug(ctx context.Context, slug string) (*models.Capsule, error) {
	raw, err := s.do(ctx, http.MethodGet, "/capsules/shared/"+url.PathEscape(slug), nil)
	if err != nil || raw == nil {
		return nil, err
	}
	capsule := raw.toModel()
	return &capsule, nil
}

// ListByOwner returns the owner's capsules.
func (s *LegacyStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.Capsule, error) {
	req, err := s.newRequest(ctx, http.MethodGet, "/capsules/user/"+url.PathEscape(ownerID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "legacy store unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, s.statusError(resp)
	}

	var raw []legacyCapsule
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "invalid legacy store response")
	}
	capsules := make([]models.Capsule, 0, len(raw))
	for _, c := range raw {
		if limit > 0 && len(capsules) >= limit {
			break
		}
		capsules = append(capsules, c.toModel())
	}
	return capsules, nil
}

// Delete removes a capsule record.
func (s *LegacyStore) Delete(ctx context.Context, id string) error {
	req, err := s.newRequest(ctx, http.MethodDelete, "/capsules/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "legacy store unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return appErrors.ErrNotFound
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return s.statusError(resp)
	}
}

func (s *LegacyStore) do(ctx context.Context, method, path string, body []byte) (*legacyCapsule, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := s.newRequest(ctx, method, path, reader)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "legacy store unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, s.statusError(resp)
	}

	var raw legacyCapsule
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "invalid legacy store response")
	}
	return &raw, nil
}

func (s *LegacyStore) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build legacy request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (s *LegacyStore) statusError(resp *http.Response) error {
	var le legacyError
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&le); err == nil && le.Error != "" {
		s.logger.Warn("legacy store error", zap.Int("status", resp.StatusCode), zap.String("error", le.Error))
		return appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("legacy store: %s", le.Error))
	}
	return appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("legacy store returned status %d", resp.StatusCode))
}
