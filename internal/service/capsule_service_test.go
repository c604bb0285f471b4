package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dearfuture/capsule-api/internal/models"
	appErrors "github.com/dearfuture/capsule-api/pkg/errors"
)

type stubStore struct {
	capsules map[string]*models.Capsule
	bySlug   map[string]*models.Capsule
	createFn func(*models.Capsule) error
	deleted  []string
}

func newStubStore() *stubStore {
	return &stubStore{
		capsules: map[string]*models.Capsule{},
		bySlug:   map[string]*models.Capsule{},
	}
}

func (s *stubStore) add(c *models.Capsule) {
	s.capsules[c.ID] = c
	if c.Slug != nil {
		s.bySlug[*c.Slug] = c
	}
}

func (s *stubStore) Create(_ context.Context, c *models.Capsule) error {
	if s.createFn != nil {
		return s.createFn(c)
	}
	if c.ID == "" {
		c.ID = "generated-id"
	}
	c.CreatedAt = time.Now().UTC()
	s.add(c)
	return nil
}

func (s *stubStore) GetByID(_ context.Context, id string) (*models.Capsule, error) {
	return s.capsules[id], nil
}

func (s *stubStore) GetBySlug(_ context.Context, slug string) (*models.Capsule, error) {
	return s.bySlug[slug], nil
}

func (s *stubStore) ListByOwner(_ context.Context, ownerID string, _ int) ([]models.Capsule, error) {
	var out []models.Capsule
	for _, c := range s.capsules {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubStore) Delete(_ context.Context, id string) error {
	if _, ok := s.capsules[id]; !ok {
		return appErrors.ErrNotFound
	}
	delete(s.capsules, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubMedia struct {
	putErr  error
	put     []string
	removed []string
}

func (m *stubMedia) Put(_ context.Context, ownerID string, upload MediaUpload) (*models.MediaObject, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	id := "media-" + upload.FileName
	m.put = append(m.put, id)
	return &models.MediaObject{ID: id, OwnerID: ownerID, FileName: upload.FileName}, nil
}

func (m *stubMedia) Resolve(_ context.Context, mediaRef string) (string, error) {
	return "https://cdn.example.com/media/" + mediaRef + "?token=abc", nil
}

func (m *stubMedia) Remove(_ context.Context, mediaRef string) error {
	m.removed = append(m.removed, mediaRef)
	return nil
}

type stubCache struct {
	entries map[string]*models.Capsule
	gets    int
	hits    int
	sets    int
	deleted []string
}

func newStubCache() *stubCache {
	return &stubCache{entries: map[string]*models.Capsule{}}
}

func (c *stubCache) Get(_ context.Context, key string, dest interface{}) error {
	c.gets++
	cached, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	*(dest.(*models.Capsule)) = *cached
	return nil
}

func (c *stubCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.sets++
	record := value.(*models.Capsule)
	copied := *record
	c.entries[key] = &copied
	return nil
}

func (c *stubCache) Delete(_ context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	delete(c.entries, key)
	return nil
}

func newTestService(store *stubStore, media *stubMedia, cache *stubCache, now time.Time) *CapsuleService {
	svc := NewCapsuleService(store, media, cache, nil, nil, time.Minute)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCapsuleServiceCreate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	media := &stubMedia{}
	svc := newTestService(store, media, newStubCache(), now)

	draft := models.CapsuleDraft{
		Title:      "Graduation",
		Message:    "open me later",
		UnlockAt:   now.Add(48 * time.Hour),
		Visibility: models.VisibilityShareable,
	}
	view, err := svc.Create(context.Background(), "alice", draft, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateLocked, view.State)
	assert.True(t, view.IsOwner)
	require.NotNil(t, view.Slug, "shareable capsules get a slug")
	assert.Empty(t, view.Message, "locked view must not carry the message")

	stored := store.capsules[view.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "open me later", stored.Message)
}

func TestCapsuleServiceCreateRejectsInvalidDraft(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(newStubStore(), &stubMedia{}, newStubCache(), now)

	_, err := svc.Create(context.Background(), "alice", models.CapsuleDraft{
		Title:      "",
		Message:    "",
		UnlockAt:   now.Add(-time.Hour),
		Visibility: models.VisibilityPrivate,
	}, nil)
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
	assert.Len(t, typed.Details, 3)
}

func TestCapsuleServiceCreateRollsBackMediaOnStoreFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	store.createFn = func(*models.Capsule) error { return errors.New("insert failed") }
	media := &stubMedia{}
	svc := newTestService(store, media, newStubCache(), now)

	_, err := svc.Create(context.Background(), "alice", models.CapsuleDraft{
		Title:      "Trip",
		Message:    "hello",
		UnlockAt:   now.Add(time.Hour),
		Visibility: models.VisibilityPrivate,
	}, &MediaUpload{FileName: "clip.mp4", MimeType: "video/mp4", SizeBytes: 2048})

	require.Error(t, err)
	require.Len(t, media.put, 1)
	assert.Equal(t, media.put, media.removed, "orphaned blob must be rolled back")
}

func TestCapsuleServiceGetView(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	mediaRef := "media-1"
	store.add(&models.Capsule{
		ID: "c1", OwnerID: "alice", Title: "Open", Message: "surprise",
		UnlockAt: now.Add(-time.Hour), Visibility: models.VisibilityPublic,
		MediaRef: &mediaRef, CreatedAt: now.Add(-48 * time.Hour),
	})
	store.add(&models.Capsule{
		ID: "c2", OwnerID: "alice", Title: "Secret", Message: "hidden",
		UnlockAt: now.Add(time.Hour), Visibility: models.VisibilityPrivate,
		CreatedAt: now.Add(-time.Hour),
	})
	svc := newTestService(store, &stubMedia{}, newStubCache(), now)

	view, err := svc.GetView(context.Background(), "c1", models.Viewer{Identity: "bob"})
	require.NoError(t, err)
	assert.Equal(t, models.StateUnlocked, view.State)
	assert.Equal(t, "surprise", view.Message)
	assert.Equal(t, "https://cdn.example.com/media/media-1?token=abc", view.MediaURL)

	_, err = svc.GetView(context.Background(), "c2", models.Viewer{Identity: "bob"})
	typed := appErrors.FromError(err)
	require.NotNil(t, typed)
	assert.Equal(t, appErrors.ErrNotFound.Code, typed.Code, "private capsule hidden from strangers")

	_, err = svc.GetView(context.Background(), "missing", models.Viewer{Identity: "alice"})
	typed = appErrors.FromError(err)
	require.NotNil(t, typed)
	assert.Equal(t, appErrors.ErrNotFound.Code, typed.Code, "absent and unauthorized are indistinguishable")
}

func TestCapsuleServiceGetSharedViewCachesRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	slug := "abc123def456"
	store.add(&models.Capsule{
		ID: "c1", Slug: &slug, OwnerID: "alice", Title: "Shared", Message: "psst",
		UnlockAt: now.Add(time.Hour), Visibility: models.VisibilityShareable,
		CreatedAt: now.Add(-time.Hour),
	})
	cache := newStubCache()
	svc := newTestService(store, &stubMedia{}, cache, now)

	view, err := svc.GetSharedView(context.Background(), slug, models.Viewer{})
	require.NoError(t, err)
	assert.Equal(t, models.StateLocked, view.State)
	assert.Empty(t, view.Message)
	assert.Nil(t, view.Slug, "slug is owner-only even on shared lookups")
	assert.Equal(t, 1, cache.sets)

	_, err = svc.GetSharedView(context.Background(), slug, models.Viewer{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits, "second lookup served from cache")
}

func TestCapsuleServiceListOwnerViews(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	store.add(&models.Capsule{
		ID: "c1", OwnerID: "alice", Title: "One", Message: "a",
		UnlockAt: now.Add(-time.Hour), Visibility: models.VisibilityPrivate,
		CreatedAt: now.Add(-2 * time.Hour),
	})
	store.add(&models.Capsule{
		ID: "c2", OwnerID: "alice", Title: "Two", Message: "b",
		UnlockAt: now.Add(time.Hour), Visibility: models.VisibilityPublic,
		CreatedAt: now.Add(-2 * time.Hour),
	})
	svc := newTestService(store, &stubMedia{}, newStubCache(), now)

	views, err := svc.ListOwnerViews(context.Background(), "alice", models.Viewer{Identity: "alice"}, 0)
	require.NoError(t, err)
	assert.Len(t, views, 2)
	for _, v := range views {
		if v.State == models.StateLocked {
			assert.Empty(t, v.Message)
		}
	}

	_, err = svc.ListOwnerViews(context.Background(), "alice", models.Viewer{Identity: "mallory"}, 0)
	typed := appErrors.FromError(err)
	require.NotNil(t, typed)
	assert.Equal(t, appErrors.ErrNotFound.Code, typed.Code, "foreign listings reveal nothing")
}

func TestCapsuleServiceDelete(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	slug := "slug12345678"
	mediaRef := "media-9"
	store.add(&models.Capsule{
		ID: "c1", Slug: &slug, OwnerID: "alice", Title: "Bye", Message: "x",
		UnlockAt: now.Add(time.Hour), Visibility: models.VisibilityShareable,
		MediaRef: &mediaRef, CreatedAt: now,
	})
	store.add(&models.Capsule{
		ID: "c2", OwnerID: "alice", Title: "Mine", Message: "y",
		UnlockAt: now.Add(time.Hour), Visibility: models.VisibilityPrivate,
		CreatedAt: now,
	})
	media := &stubMedia{}
	cache := newStubCache()
	svc := newTestService(store, media, cache, now)

	err := svc.Delete(context.Background(), "c1", models.Viewer{Identity: "mallory"})
	typed := appErrors.FromError(err)
	require.NotNil(t, typed)
	assert.Equal(t, appErrors.ErrForbidden.Code, typed.Code)

	err = svc.Delete(context.Background(), "c2", models.Viewer{Identity: "mallory"})
	typed = appErrors.FromError(err)
	require.NotNil(t, typed)
	assert.Equal(t, appErrors.ErrNotFound.Code, typed.Code, "private capsules stay invisible to strangers")

	err = svc.Delete(context.Background(), "c1", models.Viewer{Identity: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"media-9"}, media.removed)
	assert.Equal(t, []string{"capsule:slug:" + slug}, cache.deleted)
	assert.Contains(t, store.deleted, "c1")
}

func TestCapsuleServiceExportUnlocked(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	store.add(&models.Capsule{
		ID: "c1", OwnerID: "alice", Title: "Past", Message: "open secret",
		UnlockAt: now.Add(-time.Hour), Visibility: models.VisibilityPrivate,
		CreatedAt: now.Add(-48 * time.Hour),
	})
	store.add(&models.Capsule{
		ID: "c2", OwnerID: "alice", Title: "Future", Message: "sealed secret",
		UnlockAt: now.Add(time.Hour), Visibility: models.VisibilityPrivate,
		CreatedAt: now.Add(-48 * time.Hour),
	})
	svc := newTestService(store, &stubMedia{}, newStubCache(), now)

	payload, contentType, err := svc.ExportUnlocked(context.Background(), "alice", models.Viewer{Identity: "alice"}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "open secret")
	assert.NotContains(t, string(payload), "sealed secret", "locked content never leaves through exports")

	_, _, err = svc.ExportUnlocked(context.Background(), "alice", models.Viewer{Identity: "bob"}, "csv")
	typed := appErrors.FromError(err)
	require.NotNil(t, typed)
	assert.Equal(t, appErrors.ErrNotFound.Code, typed.Code)

	_, _, err = svc.ExportUnlocked(context.Background(), "alice", models.Viewer{Identity: "alice"}, "xml")
	typed = appErrors.FromError(err)
	require.NotNil(t, typed)
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
}
