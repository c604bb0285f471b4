package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dearfuture/capsule-api/internal/models"
	appErrors "github.com/dearfuture/capsule-api/pkg/errors"
	"github.com/dearfuture/capsule-api/pkg/storage"
)

type stubMediaRepo struct {
	objects   map[string]*models.MediaObject
	createErr error
}

func newStubMediaRepo() *stubMediaRepo {
	return &stubMediaRepo{objects: map[string]*models.MediaObject{}}
}

func (r *stubMediaRepo) Create(_ context.Context, media *models.MediaObject) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.objects[media.ID] = media
	return nil
}

func (r *stubMediaRepo) GetByID(_ context.Context, id string) (*models.MediaObject, error) {
	return r.objects[id], nil
}

func (r *stubMediaRepo) Delete(_ context.Context, id string) error {
	delete(r.objects, id)
	return nil
}

func newTestMediaService(t *testing.T, repo *stubMediaRepo) (*MediaService, *storage.SignedURLSigner) {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewMediaService(repo, local, signer, nil, MediaServiceConfig{
		BaseURL:   "http://localhost:8080",
		APIPrefix: "/api/v1",
	})
	return svc, signer
}

func TestMediaServicePutAndOpen(t *testing.T) {
	repo := newStubMediaRepo()
	svc, signer := newTestMediaService(t, repo)

	media, err := svc.Put(context.Background(), "alice", MediaUpload{
		FileName:  "photo.jpg",
		MimeType:  "image/jpeg",
		SizeBytes: 11,
		Content:   strings.NewReader("jpeg bytes!"),
	})
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", media.FileName)
	assert.True(t, strings.HasPrefix(media.FilePath, "alice/"))

	token, _, err := signer.Generate(media.ID, media.FilePath)
	require.NoError(t, err)

	download, err := svc.Open(context.Background(), media.ID, token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes!", string(content))
	assert.Equal(t, "image/jpeg", download.MimeType)
}

func TestMediaServicePutRollsBackBlobOnMetadataFailure(t *testing.T) {
	repo := newStubMediaRepo()
	repo.createErr = errors.New("insert failed")
	svc, _ := newTestMediaService(t, repo)

	_, err := svc.Put(context.Background(), "alice", MediaUpload{
		FileName:  "photo.jpg",
		MimeType:  "image/jpeg",
		SizeBytes: 4,
		Content:   strings.NewReader("data"),
	})
	require.Error(t, err)
	assert.Empty(t, repo.objects)
}

func TestMediaServiceOpenRejectsForeignToken(t *testing.T) {
	repo := newStubMediaRepo()
	svc, signer := newTestMediaService(t, repo)

	media, err := svc.Put(context.Background(), "alice", MediaUpload{
		FileName:  "clip.mp4",
		MimeType:  "video/mp4",
		SizeBytes: 5,
		Content:   strings.NewReader("video"),
	})
	require.NoError(t, err)

	token, _, err := signer.Generate("some-other-id", media.FilePath)
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), media.ID, token)
	typed := appErrors.FromError(err)
	require.NotNil(t, typed)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, typed.Code, "token bound to a different media id")
}

func TestMediaServiceResolve(t *testing.T) {
	repo := newStubMediaRepo()
	svc, _ := newTestMediaService(t, repo)

	media, err := svc.Put(context.Background(), "alice", MediaUpload{
		FileName:  "photo.png",
		MimeType:  "image/png",
		SizeBytes: 3,
		Content:   strings.NewReader("png"),
	})
	require.NoError(t, err)

	url, err := svc.Resolve(context.Background(), media.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/api/v1/media/"+media.ID+"?token="))

	_, err = svc.Resolve(context.Background(), "missing")
	typed := appErrors.FromError(err)
	require.NotNil(t, typed)
	assert.Equal(t, appErrors.ErrNotFound.Code, typed.Code)
}
