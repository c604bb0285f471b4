package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/dearfuture/capsule-api/internal/models"
)

func newMediaRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMediaRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newMediaRepoMock(t)
	defer cleanup()

	repo := NewMediaRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO media")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	media := &models.MediaObject{
		OwnerID:   "alice",
		FileName:  "photo.jpg",
		MimeType:  "image/jpeg",
		SizeBytes: 1024,
		FilePath:  "alice/m1.jpg",
	}
	require.NoError(t, repo.Create(context.Background(), media))
	require.NotEmpty(t, media.ID)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "file_name", "mime_type", "size_bytes", "file_path", "created_at"}).
		AddRow(media.ID, media.OwnerID, media.FileName, media.MimeType, media.SizeBytes, media.FilePath, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, file_name")).
		WithArgs(media.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), media.ID)
	require.NoError(t, err)
	require.Equal(t, media.FilePath, found.FilePath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaRepositoryGetByIDAbsentIsNil(t *testing.T) {
	db, mock, cleanup := newMediaRepoMock(t)
	defer cleanup()

	repo := NewMediaRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, file_name")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "file_name", "mime_type", "size_bytes", "file_path", "created_at"}))

	media, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, media)
}

func TestMediaRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMediaRepoMock(t)
	defer cleanup()

	repo := NewMediaRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM media WHERE id = $1")).
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "m1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
