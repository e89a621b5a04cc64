package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/crabcut/shortener/internal/errors"
	"github.com/crabcut/shortener/internal/model"
)

func newMockRepo(t *testing.T) (URLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return NewPostgresURLRepository(db), mock, db
}

func TestPostgresURLRepository_Create(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	url := &model.URL{
		LongURL:   "https://example.com/a",
		ShortCode: "abc123",
		CreatedAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO urls").
		WithArgs(url.LongURL, url.ShortCode, url.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), url)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresURLRepository_Create_DuplicateIsNoop(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	url := &model.URL{
		LongURL:   "https://example.com/a",
		ShortCode: "abc123",
		CreatedAt: time.Now(),
	}

	// ON CONFLICT DO NOTHING: zero rows affected, still a success.
	mock.ExpectExec("INSERT INTO urls").
		WithArgs(url.LongURL, url.ShortCode, url.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), url)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresURLRepository_Create_StorageError(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	url := &model.URL{
		LongURL:   "https://example.com/a",
		ShortCode: "abc123",
		CreatedAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO urls").
		WithArgs(url.LongURL, url.ShortCode, url.CreatedAt).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), url)
	assert.Error(t, err)
	assert.True(t, apperrors.IsBusinessError(err))
}

func TestPostgresURLRepository_GetLongURL(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectQuery("SELECT long_url").
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"long_url"}).AddRow("https://example.com/a"))

	longURL, err := repo.GetLongURL(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", longURL)
}

func TestPostgresURLRepository_GetLongURL_NotFound(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectQuery("SELECT long_url").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetLongURL(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrURLNotFound)
	assert.False(t, apperrors.IsBusinessError(err), "not-found must be distinct from storage failure")
}

func TestPostgresURLRepository_GetLongURL_StorageError(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectQuery("SELECT long_url").
		WithArgs("abc123").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetLongURL(context.Background(), "abc123")
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessError(err))
	assert.False(t, errors.Is(err, apperrors.ErrURLNotFound))
}

func TestPostgresURLRepository_IsAliasAvailable(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		want   bool
	}{
		{"alias taken", true, false},
		{"alias free", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newMockRepo(t)
			defer db.Close()

			mock.ExpectQuery("SELECT EXISTS").
				WithArgs("abc123").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			available, err := repo.IsAliasAvailable(context.Background(), "abc123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, available)
		})
	}
}

func TestPostgresURLRepository_IsAliasAvailable_StorageError(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("abc123").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.IsAliasAvailable(context.Background(), "abc123")
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessError(err))
}

func TestPostgresURLRepository_IncrementClickCount(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectExec("UPDATE urls").
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.IncrementClickCount(context.Background(), "abc123")
	assert.NoError(t, err)
}

func TestPostgresURLRepository_IncrementClickCount_MissingRowIsNoop(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectExec("UPDATE urls").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementClickCount(context.Background(), "missing")
	assert.NoError(t, err)
}
