package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/crabcut/shortener/internal/errors"
	"github.com/crabcut/shortener/internal/model"
)

type PostgresURLRepository struct {
	db *sql.DB
}

func NewPostgresURLRepository(db *sql.DB) URLRepository {
	return &PostgresURLRepository{
		db: db,
	}
}

func (r *PostgresURLRepository) Create(ctx context.Context, url *model.URL) error {
	query := `
	INSERT INTO urls (long_url, short_url, click_count, created_at)
	VALUES ($1, $2, 0, $3)
	ON CONFLICT (short_url) DO NOTHING
	`

	createdAt := url.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query, url.LongURL, url.ShortCode, createdAt)
	if err != nil {
		return apperrors.NewBusinessError(
			"DATABASE_ERROR",
			fmt.Sprintf("failed to create URL for short code '%s'", url.ShortCode),
			err,
		)
	}

	return nil
}

func (r *PostgresURLRepository) GetLongURL(ctx context.Context, shortCode string) (string, error) {
	query := `
	SELECT long_url
	FROM urls
	WHERE short_url = $1
	`

	var longURL string
	err := r.db.QueryRowContext(ctx, query, shortCode).Scan(&longURL)

	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("short code '%s': %w", shortCode, apperrors.ErrURLNotFound)
	}

	if err != nil {
		return "", apperrors.NewBusinessError(
			"DATABASE_ERROR",
			"failed to look up URL",
			err,
		)
	}

	return longURL, nil
}

func (r *PostgresURLRepository) IsAliasAvailable(ctx context.Context, alias string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM urls WHERE short_url = $1)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, alias).Scan(&exists)
	if err != nil {
		return false, apperrors.NewBusinessError(
			"DATABASE_ERROR",
			"failed to check alias availability",
			err,
		)
	}

	return !exists, nil
}

func (r *PostgresURLRepository) IncrementClickCount(ctx context.Context, shortCode string) error {
	query := `
	UPDATE urls
	SET click_count = click_count + 1
	WHERE short_url = $1
	`

	// A vanished record is not an error: the click is simply dropped.
	_, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return apperrors.NewBusinessError(
			"DATABASE_ERROR",
			"failed to increment click count",
			err,
		)
	}

	return nil
}
