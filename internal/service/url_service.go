package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crabcut/shortener/internal/cache"
	apperrors "github.com/crabcut/shortener/internal/errors"
	"github.com/crabcut/shortener/internal/model"
	"github.com/crabcut/shortener/internal/repository"
	"github.com/crabcut/shortener/internal/utils"
	"github.com/crabcut/shortener/internal/worker"
)

// ClickDispatcher hands redirect side effects to the background pool.
type ClickDispatcher interface {
	Enqueue(task worker.ClickTask) bool
}

// URLService orchestrates alias creation and redirect resolution over the
// store, the cache and the click pipeline. Only the store answer is
// authoritative; the cache is a disposable view of it.
type URLService struct {
	urlRepo  repository.URLRepository
	cache    cache.Cache
	clicks   ClickDispatcher
	baseURL  string
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewURLService(
	urlRepo repository.URLRepository,
	c cache.Cache,
	clicks ClickDispatcher,
	baseURL string,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *URLService {
	return &URLService{
		urlRepo:  urlRepo,
		cache:    c,
		clicks:   clicks,
		baseURL:  baseURL,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// CreateShortURL handles both creation paths. With no alias the code is
// derived deterministically from the URL, so resubmitting the same URL is
// deduplicated by the idempotent insert without any uniqueness check. With an
// alias the availability check runs first and fails closed: an unverifiable
// alias is treated as taken rather than risking a silent overwrite.
func (s *URLService) CreateShortURL(ctx context.Context, req *model.CreateURLRequest) (*model.CreateURLResponse, error) {
	longURL := utils.SanitizeInput(req.LongURL)
	if longURL == "" {
		return nil, apperrors.NewValidationError("long_url", "URL cannot be empty")
	}

	if err := utils.ValidateURL(longURL); err != nil {
		return nil, err
	}

	alias := strings.TrimSpace(req.CustomAlias)

	var shortCode string
	if alias == "" {
		shortCode = utils.DeriveShortCode(longURL)
	} else {
		if !utils.ValidateAlias(alias) {
			return nil, apperrors.NewValidationError("custom_alias",
				fmt.Sprintf("alias must be 1-%d characters from [A-Za-z0-9]", utils.MaxAliasLength))
		}

		available, err := s.urlRepo.IsAliasAvailable(ctx, alias)
		if err != nil {
			s.logger.Warn("alias availability check failed, treating as taken",
				zap.String("alias", alias),
				zap.Error(err))
			return nil, fmt.Errorf("alias '%s': %w", alias, apperrors.ErrAliasExists)
		}
		if !available {
			return nil, fmt.Errorf("alias '%s': %w", alias, apperrors.ErrAliasExists)
		}

		shortCode = alias
	}

	url := &model.URL{
		LongURL:   longURL,
		ShortCode: shortCode,
		CreatedAt: time.Now(),
	}

	if err := s.urlRepo.Create(ctx, url); err != nil {
		return nil, err
	}

	return &model.CreateURLResponse{
		ShortURL: s.buildShortURL(shortCode),
	}, nil
}

// ResolveURL answers the redirect. The cache is consulted first; any cache
// failure counts as a miss and the store decides. The returned URL is final
// before any side effect runs: click counting, TTL refresh and telemetry are
// queued for the background pool and never delay or fail the response.
func (s *URLService) ResolveURL(ctx context.Context, shortCode string, meta model.ClickMetadata) (string, error) {
	if shortCode == "" {
		return "", apperrors.NewValidationError("short_code", "short code cannot be empty")
	}

	key := cache.CacheKeys.URL(shortCode)

	longURL, err := s.cache.GetString(ctx, key)
	if err == nil {
		s.dispatchClick(shortCode, true, meta)
		return longURL, nil
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache lookup failed, falling back to storage",
			zap.String("short_code", shortCode),
			zap.Error(err))
	}

	longURL, err = s.urlRepo.GetLongURL(ctx, shortCode)
	if err != nil {
		return "", err
	}

	if err := s.cache.SetWithExpiry(ctx, key, longURL, s.cacheTTL); err != nil {
		s.logger.Warn("failed to backfill cache",
			zap.String("short_code", shortCode),
			zap.Error(err))
	}

	s.dispatchClick(shortCode, false, meta)
	return longURL, nil
}

func (s *URLService) dispatchClick(shortCode string, cacheHit bool, meta model.ClickMetadata) {
	s.clicks.Enqueue(worker.ClickTask{
		ShortCode: shortCode,
		CacheHit:  cacheHit,
		Event: model.ClickEvent{
			ShortCode: shortCode,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Referrer:  meta.Referrer,
			Timestamp: time.Now(),
		},
	})
}

func (s *URLService) buildShortURL(shortCode string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, shortCode)
}
