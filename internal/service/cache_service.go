package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

const cacheNamespace = "lms"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// Cache tags name the entity a cached view belongs to.
func StudentTag(id string) string { return "student:" + id }
func TeacherTag(id string) string { return "teacher:" + id }

const AdminTag = "admin"

// CacheKey builds a key scoped under a tag so the tag can be invalidated by pattern.
func CacheKey(tag, view string) string {
	return cacheNamespace + ":" + tag + ":" + view
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	hub        *InvalidationHub
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, hub *InvalidationHub, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, hub: hub, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate drops every cached view under the given tags and notifies subscribers.
// Subscribers are notified even when caching is disabled so clients still re-fetch.
func (s *CacheService) Invalidate(ctx context.Context, tags ...string) error {
	if s == nil || len(tags) == 0 {
		return nil
	}
	var firstErr error
	if s.Enabled() {
		for _, tag := range tags {
			pattern := CacheKey(tag, "*")
			removed, err := s.repo.DeleteByPattern(ctx, pattern)
			if err != nil {
				s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			s.logger.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("keys", removed))
		}
	}
	s.hub.Publish(tags...)
	return firstErr
}

// Invalidation is delivered to subscribers when cached views go stale.
type Invalidation struct {
	Tag    string    `json:"tag"`
	Entity string    `json:"entity"`
	At     time.Time `json:"at"`
}

func newInvalidation(tag string) Invalidation {
	entity := tag
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		entity = tag[:i]
	}
	return Invalidation{Tag: tag, Entity: entity, At: time.Now().UTC()}
}
