package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/models"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// ProfileCacheTTL bounds how stale a cached profile can get
	ProfileCacheTTL = 10 * time.Minute
)

// profileStore is the directory the cache reads through to.
type profileStore interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) ([]models.Profile, error)
	Put(ctx context.Context, p *models.Profile) error
	NewKey(ctx context.Context) (string, error)
}

// ProfileCache keeps point reads of profiles in Redis. Email queries always go
// to the directory. Redis failures degrade to a cache miss.
type ProfileCache struct {
	dir profileStore
	rdb *redis.Client
	ttl time.Duration
	log logging.Logger
}

func NewProfileCache(dir profileStore, rdb *redis.Client, log logging.Logger) *ProfileCache {
	return &ProfileCache{dir: dir, rdb: rdb, ttl: ProfileCacheTTL, log: log}
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s%s:%s", CacheKeyPrefix, resource, identifier)
}

func (c *ProfileCache) Get(ctx context.Context, id string) (*models.Profile, error) {
	key := CacheKey("profile", id)
	if val, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var p models.Profile
		if err := json.Unmarshal(val, &p); err == nil {
			return &p, nil
		}
	}

	p, err := c.dir.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, p)
	return p, nil
}

func (c *ProfileCache) FindByEmail(ctx context.Context, email string) ([]models.Profile, error) {
	return c.dir.FindByEmail(ctx, email)
}

// Put writes through to the directory, then refreshes the cached copy. If the
// write fails the cached copy is dropped.
func (c *ProfileCache) Put(ctx context.Context, p *models.Profile) error {
	if err := c.dir.Put(ctx, p); err != nil {
		if p != nil && p.ID != "" {
			c.rdb.Del(ctx, CacheKey("profile", p.ID))
		}
		return err
	}
	c.store(ctx, p)
	return nil
}

func (c *ProfileCache) NewKey(ctx context.Context) (string, error) {
	return c.dir.NewKey(ctx)
}

func (c *ProfileCache) store(ctx context.Context, p *models.Profile) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, CacheKey("profile", p.ID), data, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "profile cache write failed", "user_id", p.ID, "error", err)
	}
}
