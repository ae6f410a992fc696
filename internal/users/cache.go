package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"jobboard-backend/internal/shared/metrics"
)

// cacheSchemaVersion is bumped whenever cachedUser changes shape so stale
// entries are ignored instead of decoded into the wrong fields.
const cacheSchemaVersion = "1"

const defaultMemoryCacheSize = 4096

// Cache holds short-lived user snapshots keyed by id.
type Cache interface {
	Get(ctx context.Context, id string) (User, bool, error)
	Set(ctx context.Context, user User) error
	Delete(ctx context.Context, id string) error
}

type cachedUser struct {
	Version    string    `json:"version"`
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	IsActive   bool      `json:"is_active"`
	IsAdmin    bool      `json:"is_admin"`
	IsVerified bool      `json:"is_verified"`
	Coin       int       `json:"coin"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toCached(u User) cachedUser {
	return cachedUser{
		Version:    cacheSchemaVersion,
		ID:         u.ID,
		Email:      u.Email,
		IsActive:   u.IsActive,
		IsAdmin:    u.IsAdmin,
		IsVerified: u.IsVerified,
		Coin:       u.Coin,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (c cachedUser) user() User {
	u := User{
		Email:      c.Email,
		IsActive:   c.IsActive,
		IsAdmin:    c.IsAdmin,
		IsVerified: c.IsVerified,
		Coin:       c.Coin,
	}
	u.ID = c.ID
	u.CreatedAt = c.CreatedAt
	u.UpdatedAt = c.UpdatedAt
	return u
}

func cacheKey(id string) string {
	return "user:" + id
}

// CacheTTL mirrors the access token lifetime minus a safety margin.
func CacheTTL(accessTTL time.Duration) time.Duration {
	ttl := accessTTL - 10*time.Second
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

// RedisCache stores users as JSON under user:{id}.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, TTL: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id string) (User, bool, error) {
	raw, err := c.Client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.ObserveUserCache(false)
			return User{}, false, nil
		}
		return User{}, false, fmt.Errorf("cache get: %w", err)
	}
	var entry cachedUser
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Version != cacheSchemaVersion {
		metrics.ObserveUserCache(false)
		_ = c.Client.Del(ctx, cacheKey(id)).Err()
		return User{}, false, nil
	}
	metrics.ObserveUserCache(true)
	return entry.user(), true, nil
}

func (c *RedisCache) Set(ctx context.Context, user User) error {
	raw, err := json.Marshal(toCached(user))
	if err != nil {
		return err
	}
	if err := c.Client.Set(ctx, cacheKey(user.ID), raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	return c.Client.Del(ctx, cacheKey(id)).Err()
}

// MemoryCache is the in-process fallback used when REDIS_URL is empty.
type MemoryCache struct {
	lru *expirable.LRU[string, cachedUser]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = defaultMemoryCacheSize
	}
	return &MemoryCache{lru: expirable.NewLRU[string, cachedUser](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, id string) (User, bool, error) {
	entry, ok := c.lru.Get(cacheKey(id))
	if !ok || entry.Version != cacheSchemaVersion {
		metrics.ObserveUserCache(false)
		return User{}, false, nil
	}
	metrics.ObserveUserCache(true)
	return entry.user(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, user User) error {
	c.lru.Add(cacheKey(user.ID), toCached(user))
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, id string) error {
	c.lru.Remove(cacheKey(id))
	return nil
}
