package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const (
	oauthStateTTL       = 5 * time.Minute
	oauthStateMemoryCap = 10000
	oauthStateKeyPrefix = "oauth:state:"
)

// StateStore remembers the PKCE verifier issued with each OAuth state until
// the callback consumes it. Take must succeed at most once per state.
type StateStore interface {
	Save(ctx context.Context, state, verifier string) error
	Take(ctx context.Context, state string) (string, bool, error)
}

// MemoryStates keeps states in process. Suitable for a single API instance.
type MemoryStates struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, string]
}

func NewMemoryStates() *MemoryStates {
	return &MemoryStates{lru: expirable.NewLRU[string, string](oauthStateMemoryCap, nil, oauthStateTTL)}
}

func (m *MemoryStates) Save(_ context.Context, state, verifier string) error {
	m.lru.Add(state, verifier)
	return nil
}

func (m *MemoryStates) Take(_ context.Context, state string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	verifier, ok := m.lru.Get(state)
	if ok {
		m.lru.Remove(state)
	}
	return verifier, ok, nil
}

// RedisStates shares states between API replicas.
type RedisStates struct {
	Client redis.Cmdable
}

func (r RedisStates) Save(ctx context.Context, state, verifier string) error {
	return r.Client.Set(ctx, oauthStateKeyPrefix+state, verifier, oauthStateTTL).Err()
}

func (r RedisStates) Take(ctx context.Context, state string) (string, bool, error) {
	verifier, err := r.Client.GetDel(ctx, oauthStateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return verifier, true, nil
}
