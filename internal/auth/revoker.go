package auth

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers revoked token ids until their natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NewRevoker builds a Redis-backed revoker, or an in-memory one when no
// Redis address is configured. In-memory revocation does not survive a
// restart, which is acceptable because tokens expire on their own.
func NewRevoker(redisAddr string) Revoker {
	if redisAddr == "" {
		log.Printf("token revoker: redis not configured, using in-memory store")
		return newMemoryRevoker()
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	log.Printf("token revoker: redis addr=%s", redisAddr)
	return &redisRevoker{client: client}
}

type redisRevoker struct {
	client *redis.Client
}

func (r *redisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.client.Set(ctx, revocationKey(tokenID), "1", ttl).Err()
}

func (r *redisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	count, err := r.client.Exists(ctx, revocationKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func revocationKey(tokenID string) string {
	return "revoked_token:" + tokenID
}

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newMemoryRevoker() *memoryRevoker {
	return &memoryRevoker{revoked: make(map[string]time.Time)}
}

func (m *memoryRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = time.Now().Add(ttl)
	return nil
}

func (m *memoryRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(m.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
