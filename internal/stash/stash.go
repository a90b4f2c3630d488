// Package stash implements the short-lived staging slot used to keep a reset
// token out of browser history and referrer headers: a token arriving on a
// raw link is put in the slot keyed by the anonymous session, the client is
// redirected to the same endpoint without the token, and the next request
// takes it. A slot is read once and then cleared.
package stash

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// TTL bounds how long a staged token survives the redirect round-trip.
const TTL = 5 * time.Minute

// Stash is a single-read staging slot keyed by session ID.
type Stash interface {
	// Put stages a token for the session, replacing any previous one.
	Put(ctx context.Context, sessionID, token string) error

	// Take returns the staged token and clears the slot. The second return
	// is false when the slot is empty or expired.
	Take(ctx context.Context, sessionID string) (string, bool, error)
}

type redisStash struct {
	client *redis.Client
}

// NewRedisStash creates a Redis-backed Stash.
func NewRedisStash(addr, password string, db int) Stash {
	return &redisStash{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func key(sessionID string) string {
	return fmt.Sprintf("pwreset:stash:%s", sessionID)
}

func (s *redisStash) Put(ctx context.Context, sessionID, token string) error {
	return s.client.Set(ctx, key(sessionID), token, TTL).Err()
}

func (s *redisStash) Take(ctx context.Context, sessionID string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return val, true, nil
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

type memoryStash struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStash creates an in-process Stash, used in tests and single-node
// deployments without Redis.
func NewMemoryStash() Stash {
	return &memoryStash{entries: make(map[string]memoryEntry)}
}

func (s *memoryStash) Put(_ context.Context, sessionID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[sessionID] = memoryEntry{token: token, expiresAt: time.Now().Add(TTL)}
	return nil
}

func (s *memoryStash) Take(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionID]
	if !ok {
		return "", false, nil
	}

	delete(s.entries, sessionID)
	if time.Now().After(entry.expiresAt) {
		return "", false, nil
	}

	return entry.token, true, nil
}
