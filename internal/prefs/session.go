package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/checkmark/internal/roster"
)

const tableKeyTpl = "checkmark:table:%d:%d" // checkmark:table:${user}:${checkmark}

// DefaultSessionTTL is how long table state outlives the last request.
const DefaultSessionTTL = 8 * time.Hour

// Session stores JSON values that expire.
type Session interface {
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
	Clear(ctx context.Context, key string) error
}

// RedisSession keeps session values in redis.
type RedisSession struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSession(client *redis.Client, ttl time.Duration) *RedisSession {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSession{redis: client, ttl: ttl}
}

func (s *RedisSession) Load(ctx context.Context, key string, v any) (bool, error) {
	b, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load session %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, nil
	}
	// sliding expiry
	if err := s.redis.Expire(ctx, key, s.ttl).Err(); err != nil {
		return true, fmt.Errorf("failed to refresh session %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisSession) Save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", key, err)
	}
	return nil
}

func (s *RedisSession) Clear(ctx context.Context, key string) error {
	return s.redis.Del(ctx, key).Err()
}

// MemorySession is the single-process fallback when no redis is configured.
type MemorySession struct {
	ttl time.Duration
	now func() time.Time

	mu sync.Mutex
	m  map[string]memEntry
}

type memEntry struct {
	data    []byte
	expires time.Time
}

func NewMemorySession(ttl time.Duration) *MemorySession {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySession{ttl: ttl, now: time.Now, m: map[string]memEntry{}}
}

func (s *MemorySession) Load(_ context.Context, key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return false, nil
	}
	now := s.now()
	if now.After(e.expires) {
		delete(s.m, key)
		return false, nil
	}
	if err := json.Unmarshal(e.data, v); err != nil {
		return false, nil
	}
	e.expires = now.Add(s.ttl)
	s.m[key] = e
	return true, nil
}

func (s *MemorySession) Save(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = memEntry{data: b, expires: s.now().Add(s.ttl)}
	// drop expired entries while we hold the lock
	now := s.now()
	for k, e := range s.m {
		if now.After(e.expires) {
			delete(s.m, k)
		}
	}
	return nil
}

func (s *MemorySession) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// TableState is the submissions table setup a user keeps for one checkmark.
type TableState struct {
	s Session
}

func NewTableState(s Session) *TableState { return &TableState{s: s} }

// Load returns the saved query, or a default one.
func (t *TableState) Load(ctx context.Context, userID, checkmarkID int64) (roster.Query, error) {
	q := roster.Query{Filter: roster.FilterAll, Sort: "lastname", PerPage: 10}
	if _, err := t.s.Load(ctx, fmt.Sprintf(tableKeyTpl, userID, checkmarkID), &q); err != nil {
		return q, err
	}
	return q, nil
}

// Save stores q without the one-off selection.
func (t *TableState) Save(ctx context.Context, userID, checkmarkID int64, q roster.Query) error {
	q.Selected = nil
	return t.s.Save(ctx, fmt.Sprintf(tableKeyTpl, userID, checkmarkID), q)
}

// Merge overlays the parameters a request set explicitly onto the saved
// state, stores the result and returns it.
func (t *TableState) Merge(ctx context.Context, userID, checkmarkID int64, apply func(*roster.Query)) (roster.Query, error) {
	q, err := t.Load(ctx, userID, checkmarkID)
	if err != nil {
		return q, err
	}
	apply(&q)
	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, t.Save(ctx, userID, checkmarkID, q)
}
