package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flowkey/flowkey-booking/internal/inflight"
)

// DefaultTTL bounds how long an untouched draft is kept.
const DefaultTTL = 2 * time.Hour

// DefaultLockTTL bounds how long a crashed holder can keep a flow locked.
// It must exceed the FlowKey API timeout so a slow submission stays locked.
const DefaultLockTTL = 45 * time.Second

// Store keeps in-progress flows. Drafts are ephemeral: every Save renews the
// TTL and an expired draft reads as ErrFlowNotFound.
type Store interface {
	Save(ctx context.Context, f *Flow) error
	Load(ctx context.Context, id string) (*Flow, error)
	Delete(ctx context.Context, id string) error

	// Lock takes the flow for one load, change and save cycle. It fails
	// with ErrFlowBusy while another holder has it. release is idempotent.
	Lock(ctx context.Context, id string) (release func(), err error)
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store for single-instance deployments.
type MemoryStore struct {
	locks   inflight.Guard
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore creates a MemoryStore. ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// Save stores a copy of f.
func (s *MemoryStore) Save(_ context.Context, f *Flow) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("flow: marshal draft: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[f.ID] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Load returns a copy of the stored flow.
func (s *MemoryStore) Load(_ context.Context, id string) (*Flow, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if ok && !s.now().Before(entry.expiresAt) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrFlowNotFound
	}

	var f Flow
	if err := json.Unmarshal(entry.data, &f); err != nil {
		return nil, fmt.Errorf("flow: unmarshal draft: %w", err)
	}
	return &f, nil
}

// Delete removes a flow. Deleting an unknown id is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Lock takes the in-process lock for id.
func (s *MemoryStore) Lock(_ context.Context, id string) (func(), error) {
	release, ok := s.locks.TryAcquire(id)
	if !ok {
		return nil, ErrFlowBusy
	}
	return release, nil
}

// Sweep drops expired drafts and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// RedisStore keeps drafts in redis so any BFF instance can serve a flow.
type RedisStore struct {
	redis   *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// unlockScript deletes the lock only while it still holds the caller's token,
// so an expired holder cannot release a lock taken over by someone else.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisStore creates a RedisStore. ttl <= 0 uses DefaultTTL.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: redisClient, ttl: ttl, lockTTL: DefaultLockTTL}
}

// WithLockTTL overrides DefaultLockTTL.
func (s *RedisStore) WithLockTTL(ttl time.Duration) *RedisStore {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("flowkey:flow:%s", id)
}

func (s *RedisStore) lockKey(id string) string {
	return fmt.Sprintf("flowkey:flow:%s:lock", id)
}

// Lock takes a lock shared by every instance using the same redis.
func (s *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, s.lockKey(id), token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("flow: lock draft: %w", err)
	}
	if !ok {
		return nil, ErrFlowBusy
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// Released with a fresh context so a cancelled request still unlocks.
			_ = unlockScript.Run(context.Background(), s.redis, []string{s.lockKey(id)}, token).Err()
		})
	}, nil
}

// Save writes f with a fresh TTL.
func (s *RedisStore) Save(ctx context.Context, f *Flow) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("flow: marshal draft: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(f.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("flow: save draft: %w", err)
	}
	return nil
}

// Load reads a flow by id.
func (s *RedisStore) Load(ctx context.Context, id string) (*Flow, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("flow: load draft: %w", err)
	}

	var f Flow
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("flow: unmarshal draft: %w", err)
	}
	return &f, nil
}

// Delete removes a flow.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("flow: delete draft: %w", err)
	}
	return nil
}
