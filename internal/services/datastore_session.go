package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/calcbridge-backend/internal/clients/upstream"
)

// DataItem is one upstream record; "uuid" is its key.
type DataItem = upstream.Item

// SessionDataRepo persists one ordered item list per session.
type SessionDataRepo interface {
	Load(ctx context.Context, sessionID uuid.UUID) ([]DataItem, error)
	Save(ctx context.Context, sessionID uuid.UUID, items []DataItem) error
}

type memorySessionDataRepo struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]sessionDataEntry
}

type sessionDataEntry struct {
	items     []DataItem
	expiresAt time.Time
}

// NewMemorySessionDataRepo keeps each session's list in process until ttl
// after its last write. ttl <= 0 keeps it forever.
func NewMemorySessionDataRepo(ttl time.Duration) SessionDataRepo {
	return &memorySessionDataRepo{
		ttl:     ttl,
		now:     time.Now,
		entries: map[uuid.UUID]sessionDataEntry{},
	}
}

func (r *memorySessionDataRepo) Load(ctx context.Context, sessionID uuid.UUID) ([]DataItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok || r.expiredLocked(e) {
		delete(r.entries, sessionID)
		return []DataItem{}, nil
	}
	return append([]DataItem{}, e.items...), nil
}

func (r *memorySessionDataRepo) Save(ctx context.Context, sessionID uuid.UUID, items []DataItem) error {
	e := sessionDataEntry{items: append([]DataItem{}, items...)}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ttl > 0 {
		e.expiresAt = r.now().Add(r.ttl)
	}
	for id, other := range r.entries {
		if r.expiredLocked(other) {
			delete(r.entries, id)
		}
	}
	r.entries[sessionID] = e
	return nil
}

func (r *memorySessionDataRepo) expiredLocked(e sessionDataEntry) bool {
	return !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt)
}

type redisSessionDataRepo struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

const sessionDataKeyPrefix = "datastore:"

// NewRedisSessionDataRepo stores each session as a JSON array that expires
// ttl after its last write. ttl <= 0 keeps it forever.
func NewRedisSessionDataRepo(rdb goredis.UniversalClient, ttl time.Duration) SessionDataRepo {
	if ttl < 0 {
		ttl = 0
	}
	return &redisSessionDataRepo{rdb: rdb, ttl: ttl}
}

func (r *redisSessionDataRepo) Load(ctx context.Context, sessionID uuid.UUID) ([]DataItem, error) {
	raw, err := r.rdb.Get(ctx, sessionDataKeyPrefix+sessionID.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []DataItem{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []DataItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	if items == nil {
		items = []DataItem{}
	}
	return items, nil
}

func (r *redisSessionDataRepo) Save(ctx context.Context, sessionID uuid.UUID, items []DataItem) error {
	if items == nil {
		items = []DataItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	return r.rdb.Set(ctx, sessionDataKeyPrefix+sessionID.String(), raw, r.ttl).Err()
}

// keyedMutex serialises work per session id. Entries are dropped once no
// goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[uuid.UUID]*keyedLock{}}
}

func (k *keyedMutex) Lock(key uuid.UUID) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
