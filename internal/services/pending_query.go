package services

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/calcbridge-backend/internal/domain/library"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

// PendingQueryStore holds the last data-source query each user submitted
// with an authorized limit request. Entries are read, never consumed, by the
// completion cascade.
type PendingQueryStore interface {
	Put(ctx context.Context, userID uuid.UUID, q url.Values) error
	Get(ctx context.Context, userID uuid.UUID) (url.Values, bool, error)
}

type memoryPendingQueryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]pendingQueryEntry
}

type pendingQueryEntry struct {
	query     url.Values
	expiresAt time.Time
}

// NewMemoryPendingQueryStore keeps entries in process. ttl <= 0 disables expiry.
func NewMemoryPendingQueryStore(ttl time.Duration) PendingQueryStore {
	return &memoryPendingQueryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: map[uuid.UUID]pendingQueryEntry{},
	}
}

func (s *memoryPendingQueryStore) Put(ctx context.Context, userID uuid.UUID, q url.Values) error {
	if userID == uuid.Nil {
		return errors.New("pending query: missing user id")
	}
	entry := pendingQueryEntry{query: cloneValues(q)}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[userID] = entry
	return nil
}

func (s *memoryPendingQueryStore) Get(ctx context.Context, userID uuid.UUID) (url.Values, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[userID]
	if !ok {
		return nil, false, nil
	}
	if s.expired(entry) {
		delete(s.entries, userID)
		return nil, false, nil
	}
	return cloneValues(entry.query), true, nil
}

func (s *memoryPendingQueryStore) expired(e pendingQueryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

func (s *memoryPendingQueryStore) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
		}
	}
}

type redisPendingQueryStore struct {
	rdb goredis.UniversalClient
	ttl time.Duration
	log *logger.Logger
}

const pendingQueryKeyPrefix = "pending_query:"

// NewRedisPendingQueryStore shares entries across API instances.
func NewRedisPendingQueryStore(log *logger.Logger, rdb goredis.UniversalClient, ttl time.Duration) PendingQueryStore {
	return &redisPendingQueryStore{rdb: rdb, ttl: ttl, log: log.With("store", "PendingQueryStore")}
}

func (s *redisPendingQueryStore) Put(ctx context.Context, userID uuid.UUID, q url.Values) error {
	if userID == uuid.Nil {
		return errors.New("pending query: missing user id")
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, pendingQueryKeyPrefix+userID.String(), q.Encode(), ttl).Err()
}

func (s *redisPendingQueryStore) Get(ctx context.Context, userID uuid.UUID) (url.Values, bool, error) {
	raw, err := s.rdb.Get(ctx, pendingQueryKeyPrefix+userID.String()).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		s.log.Warn("Dropping unparseable pending query", "user_id", userID, "error", err)
		return nil, false, nil
	}
	return q, true, nil
}

func cloneValues(in url.Values) url.Values {
	out := make(url.Values, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// HasLimit reports whether a query string asks for a paged listing.
func HasLimit(q url.Values) bool {
	return strings.TrimSpace(q.Get("limit")) != ""
}

// ParseDataSourceQuery reads limit, offset, search and order. Unparseable
// numbers fall back to defaults.
func ParseDataSourceQuery(q url.Values) types.DataSourceQuery {
	out := types.DataSourceQuery{
		Search: strings.TrimSpace(q.Get("search")),
		Order:  strings.TrimSpace(q.Get("order")),
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil {
		out.Limit = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("offset"))); err == nil {
		out.Offset = n
	}
	return out.Normalized()
}
