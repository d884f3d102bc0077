package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/calcbridge-backend/internal/clients/upstream"
	"github.com/yungbote/calcbridge-backend/internal/platform/apierr"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

// DataStoreService proxies a session's item list to the upstream service.
// Every mutation replies asynchronously with the full list on the data
// channel of the calling session.
type DataStoreService interface {
	// List reports false when the session holds no keys; nothing is fetched.
	List(ctx context.Context, sessionID uuid.UUID) (bool, error)
	Create(ctx context.Context, sessionID uuid.UUID, content string) error
	// DeleteLocal removes the key from the session only, unless forwarding
	// is enabled.
	DeleteLocal(ctx context.Context, sessionID uuid.UUID, key string) error
	Wait()
}

type DataStoreOptions struct {
	ForwardDelete bool
}

type dataStoreService struct {
	log      *logger.Logger
	repo     SessionDataRepo
	upstream upstream.Client
	notify   CalcNotifier
	opts     DataStoreOptions

	locks    *keyedMutex
	inflight sync.WaitGroup
}

func NewDataStoreService(log *logger.Logger, repo SessionDataRepo, up upstream.Client, notify CalcNotifier, opts DataStoreOptions) DataStoreService {
	return &dataStoreService{
		log:      log.With("service", "DataStoreService"),
		repo:     repo,
		upstream: up,
		notify:   notify,
		opts:     opts,
		locks:    newKeyedMutex(),
	}
}

func (s *dataStoreService) List(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	if sessionID == uuid.Nil {
		return false, apierr.Unauthorized(errors.New("missing session"))
	}
	items, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return false, apierr.New(http.StatusInternalServerError, "internal", err)
	}
	if len(itemKeys(items)) == 0 {
		return false, nil
	}
	s.async(ctx, sessionID, "listing", func(ctx context.Context, items []DataItem) ([]DataItem, error) {
		keys := itemKeys(items)
		if len(keys) == 0 {
			return items, nil
		}
		fresh, err := s.upstream.Listing(ctx, keys)
		if err != nil {
			return nil, err
		}
		return upsertItems(s.log, items, fresh), nil
	})
	return true, nil
}

func (s *dataStoreService) Create(ctx context.Context, sessionID uuid.UUID, content string) error {
	if sessionID == uuid.Nil {
		return apierr.Unauthorized(errors.New("missing session"))
	}
	if strings.TrimSpace(content) == "" {
		return apierr.BadRequest("invalid_request", errors.New("content is required"))
	}
	s.async(ctx, sessionID, "create", func(ctx context.Context, items []DataItem) ([]DataItem, error) {
		item, err := s.upstream.Create(ctx, content)
		if err != nil {
			return nil, err
		}
		return upsertItems(s.log, items, []DataItem{item}), nil
	})
	return nil
}

func (s *dataStoreService) DeleteLocal(ctx context.Context, sessionID uuid.UUID, key string) error {
	if sessionID == uuid.Nil {
		return apierr.Unauthorized(errors.New("missing session"))
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return apierr.BadRequest("invalid_request", errors.New("uuid is required"))
	}
	s.async(ctx, sessionID, "delete", func(ctx context.Context, items []DataItem) ([]DataItem, error) {
		if s.opts.ForwardDelete {
			if err := s.upstream.Delete(ctx, key); err != nil {
				return nil, err
			}
		}
		return removeItems(items, key), nil
	})
	return nil
}

func (s *dataStoreService) Wait() { s.inflight.Wait() }

// async runs load, mutate, save and broadcast under the session lock. A
// failed mutation leaves the store untouched and replies with an error list.
func (s *dataStoreService) async(ctx context.Context, sessionID uuid.UUID, op string, mutate func(context.Context, []DataItem) ([]DataItem, error)) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		unlock := s.locks.Lock(sessionID)
		defer unlock()

		items, err := s.repo.Load(ctx, sessionID)
		if err != nil {
			s.replyError(ctx, sessionID, op, err)
			return
		}
		next, err := mutate(ctx, items)
		if err != nil {
			s.replyError(ctx, sessionID, op, err)
			return
		}
		if err := s.repo.Save(ctx, sessionID, next); err != nil {
			s.replyError(ctx, sessionID, op, err)
			return
		}
		s.notify.Data(ctx, sessionID, next)
	}()
}

func (s *dataStoreService) replyError(ctx context.Context, sessionID uuid.UUID, op string, err error) {
	s.log.Error("Data store operation failed", "op", op, "session_id", sessionID, "error", err)
	var payload map[string]any
	var ue *upstream.Error
	if errors.As(err, &ue) {
		payload = ue.Payload()
	} else {
		payload = map[string]any{"error": err.Error()}
	}
	s.notify.Data(ctx, sessionID, []map[string]any{payload})
}

func itemKey(item DataItem) (string, bool) {
	k, ok := item["uuid"].(string)
	k = strings.TrimSpace(k)
	return k, ok && k != ""
}

func itemKeys(items []DataItem) []string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		if k, ok := itemKey(it); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// upsertItems merges incoming into store by key. The last write wins and a
// replaced item keeps its original position.
func upsertItems(log *logger.Logger, store, incoming []DataItem) []DataItem {
	out := append([]DataItem{}, store...)
	index := make(map[string]int, len(out))
	for i, it := range out {
		if k, ok := itemKey(it); ok {
			index[k] = i
		}
	}
	for _, it := range incoming {
		k, ok := itemKey(it)
		if !ok {
			if log != nil {
				log.Warn("Dropping upstream item without uuid")
			}
			continue
		}
		if i, exists := index[k]; exists {
			out[i] = it
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}
	return out
}

func removeItems(store []DataItem, key string) []DataItem {
	out := make([]DataItem, 0, len(store))
	for _, it := range store {
		if k, ok := itemKey(it); ok && k == key {
			continue
		}
		out = append(out, it)
	}
	return out
}
