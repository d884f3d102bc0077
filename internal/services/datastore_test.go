package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/calcbridge-backend/internal/clients/upstream"
	"github.com/yungbote/calcbridge-backend/internal/data/repos/testutil"
	"github.com/yungbote/calcbridge-backend/internal/realtime"
)

type fakeUpstream struct {
	mu        sync.Mutex
	listings  [][]string
	deletes   []string
	listing   func(keys []string) ([]upstream.Item, error)
	create    func(content string) (upstream.Item, error)
	deleteErr error
}

func (f *fakeUpstream) Listing(ctx context.Context, keys []string) ([]upstream.Item, error) {
	f.mu.Lock()
	f.listings = append(f.listings, keys)
	f.mu.Unlock()
	return f.listing(keys)
}

func (f *fakeUpstream) Create(ctx context.Context, content string) (upstream.Item, error) {
	return f.create(content)
}

func (f *fakeUpstream) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	return f.deleteErr
}

func (f *fakeUpstream) listingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listings)
}

func echoUpstream() *fakeUpstream {
	return &fakeUpstream{
		create: func(content string) (upstream.Item, error) {
			return upstream.Item{"uuid": content, "content": content}, nil
		},
		listing: func(keys []string) ([]upstream.Item, error) {
			out := make([]upstream.Item, 0, len(keys))
			for _, k := range keys {
				out = append(out, upstream.Item{"uuid": k, "fresh": true})
			}
			return out, nil
		},
	}
}

func newDataStore(t *testing.T, up upstream.Client, opts DataStoreOptions) (DataStoreService, SessionDataRepo, *recordingNotifier) {
	t.Helper()
	repo := NewMemorySessionDataRepo(time.Hour)
	n := &recordingNotifier{}
	return NewDataStoreService(testutil.Logger(t), repo, up, n, opts), repo, n
}

func lastData(t *testing.T, n *recordingNotifier) sentMessage {
	t.Helper()
	msg := n.last(realtime.ChannelData)
	require.Equal(t, realtime.ChannelData, msg.channel, "no data message sent")
	return msg
}

func TestUpsertItemsLastWriteWinsKeepsPosition(t *testing.T) {
	store := []DataItem{{"uuid": "a", "v": 1}, {"uuid": "b", "v": 1}}
	got := upsertItems(nil, store, []DataItem{
		{"uuid": "b", "v": 2},
		{"uuid": "c", "v": 1},
		{"v": "keyless"},
		{"uuid": 7},
		{"uuid": "b", "v": 3},
	})
	require.Len(t, got, 3, "size must equal the number of distinct keys")
	assert.Equal(t, "a", got[0]["uuid"])
	assert.Equal(t, DataItem{"uuid": "b", "v": 3}, got[1])
	assert.Equal(t, "c", got[2]["uuid"])
	assert.Equal(t, 1, store[1]["v"], "input must not be modified")
}

func TestRemoveItemsRemovesEveryMatch(t *testing.T) {
	got := removeItems([]DataItem{{"uuid": "a"}, {"uuid": "b"}, {"uuid": "a"}}, "a")
	assert.Equal(t, []DataItem{{"uuid": "b"}}, got)
}

func TestListEmptySessionSkipsUpstream(t *testing.T) {
	up := echoUpstream()
	svc, _, n := newDataStore(t, up, DataStoreOptions{})

	accepted, err := svc.List(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, accepted)
	svc.Wait()
	assert.Zero(t, up.listingCalls())
	assert.Empty(t, n.channels())
}

func TestCreateThenListMerges(t *testing.T) {
	up := echoUpstream()
	svc, repo, n := newDataStore(t, up, DataStoreOptions{})
	ctx := context.Background()
	sessionID := uuid.New()

	require.NoError(t, svc.Create(ctx, sessionID, "k1"))
	require.NoError(t, svc.Create(ctx, sessionID, "k2"))
	svc.Wait()
	require.NoError(t, svc.Create(ctx, sessionID, "k1"))
	svc.Wait()

	msg := lastData(t, n)
	assert.Equal(t, realtime.SessionTarget(sessionID), msg.target)
	items := msg.data.([]DataItem)
	require.Len(t, items, 2)

	accepted, err := svc.List(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, accepted)
	svc.Wait()

	require.Equal(t, 1, up.listingCalls())
	assert.ElementsMatch(t, []string{"k1", "k2"}, up.listings[0])
	stored, err := repo.Load(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, it := range stored {
		assert.Equal(t, true, it["fresh"])
	}
}

func TestUpstreamErrorLeavesStoreUnchanged(t *testing.T) {
	up := echoUpstream()
	svc, repo, n := newDataStore(t, up, DataStoreOptions{})
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, repo.Save(ctx, sessionID, []DataItem{{"uuid": "k1", "v": 1}}))

	up.listing = func(keys []string) ([]upstream.Item, error) {
		return nil, &upstream.Error{Status: http.StatusBadGateway, Message: "bad gateway"}
	}
	accepted, err := svc.List(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, accepted)
	svc.Wait()

	payload := lastData(t, n).data.([]map[string]any)
	require.Len(t, payload, 1)
	assert.Equal(t, "bad gateway", payload[0]["error"])

	stored, err := repo.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, []DataItem{{"uuid": "k1", "v": 1}}, stored)

	up.create = func(string) (upstream.Item, error) { return nil, fmt.Errorf("dial: %w", context.DeadlineExceeded) }
	require.NoError(t, svc.Create(ctx, sessionID, "x"))
	svc.Wait()
	payload = lastData(t, n).data.([]map[string]any)
	assert.Contains(t, payload[0]["error"], "deadline")
}

func TestDeleteLocalDoesNotForwardByDefault(t *testing.T) {
	up := echoUpstream()
	svc, repo, n := newDataStore(t, up, DataStoreOptions{})
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, repo.Save(ctx, sessionID, []DataItem{{"uuid": "a"}, {"uuid": "b"}}))

	require.NoError(t, svc.DeleteLocal(ctx, sessionID, "a"))
	svc.Wait()

	assert.Empty(t, up.deletes)
	assert.Equal(t, []DataItem{{"uuid": "b"}}, lastData(t, n).data.([]DataItem))
}

func TestDeleteLocalForwardsWhenEnabled(t *testing.T) {
	up := echoUpstream()
	svc, repo, _ := newDataStore(t, up, DataStoreOptions{ForwardDelete: true})
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, repo.Save(ctx, sessionID, []DataItem{{"uuid": "a"}}))

	require.NoError(t, svc.DeleteLocal(ctx, sessionID, "a"))
	svc.Wait()
	assert.Equal(t, []string{"a"}, up.deletes)
	stored, _ := repo.Load(ctx, sessionID)
	assert.Empty(t, stored)
}

func TestDataStoreValidation(t *testing.T) {
	svc, _, _ := newDataStore(t, echoUpstream(), DataStoreOptions{})
	ctx := context.Background()

	requireAPIErr(t, svc.Create(ctx, uuid.New(), "  "), http.StatusBadRequest, "invalid_request")
	requireAPIErr(t, svc.DeleteLocal(ctx, uuid.New(), ""), http.StatusBadRequest, "invalid_request")
	requireAPIErr(t, svc.Create(ctx, uuid.Nil, "x"), http.StatusUnauthorized, "unauthorized")
	_, err := svc.List(ctx, uuid.Nil)
	requireAPIErr(t, err, http.StatusUnauthorized, "unauthorized")
}

func TestConcurrentCreatesAreSerialisedPerSession(t *testing.T) {
	svc, repo, _ := newDataStore(t, echoUpstream(), DataStoreOptions{})
	ctx := context.Background()
	sessionID := uuid.New()

	for i := 0; i < 25; i++ {
		require.NoError(t, svc.Create(ctx, sessionID, fmt.Sprintf("k%d", i)))
	}
	svc.Wait()

	stored, err := repo.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, stored, 25, "no update may be lost")
	assert.Zero(t, svc.(*dataStoreService).locks.size())
}

func TestRedisSessionDataRepo(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewRedisSessionDataRepo(rdb, 30*time.Minute)
	ctx := context.Background()
	sessionID := uuid.New()

	empty, err := repo.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Save(ctx, sessionID, []DataItem{{"uuid": "a", "n": 1.5}}))
	got, err := repo.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, []DataItem{{"uuid": "a", "n": 1.5}}, got)
	assert.Equal(t, 30*time.Minute, mr.TTL(sessionDataKeyPrefix+sessionID.String()))
}

func TestMemorySessionDataRepoExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := NewMemorySessionDataRepo(time.Minute).(*memorySessionDataRepo)
	repo.now = func() time.Time { return now }

	stale, fresh := uuid.New(), uuid.New()
	require.NoError(t, repo.Save(ctx, stale, []DataItem{{"uuid": "a"}}))
	items, err := repo.Load(ctx, stale)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	now = now.Add(2 * time.Minute)
	require.NoError(t, repo.Save(ctx, fresh, []DataItem{{"uuid": "b"}}))

	items, err = repo.Load(ctx, stale)
	require.NoError(t, err)
	assert.Empty(t, items, "expired session must read as empty")
	assert.Len(t, repo.entries, 1, "expired sessions are swept on write")
}
