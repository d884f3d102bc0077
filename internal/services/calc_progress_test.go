package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/calcbridge-backend/internal/data/repos"
	"github.com/yungbote/calcbridge-backend/internal/data/repos/testutil"
	"github.com/yungbote/calcbridge-backend/internal/domain/calc"
	"github.com/yungbote/calcbridge-backend/internal/domain/library"
	"github.com/yungbote/calcbridge-backend/internal/platform/apierr"
	"github.com/yungbote/calcbridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/realtime"
)

type sentMessage struct {
	channel realtime.Channel
	target  realtime.Target
	data    any
}

// recordingNotifier captures notifications in emission order.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) record(ch realtime.Channel, target realtime.Target, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{channel: ch, target: target, data: payload})
}

func (n *recordingNotifier) Calculations(ctx context.Context, userID uuid.UUID, payload any) {
	n.record(realtime.ChannelCalculations, realtime.UserTarget(userID), payload)
}
func (n *recordingNotifier) Filters(ctx context.Context, userID uuid.UUID, payload any) {
	n.record(realtime.ChannelFilters, realtime.UserTarget(userID), payload)
}
func (n *recordingNotifier) DataSources(ctx context.Context, userID uuid.UUID, payload any) {
	n.record(realtime.ChannelDataSources, realtime.UserTarget(userID), payload)
}
func (n *recordingNotifier) Data(ctx context.Context, sessionID uuid.UUID, payload any) {
	n.record(realtime.ChannelData, realtime.SessionTarget(sessionID), payload)
}

func (n *recordingNotifier) channels() []realtime.Channel {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]realtime.Channel, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.channel)
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

func (n *recordingNotifier) last(ch realtime.Channel) sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].channel == ch {
			return n.sent[i]
		}
	}
	return sentMessage{}
}

type recordingScheduler struct {
	mu    sync.Mutex
	armed map[uuid.UUID]int
}

func (s *recordingScheduler) Schedule(ctx context.Context, task CleanupTask) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed == nil {
		s.armed = map[uuid.UUID]int{}
	}
	s.armed[task.CalculationID]++
	return s.armed[task.CalculationID] == 1, nil
}
func (s *recordingScheduler) Cancel(ctx context.Context, calcID uuid.UUID) error { return nil }
func (s *recordingScheduler) Close()                                              {}

func (s *recordingScheduler) count(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed[id]
}

type failingDataSourceRepo struct {
	repos.DataSourceRepo
}

func (failingDataSourceRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, q library.DataSourceQuery) ([]*library.DataSource, int64, error) {
	return nil, 0, errors.New("pq: connection to 10.0.0.7:5432 refused")
}

type progressFixture struct {
	db        *gorm.DB
	svc       CalcProgressService
	calcs     repos.CalculationRepo
	pending   PendingQueryStore
	notify    *recordingNotifier
	scheduler *recordingScheduler
}

func newProgressFixture(t *testing.T, dataSources func(repos.DataSourceRepo) repos.DataSourceRepo) *progressFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	calcs := repos.NewCalculationRepo(db, log)
	users := repos.NewUserRepo(db, log)
	cols := repos.NewCollectionRepo(db, log)
	var ds repos.DataSourceRepo = repos.NewDataSourceRepo(db, log)
	if dataSources != nil {
		ds = dataSources(ds)
	}
	f := &progressFixture{
		db:        db,
		calcs:     calcs,
		pending:   NewMemoryPendingQueryStore(time.Hour),
		notify:    &recordingNotifier{},
		scheduler: &recordingScheduler{},
	}
	cascade := NewCompletionCascade(log, users, cols, ds, NewLibraryPreparer(log, cols, ds), f.pending, f.notify)
	f.svc = NewCalcProgressService(log, calcs, f.pending, cascade, f.scheduler, f.notify)
	return f
}

func webhookBody(t *testing.T, key string, progress any) WebhookPayload {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"uuid": key, "progress": progress})
	require.NoError(t, err)
	var p WebhookPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func requireAPIErr(t *testing.T, err error, status int, code string) {
	t.Helper()
	var ae *apierr.Error
	require.True(t, errors.As(err, &ae), "want *apierr.Error, got %v", err)
	assert.Equal(t, status, ae.Status)
	assert.Equal(t, code, ae.Code)
}

func withRequestID(id string) context.Context {
	return ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{RequestID: id})
}

func TestAcceptWebhookZeroProgressRejected(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db)
	row := testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StatePending, 0)

	_, err := f.svc.AcceptWebhook(ctx, webhookBody(t, row.UUID, 0), nil)
	requireAPIErr(t, err, http.StatusBadRequest, "invalid_webhook")
	f.svc.Wait()

	assert.Empty(t, f.notify.channels())
	got, err := f.calcs.GetByID(dbctx.Context{Ctx: ctx}, row.ID)
	require.NoError(t, err)
	assert.Equal(t, calc.StatePending, got.Status)
}

func TestAcceptWebhookUnknownKey(t *testing.T) {
	f := newProgressFixture(t, nil)
	_, err := f.svc.AcceptWebhook(context.Background(), webhookBody(t, uuid.NewString(), 10), nil)
	requireAPIErr(t, err, http.StatusUnprocessableEntity, "calculation_not_found")
	f.svc.Wait()
	assert.Empty(t, f.notify.channels())
}

func TestAcceptWebhookPartialProgressBroadcastsAggregate(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db)
	row := testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StatePending, 0)
	testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StatePending, 0)

	reqID, err := f.svc.AcceptWebhook(withRequestID("req-partial"), webhookBody(t, row.UUID, 40), nil)
	require.NoError(t, err)
	assert.Equal(t, "req-partial", reqID)
	f.svc.Wait()

	assert.Equal(t, []realtime.Channel{realtime.ChannelCalculations}, f.notify.channels())
	msg := f.notify.last(realtime.ChannelCalculations)
	assert.Equal(t, realtime.UserTarget(u.ID), msg.target)
	payload := msg.data.(ListPayload)
	assert.Equal(t, "req-partial", payload.ReqID)
	assert.EqualValues(t, 2, payload.Total)
	assert.Zero(t, f.scheduler.count(row.ID))
}

func TestCompletionCascadesExactlyOnce(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db)
	row := testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StateUpdated, 50)
	col := testutil.SeedCollection(t, ctx, f.db, u.ID, "mine", library.VisibilityPrivate)
	ds := testutil.SeedDataSource(t, ctx, f.db, u.ID, "ds")
	testutil.LinkDataSource(t, ctx, f.db, col.ID, ds.ID)

	_, err := f.svc.AcceptWebhook(withRequestID("req-1"), webhookBody(t, row.UUID, 100), nil)
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, []realtime.Channel{
		realtime.ChannelCalculations,
		realtime.ChannelFilters,
		realtime.ChannelDataSources,
	}, f.notify.channels())
	filters := f.notify.last(realtime.ChannelFilters).data.(ListPayload)
	assert.Equal(t, "req-1", filters.ReqID)
	assert.EqualValues(t, 1, filters.Total)
	views := filters.Data.([]CollectionView)
	assert.Equal(t, []uuid.UUID{ds.ID}, views[0].DataSources)
	assert.Equal(t, 1, f.scheduler.count(row.ID))

	f.notify.reset()
	_, err = f.svc.AcceptWebhook(withRequestID("req-2"), webhookBody(t, row.UUID, 100), nil)
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, []realtime.Channel{realtime.ChannelCalculations}, f.notify.channels())
	assert.Equal(t, 1, f.scheduler.count(row.ID), "repeat completion must not re-arm cleanup")

	_, err = f.calcs.DeleteByID(dbctx.Context{Ctx: ctx}, row.ID)
	require.NoError(t, err)
	_, err = f.svc.AcceptWebhook(ctx, webhookBody(t, row.UUID, 100), nil)
	requireAPIErr(t, err, http.StatusUnprocessableEntity, "calculation_not_found")
}

func TestConcurrentCompletionCascadesOnce(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db)
	row := testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StateUpdated, 90)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AcceptWebhook(ctx, webhookBody(t, row.UUID, 100), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	f.svc.Wait()

	filters := 0
	for _, ch := range f.notify.channels() {
		if ch == realtime.ChannelFilters {
			filters++
		}
	}
	assert.Equal(t, 1, filters)
	assert.Equal(t, 1, f.scheduler.count(row.ID))
}

func TestRegressionAfterCompletionRejected(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db)
	row := testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StateCompleted, 100)

	_, err := f.svc.AcceptWebhook(ctx, webhookBody(t, row.UUID, 60), nil)
	requireAPIErr(t, err, http.StatusUnprocessableEntity, "calculation_update_rejected")
	f.svc.Wait()
	assert.Empty(t, f.notify.channels())
}

func TestPendingQuerySideChannelShapesCascade(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db)
	row := testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StateUpdated, 10)
	testutil.SeedDataSource(t, ctx, f.db, u.ID, "alpha")
	testutil.SeedDataSource(t, ctx, f.db, u.ID, "beta")

	authed := ctxutil.WithRequestData(withRequestID("req-q"), &ctxutil.RequestData{
		UserID:        u.ID,
		SessionID:     uuid.New(),
		SessionUserID: u.ID,
	})
	query := url.Values{"limit": {"1"}, "order": {"name"}}
	reqID, err := f.svc.AcceptWebhook(authed, WebhookPayload{}, query)
	require.NoError(t, err)
	assert.Equal(t, "req-q", reqID)
	f.svc.Wait()
	assert.Empty(t, f.notify.channels(), "side channel must not broadcast")

	got, err := f.calcs.GetByID(dbctx.Context{Ctx: ctx}, row.ID)
	require.NoError(t, err)
	assert.Equal(t, calc.StateUpdated, got.Status, "side channel must not mutate")

	_, err = f.svc.AcceptWebhook(ctx, webhookBody(t, row.UUID, 100), nil)
	require.NoError(t, err)
	f.svc.Wait()

	sources := f.notify.last(realtime.ChannelDataSources).data.(ListPayload)
	assert.EqualValues(t, 2, sources.Total)
	views := sources.Data.([]DataSourceView)
	require.Len(t, views, 1)
	assert.Equal(t, "alpha", views[0].Name)
}

func TestSideChannelIgnoredForForeignSession(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{
		UserID:        uuid.New(),
		SessionID:     uuid.New(),
		SessionUserID: uuid.New(),
	})
	_, err := f.svc.AcceptWebhook(ctx, WebhookPayload{}, url.Values{"limit": {"5"}})
	requireAPIErr(t, err, http.StatusBadRequest, "invalid_webhook")
}

func TestAcceptWebhookResolvesKeyAsStored(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db)
	row := testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StatePending, 0)
	const upperKey = "2A058E35-478E-4CF2-B7F4-A5A887CA555F"
	require.NoError(t, f.db.Model(&calc.Calculation{}).Where("id = ?", row.ID).Update("uuid", upperKey).Error)

	_, err := f.svc.AcceptWebhook(ctx, webhookBody(t, upperKey, 50), nil)
	require.NoError(t, err)
	f.svc.Wait()

	got, err := f.calcs.GetByID(dbctx.Context{Ctx: ctx}, row.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Progress)
	assert.Equal(t, []realtime.Channel{realtime.ChannelCalculations}, f.notify.channels())
}

func TestEmptyLimitDoesNotDivertProgress(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db)
	row := testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StatePending, 0)

	authed := ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		UserID:        u.ID,
		SessionID:     uuid.New(),
		SessionUserID: u.ID,
	})
	_, err := f.svc.AcceptWebhook(authed, webhookBody(t, row.UUID, 30), url.Values{"limit": {""}})
	require.NoError(t, err)
	f.svc.Wait()

	got, err := f.calcs.GetByID(dbctx.Context{Ctx: ctx}, row.ID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.Progress)
	_, stored, err := f.pending.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored, "an empty limit must not be recorded")
}

func TestCascadeStepFailureIsIsolated(t *testing.T) {
	f := newProgressFixture(t, func(r repos.DataSourceRepo) repos.DataSourceRepo {
		return failingDataSourceRepo{DataSourceRepo: r}
	})
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db)
	row := testutil.SeedCalculation(t, ctx, f.db, u.ID, calc.StateUpdated, 10)
	testutil.SeedCollection(t, ctx, f.db, u.ID, "c", library.VisibilityPrivate)

	_, err := f.svc.AcceptWebhook(withRequestID("req-fail"), webhookBody(t, row.UUID, 100), nil)
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, []realtime.Channel{
		realtime.ChannelCalculations,
		realtime.ChannelFilters,
		realtime.ChannelDataSources,
	}, f.notify.channels())
	_, ok := f.notify.last(realtime.ChannelFilters).data.(ListPayload)
	assert.True(t, ok, "filters must still succeed")
	errPayload, ok := f.notify.last(realtime.ChannelDataSources).data.(ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "req-fail", errPayload.ReqID)
	assert.Equal(t, msgDataSourcesUnavailable, errPayload.Error)
	assert.NotContains(t, errPayload.Error, "10.0.0.7", "driver detail must stay in the log")
	assert.Equal(t, 1, f.scheduler.count(row.ID))
}

func TestRecoverStep(t *testing.T) {
	err := recoverStep("filters", func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NoError(t, recoverStep("filters", func() error { return nil }))
}

func TestListForUserReturnsOnlyOwnRows(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	owner := testutil.SeedUser(t, ctx, f.db)
	other := testutil.SeedUser(t, ctx, f.db)
	testutil.SeedCalculation(t, ctx, f.db, owner.ID, calc.StatePending, 0)
	testutil.SeedCalculation(t, ctx, f.db, owner.ID, calc.StateUpdated, 40)
	testutil.SeedCalculation(t, ctx, f.db, other.ID, calc.StatePending, 0)

	rows, err := f.svc.ListForUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, owner.ID, r.UserID)
	}
}
