package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
	"github.com/yungbote/calcbridge-backend/internal/realtime"
)

func TestRedisBusForwardsToHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log, err := logger.New("test")
	require.NoError(t, err)

	b, err := NewRedisBus(log, rdb, "")
	require.NoError(t, err)

	hub := realtime.NewHub(log)
	user := uuid.New()
	client := hub.Register(realtime.Identity{UserID: user})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.StartForwarder(ctx, func(m realtime.Message) { hub.Broadcast(m) }))

	require.NoError(t, b.Publish(ctx, realtime.Message{
		Channel: realtime.ChannelCalculations,
		Target:  realtime.UserTarget(user),
		Data:    map[string]any{"reqId": "r-1"},
	}))

	select {
	case msg := <-client.Outbound:
		require.Equal(t, realtime.ChannelCalculations, msg.Channel)
		data, ok := msg.Data.(map[string]any)
		require.True(t, ok)
		require.Equal(t, "r-1", data["reqId"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded message")
	}
}

func TestNewRedisBusRequiresClient(t *testing.T) {
	log, err := logger.New("test")
	require.NoError(t, err)
	_, err = NewRedisBus(log, nil, "x")
	require.Error(t, err)
}
