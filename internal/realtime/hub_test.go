package realtime

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for realtime message")
	}
	return Message{}
}

func expectNone(t *testing.T, ch <-chan Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message on %s: %+v", msg.Channel, msg.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastHonoursTargets(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	userA := uuid.New()
	sessionB := uuid.New()

	asUser := hub.Register(Identity{UserID: userA, SessionID: uuid.New()})
	asSessionOwner := hub.Register(Identity{UserID: uuid.New(), SessionID: sessionB, SessionUserID: userA})
	stranger := hub.Register(Identity{UserID: uuid.New(), SessionID: uuid.New(), SessionUserID: uuid.New()})

	n := hub.Broadcast(Message{Channel: ChannelCalculations, Target: UserTarget(userA), Data: map[string]any{"seq": 1}})
	if n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	recvMessage(t, asUser.Outbound, time.Second)
	recvMessage(t, asSessionOwner.Outbound, time.Second)
	expectNone(t, stranger.Outbound)

	hub.Broadcast(Message{Channel: ChannelData, Target: SessionTarget(sessionB), Data: []any{}})
	got := recvMessage(t, asSessionOwner.Outbound, time.Second)
	if got.Channel != ChannelData {
		t.Fatalf("expected data channel, got %s", got.Channel)
	}
	expectNone(t, asUser.Outbound)
	expectNone(t, stranger.Outbound)
}

func TestHubOrderingAndReconnect(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	user := uuid.New()

	clientA := hub.Register(Identity{UserID: user, SessionID: uuid.New()})
	for _, ch := range []Channel{ChannelCalculations, ChannelFilters, ChannelDataSources} {
		hub.Broadcast(Message{Channel: ch, Target: UserTarget(user)})
	}
	for _, want := range []Channel{ChannelCalculations, ChannelFilters, ChannelDataSources} {
		if got := recvMessage(t, clientA.Outbound, time.Second); got.Channel != want {
			t.Fatalf("ordering: want=%s got=%s", want, got.Channel)
		}
	}

	hub.Close(clientA)
	hub.Close(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}
	if hub.Count() != 0 {
		t.Fatalf("expected no registered clients, got %d", hub.Count())
	}

	clientB := hub.Register(Identity{UserID: user, SessionID: uuid.New()})
	hub.Broadcast(Message{Channel: ChannelCalculations, Target: UserTarget(user)})
	recvMessage(t, clientB.Outbound, time.Second)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	user := uuid.New()
	c := hub.Register(Identity{UserID: user})

	for i := 0; i < clientBuffer; i++ {
		if hub.Broadcast(Message{Channel: ChannelCalculations, Target: UserTarget(user)}) != 1 {
			t.Fatalf("message %d should be buffered", i)
		}
	}
	if n := hub.Broadcast(Message{Channel: ChannelCalculations, Target: UserTarget(user)}); n != 0 {
		t.Fatalf("expected drop on full buffer, delivered=%d", n)
	}
	if len(c.Outbound) != clientBuffer {
		t.Fatalf("buffer length changed: %d", len(c.Outbound))
	}
}

func TestHubServeHTTPWritesEventFrames(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	user := uuid.New()
	c := hub.Register(Identity{UserID: user})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP(w, r, c)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	hub.Broadcast(Message{Channel: ChannelFilters, Target: UserTarget(user), Data: map[string]any{"total": 3}})

	reader := bufio.NewReader(resp.Body)
	eventLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read event line: %v", err)
	}
	dataLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read data line: %v", err)
	}
	if strings.TrimSpace(eventLine) != "event: filters" {
		t.Fatalf("unexpected event line %q", eventLine)
	}
	if strings.TrimSpace(dataLine) != `data: {"total":3}` {
		t.Fatalf("unexpected data line %q", dataLine)
	}
	hub.Close(c)
}
