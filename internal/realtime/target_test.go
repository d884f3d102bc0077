package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestTargetMatches(t *testing.T) {
	userA := uuid.New()
	sessionB := uuid.New()

	cases := []struct {
		name   string
		target Target
		id     Identity
		want   bool
	}{
		{"user match", UserTarget(userA), Identity{UserID: userA}, true},
		{"session owner match", UserTarget(userA), Identity{UserID: uuid.New(), SessionUserID: userA}, true},
		{"unrelated", UserTarget(userA), Identity{UserID: uuid.New(), SessionID: sessionB, SessionUserID: uuid.New()}, false},
		{"session match", SessionTarget(sessionB), Identity{UserID: uuid.New(), SessionID: sessionB}, true},
		{"session mismatch same user", SessionTarget(sessionB), Identity{UserID: userA, SessionID: uuid.New()}, false},
		{"zero target", Target{}, Identity{UserID: userA, SessionID: sessionB}, false},
		{"zero identity", UserTarget(userA), Identity{}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.target.Matches(tc.id); got != tc.want {
				t.Fatalf("Matches: got %v want %v", got, tc.want)
			}
		})
	}
}

func TestTargetSurvivesJSON(t *testing.T) {
	in := Message{Channel: ChannelData, Target: SessionTarget(uuid.New()), Data: []any{}}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Message
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Target != in.Target || out.Channel != in.Channel {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}
