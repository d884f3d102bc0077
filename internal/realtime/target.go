package realtime

import "github.com/google/uuid"

// Identity is what a live connection is known by.
type Identity struct {
	UserID        uuid.UUID `json:"user_id"`
	SessionID     uuid.UUID `json:"session_id"`
	SessionUserID uuid.UUID `json:"session_user_id"`
}

// Target selects connections. A user target matches a connection whose
// authenticated user or session owner is that user. A session target matches
// one session only. The zero Target matches nothing.
type Target struct {
	UserID    uuid.UUID `json:"user_id,omitempty"`
	SessionID uuid.UUID `json:"session_id,omitempty"`
}

func UserTarget(userID uuid.UUID) Target { return Target{UserID: userID} }

func SessionTarget(sessionID uuid.UUID) Target { return Target{SessionID: sessionID} }

func (t Target) IsZero() bool { return t.UserID == uuid.Nil && t.SessionID == uuid.Nil }

func (t Target) Matches(id Identity) bool {
	if t.SessionID != uuid.Nil {
		return id.SessionID == t.SessionID
	}
	if t.UserID == uuid.Nil {
		return false
	}
	return id.UserID == t.UserID || id.SessionUserID == t.UserID
}
