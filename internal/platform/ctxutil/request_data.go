package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData is the caller identity attached by the auth middleware.
// SessionUserID is the owner of the server-side session record, which may
// differ from UserID when a session is shared or impersonated.
type RequestData struct {
	TokenString   string
	UserID        uuid.UUID
	SessionID     uuid.UUID
	SessionUserID uuid.UUID
}

func (rd *RequestData) Authenticated() bool {
	return rd != nil && rd.UserID != uuid.Nil
}

// SessionOwnedByCaller reports whether the session owner is the authenticated user.
func (rd *RequestData) SessionOwnedByCaller() bool {
	return rd.Authenticated() && rd.SessionUserID != uuid.Nil && rd.SessionUserID == rd.UserID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
