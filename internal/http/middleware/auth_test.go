package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/calcbridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

type stubAuth struct {
	valid string
	rd    *ctxutil.RequestData
}

func (s *stubAuth) SetContextFromToken(ctx context.Context, token string) (context.Context, error) {
	if token == "" {
		return ctx, nil
	}
	if token != s.valid {
		return ctx, errors.New("invalid token")
	}
	return ctxutil.WithRequestData(ctx, s.rd), nil
}

func (s *stubAuth) IssueToken(uuid.UUID, uuid.UUID, time.Duration) (string, error) {
	return s.valid, nil
}

func authRouter(t *testing.T, optional bool) (*gin.Engine, *stubAuth) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	svc := &stubAuth{
		valid: "good",
		rd:    &ctxutil.RequestData{UserID: uuid.New(), SessionID: uuid.New(), SessionUserID: uuid.New()},
	}
	am := NewAuthMiddleware(log, svc)
	mw := am.RequireAuth()
	if optional {
		mw = am.OptionalAuth()
	}
	r := gin.New()
	r.Use(mw)
	r.GET("/whoami", func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if !rd.Authenticated() {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, rd.UserID.String())
	})
	return r, svc
}

func get(r http.Handler, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	r, svc := authRouter(t, false)

	if rec := get(r, "/whoami", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", rec.Code)
	}
	if rec := get(r, "/whoami", "forged"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", rec.Code)
	}
	rec := get(r, "/whoami", "good")
	if rec.Code != http.StatusOK || rec.Body.String() != svc.rd.UserID.String() {
		t.Fatalf("bearer token: got %d %q", rec.Code, rec.Body.String())
	}
	// EventSource cannot set headers, so the stream passes the token as a query param.
	rec = get(r, "/whoami?token=good", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("query token: got %d", rec.Code)
	}
}

func TestOptionalAuthFallsBackToAnonymous(t *testing.T) {
	r, svc := authRouter(t, true)

	if rec := get(r, "/whoami", "forged"); rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("bad token: got %d %q", rec.Code, rec.Body.String())
	}
	if rec := get(r, "/whoami", "good"); rec.Body.String() != svc.rd.UserID.String() {
		t.Fatalf("good token: got %q", rec.Body.String())
	}
}
