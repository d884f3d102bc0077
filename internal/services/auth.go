package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/calcbridge-backend/internal/data/repos"
	"github.com/yungbote/calcbridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrSessionInvalid = errors.New("session not found or expired")
)

type JWTClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	// SetContextFromToken verifies the token and its session and attaches the
	// caller identity. An empty token leaves ctx unchanged.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(userID, sessionID uuid.UUID, ttl time.Duration) (string, error)
}

type authService struct {
	log          *logger.Logger
	sessions     repos.UserSessionRepo
	jwtSecretKey string
	now          func() time.Time
}

func NewAuthService(log *logger.Logger, sessions repos.UserSessionRepo, jwtSecretKey string) AuthService {
	return &authService{
		log:          log.With("service", "AuthService"),
		sessions:     sessions,
		jwtSecretKey: jwtSecretKey,
		now:          time.Now,
	}
}

func (as *authService) IssueToken(userID, sessionID uuid.UUID, ttl time.Duration) (string, error) {
	now := as.now()
	claims := JWTClaims{
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, nil
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.now))
	if err != nil {
		return ctx, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return ctx, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil || sessionID == uuid.Nil {
		return ctx, fmt.Errorf("%w: bad session id", ErrInvalidToken)
	}

	session, err := as.sessions.GetByID(dbctx.Context{Ctx: ctx}, sessionID)
	if err != nil {
		as.log.Warn("Session lookup failed", "session_id", sessionID, "error", err)
		return ctx, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil || session.Expired(as.now()) {
		return ctx, ErrSessionInvalid
	}

	rd := &ctxutil.RequestData{
		TokenString:   tokenString,
		UserID:        userID,
		SessionID:     session.ID,
		SessionUserID: session.UserID,
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}
