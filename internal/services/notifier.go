package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/calcbridge-backend/internal/realtime"
)

// ListPayload is the body of calculations, filters and datasources events.
type ListPayload struct {
	ReqID string `json:"reqId"`
	Data  any    `json:"data"`
	Total int64  `json:"total"`
}

// ErrorPayload replaces a ListPayload when a step fails.
type ErrorPayload struct {
	ReqID string `json:"reqId"`
	Error string `json:"error"`
}

type CalcNotifier interface {
	Calculations(ctx context.Context, userID uuid.UUID, payload any)
	Filters(ctx context.Context, userID uuid.UUID, payload any)
	DataSources(ctx context.Context, userID uuid.UUID, payload any)
	// Data replies to one session only.
	Data(ctx context.Context, sessionID uuid.UUID, payload any)
}

type calcNotifier struct {
	emit SSEEmitter
}

func NewCalcNotifier(emit SSEEmitter) CalcNotifier {
	return &calcNotifier{emit: emit}
}

func (n *calcNotifier) Calculations(ctx context.Context, userID uuid.UUID, payload any) {
	n.send(ctx, realtime.ChannelCalculations, realtime.UserTarget(userID), payload)
}

func (n *calcNotifier) Filters(ctx context.Context, userID uuid.UUID, payload any) {
	n.send(ctx, realtime.ChannelFilters, realtime.UserTarget(userID), payload)
}

func (n *calcNotifier) DataSources(ctx context.Context, userID uuid.UUID, payload any) {
	n.send(ctx, realtime.ChannelDataSources, realtime.UserTarget(userID), payload)
}

func (n *calcNotifier) Data(ctx context.Context, sessionID uuid.UUID, payload any) {
	n.send(ctx, realtime.ChannelData, realtime.SessionTarget(sessionID), payload)
}

func (n *calcNotifier) send(ctx context.Context, ch realtime.Channel, target realtime.Target, payload any) {
	if n == nil || n.emit == nil || target.IsZero() {
		return
	}
	n.emit.Emit(ctx, realtime.Message{Channel: ch, Target: target, Data: payload})
}
