package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/calcbridge-backend/internal/data/repos"
	"github.com/yungbote/calcbridge-backend/internal/domain/calc"
	"github.com/yungbote/calcbridge-backend/internal/platform/apierr"
	"github.com/yungbote/calcbridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

type CalcProgressService interface {
	// AcceptWebhook validates and applies a progress report synchronously and
	// returns the correlation id. Notifications are delivered asynchronously.
	AcceptWebhook(ctx context.Context, payload WebhookPayload, query url.Values) (string, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*calc.Calculation, error)
	// Wait blocks until in-flight deliveries finish.
	Wait()
}

type calcProgressService struct {
	log       *logger.Logger
	calcs     repos.CalculationRepo
	pending   PendingQueryStore
	cascade   CompletionCascade
	scheduler CleanupScheduler
	notify    CalcNotifier

	inflight sync.WaitGroup
}

func NewCalcProgressService(
	log *logger.Logger,
	calcs repos.CalculationRepo,
	pending PendingQueryStore,
	cascade CompletionCascade,
	scheduler CleanupScheduler,
	notify CalcNotifier,
) CalcProgressService {
	return &calcProgressService{
		log:       log.With("service", "CalcProgressService"),
		calcs:     calcs,
		pending:   pending,
		cascade:   cascade,
		scheduler: scheduler,
		notify:    notify,
	}
}

func (s *calcProgressService) AcceptWebhook(ctx context.Context, payload WebhookPayload, query url.Values) (string, error) {
	reqID := ctxutil.RequestID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}

	if payload.HasError() {
		s.log.Warn("Calculation reported an error", "calc_uuid", rawKey(payload.UUID), "req_id", reqID, "calc_error", string(payload.Error))
	}

	if rd := ctxutil.GetRequestData(ctx); rd.SessionOwnedByCaller() && HasLimit(query) {
		if err := s.pending.Put(ctx, rd.UserID, query); err != nil {
			return "", apierr.New(http.StatusInternalServerError, "internal", fmt.Errorf("store pending query: %w", err))
		}
		return reqID, nil
	}

	in, err := ValidateWebhook(payload)
	if err != nil {
		return "", apierr.BadRequest("invalid_webhook", err)
	}

	ctx, span := otel.Tracer("calcbridge/services").Start(ctx, "calc.apply_progress")
	defer span.End()
	span.SetAttributes(attribute.String("calc.uuid", in.Key), attribute.Float64("calc.progress", in.Update.Progress))

	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.calcs.GetByUUID(dbc, in.Key)
	if err != nil {
		if errors.Is(err, calc.ErrCalculationNotFound) {
			return "", apierr.Unprocessable("calculation_not_found", err)
		}
		return "", apierr.New(http.StatusInternalServerError, "internal", err)
	}

	outcome, err := s.calcs.ApplyProgress(dbc, row.ID, in.Update)
	if err != nil {
		if calc.IsRejection(err) {
			return "", apierr.Unprocessable("calculation_update_rejected", err)
		}
		return "", apierr.New(http.StatusInternalServerError, "internal", err)
	}
	span.SetAttributes(attribute.Bool("calc.completed_now", outcome.CompletedNow))

	s.inflight.Add(1)
	go s.deliver(context.WithoutCancel(ctx), reqID, outcome)
	return reqID, nil
}

// deliver broadcasts the aggregate, then cascades and arms cleanup when
// this update completed the calculation.
func (s *calcProgressService) deliver(ctx context.Context, reqID string, outcome calc.ProgressOutcome) {
	defer s.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Progress delivery panicked", "req_id", reqID, "panic", r)
		}
	}()

	c := outcome.Calculation
	s.notify.Calculations(ctx, c.UserID, ListPayload{
		ReqID: reqID,
		Data:  outcome.UserCalculations,
		Total: int64(len(outcome.UserCalculations)),
	})
	if !outcome.CompletedNow {
		return
	}

	s.cascade.Run(ctx, reqID, c.UserID)

	armed, err := s.scheduler.Schedule(ctx, CleanupTask{CalculationID: c.ID, UserID: c.UserID})
	if err != nil {
		s.log.Error("Arming calculation cleanup failed", "calc_id", c.ID, "error", err)
		return
	}
	if !armed {
		s.log.Debug("Calculation cleanup already armed", "calc_id", c.ID)
	}
}

func (s *calcProgressService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*calc.Calculation, error) {
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized(errors.New("missing user"))
	}
	rows, err := s.calcs.ListByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "internal", err)
	}
	return rows, nil
}

func (s *calcProgressService) Wait() { s.inflight.Wait() }

func rawKey(raw json.RawMessage) string {
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return string(raw)
	}
	return key
}
