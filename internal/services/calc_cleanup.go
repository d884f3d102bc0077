package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/calcbridge-backend/internal/data/repos"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
	"github.com/yungbote/calcbridge-backend/internal/temporalx/calccleanup"
)

var ErrSchedulerClosed = errors.New("cleanup scheduler closed")

type CleanupTask struct {
	CalculationID uuid.UUID
	UserID        uuid.UUID
}

// CleanupScheduler arms one deferred delete per calculation. Schedule
// returns false when the calculation is already armed.
type CleanupScheduler interface {
	Schedule(ctx context.Context, task CleanupTask) (bool, error)
	Cancel(ctx context.Context, calcID uuid.UUID) error
	Close()
}

// CalculationPurger hard-deletes completed calculations.
type CalculationPurger struct {
	log   *logger.Logger
	calcs repos.CalculationRepo
}

func NewCalculationPurger(log *logger.Logger, calcs repos.CalculationRepo) *CalculationPurger {
	return &CalculationPurger{log: log.With("service", "CalculationPurger"), calcs: calcs}
}

func (p *CalculationPurger) PurgeCalculation(ctx context.Context, calcID uuid.UUID) error {
	deleted, err := p.calcs.DeleteByID(dbctx.Context{Ctx: ctx}, calcID)
	if err != nil {
		return err
	}
	p.log.Debug("Calculation cleaned up", "calc_id", calcID, "deleted", deleted)
	return nil
}

type timerScheduler struct {
	log    *logger.Logger
	grace  time.Duration
	purger calccleanup.Deleter

	mu     sync.Mutex
	timers map[uuid.UUID]*armedCleanup
	closed bool
}

type armedCleanup struct{ timer *time.Timer }

// NewTimerScheduler runs cleanups on in-process timers.
func NewTimerScheduler(log *logger.Logger, grace time.Duration, purger calccleanup.Deleter) CleanupScheduler {
	return &timerScheduler{
		log:    log.With("service", "CleanupScheduler", "backend", "timer"),
		grace:  grace,
		purger: purger,
		timers: map[uuid.UUID]*armedCleanup{},
	}
}

func (s *timerScheduler) Schedule(ctx context.Context, task CleanupTask) (bool, error) {
	id := task.CalculationID
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSchedulerClosed
	}
	if _, armed := s.timers[id]; armed {
		return false, nil
	}
	a := &armedCleanup{}
	a.timer = time.AfterFunc(s.grace, func() { s.fire(id, a) })
	s.timers[id] = a
	return true, nil
}

func (s *timerScheduler) fire(id uuid.UUID, a *armedCleanup) {
	s.mu.Lock()
	if cur, ok := s.timers[id]; !ok || cur != a || s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.purger.PurgeCalculation(context.Background(), id); err != nil {
		s.log.Error("Calculation cleanup failed", "calc_id", id, "error", err)
	}

	s.mu.Lock()
	if s.timers[id] == a {
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

func (s *timerScheduler) Cancel(ctx context.Context, calcID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.timers[calcID]; ok {
		a.timer.Stop()
		delete(s.timers, calcID)
	}
	return nil
}

func (s *timerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, id)
	}
}

func (s *timerScheduler) armed(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

type temporalScheduler struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
	grace     time.Duration
}

// NewTemporalScheduler arms cleanups as durable workflows keyed by
// calculation id, so they survive API restarts.
func NewTemporalScheduler(log *logger.Logger, tc temporalsdkclient.Client, taskQueue string, grace time.Duration) CleanupScheduler {
	return &temporalScheduler{
		log:       log.With("service", "CleanupScheduler", "backend", "temporal"),
		tc:        tc,
		taskQueue: taskQueue,
		grace:     grace,
	}
}

func (s *temporalScheduler) Schedule(ctx context.Context, task CleanupTask) (bool, error) {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                                       calccleanup.WorkflowID(task.CalculationID),
		TaskQueue:                                s.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	in := calccleanup.Input{CalculationID: task.CalculationID.String(), Grace: s.grace}
	if _, err := s.tc.ExecuteWorkflow(ctx, opts, calccleanup.WorkflowName, in); err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *temporalScheduler) Cancel(ctx context.Context, calcID uuid.UUID) error {
	err := s.tc.CancelWorkflow(ctx, calccleanup.WorkflowID(calcID), "")
	var nf *serviceerror.NotFound
	if errors.As(err, &nf) {
		return nil
	}
	return err
}

// Close leaves the client open; it is owned by the app.
func (s *temporalScheduler) Close() {}
