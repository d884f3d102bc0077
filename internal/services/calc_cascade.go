package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/calcbridge-backend/internal/data/repos"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

// CompletionCascade refreshes the owner's filters and data sources after a
// calculation completes.
type CompletionCascade interface {
	Run(ctx context.Context, reqID string, userID uuid.UUID)
}

type completionCascade struct {
	log         *logger.Logger
	users       repos.UserRepo
	collections repos.CollectionRepo
	dataSources repos.DataSourceRepo
	preparer    LibraryPreparer
	pending     PendingQueryStore
	notify      CalcNotifier
}

func NewCompletionCascade(
	log *logger.Logger,
	users repos.UserRepo,
	collections repos.CollectionRepo,
	dataSources repos.DataSourceRepo,
	preparer LibraryPreparer,
	pending PendingQueryStore,
	notify CalcNotifier,
) CompletionCascade {
	return &completionCascade{
		log:         log.With("service", "CompletionCascade"),
		users:       users,
		collections: collections,
		dataSources: dataSources,
		preparer:    preparer,
		pending:     pending,
		notify:      notify,
	}
}

// Run fetches both lists concurrently but always broadcasts filters before
// datasources. A failing step only replaces its own payload with an error.
func (c *completionCascade) Run(ctx context.Context, reqID string, userID uuid.UUID) {
	ctx, span := otel.Tracer("calcbridge/services").Start(ctx, "calc.cascade")
	defer span.End()
	span.SetAttributes(attribute.String("calc.req_id", reqID))

	dbc := dbctx.Context{Ctx: ctx}
	u, err := c.users.GetByID(dbc, userID)
	if err != nil {
		c.log.Error("Cascade user lookup failed", "user_id", userID, "req_id", reqID, "error", err)
		return
	}
	if u == nil {
		c.log.Warn("Cascade skipped; user no longer exists", "user_id", userID, "req_id", reqID)
		return
	}

	q, _, err := c.pending.Get(ctx, u.ID)
	if err != nil {
		c.log.Warn("Pending query read failed; using defaults", "user_id", u.ID, "error", err)
	}
	dsQuery := ParseDataSourceQuery(q)

	var (
		filters, sources       ListPayload
		filtersErr, sourcesErr error
		g                      errgroup.Group
	)
	g.Go(func() error {
		filtersErr = recoverStep("filters", func() error {
			rows, total, err := c.collections.ListForUser(dbc, u.ID)
			if err != nil {
				return err
			}
			views, err := c.preparer.PrepareCollections(dbc, rows)
			if err != nil {
				return err
			}
			filters = ListPayload{ReqID: reqID, Data: views, Total: total}
			return nil
		})
		return nil
	})
	g.Go(func() error {
		sourcesErr = recoverStep("datasources", func() error {
			rows, total, err := c.dataSources.ListForUser(dbc, u.ID, dsQuery)
			if err != nil {
				return err
			}
			views, err := c.preparer.PrepareDataSources(dbc, u.ID, rows)
			if err != nil {
				return err
			}
			sources = ListPayload{ReqID: reqID, Data: views, Total: total}
			return nil
		})
		return nil
	})
	_ = g.Wait()

	if filtersErr != nil {
		c.log.Error("Cascade filters step failed", "user_id", u.ID, "req_id", reqID, "error", filtersErr)
		c.notify.Filters(ctx, u.ID, ErrorPayload{ReqID: reqID, Error: msgFiltersUnavailable})
	} else {
		c.notify.Filters(ctx, u.ID, filters)
	}
	if sourcesErr != nil {
		c.log.Error("Cascade datasources step failed", "user_id", u.ID, "req_id", reqID, "error", sourcesErr)
		c.notify.DataSources(ctx, u.ID, ErrorPayload{ReqID: reqID, Error: msgDataSourcesUnavailable})
	} else {
		c.notify.DataSources(ctx, u.ID, sources)
	}
}

// Step failures reach clients only as these fixed messages; details are logged.
const (
	msgFiltersUnavailable     = "filters unavailable"
	msgDataSourcesUnavailable = "datasources unavailable"
)

func recoverStep(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s step panicked: %v", step, r)
		}
	}()
	return fn()
}
