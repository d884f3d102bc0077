package calccleanup

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

// Deleter removes a calculation row and its in-memory bookkeeping. Deleting
// an absent row must succeed.
type Deleter interface {
	PurgeCalculation(ctx context.Context, calcID uuid.UUID) error
}

type Activities struct {
	Log     *logger.Logger
	Deleter Deleter
}

func (a *Activities) Delete(ctx context.Context, calcID string) error {
	if a == nil || a.Deleter == nil {
		return fmt.Errorf("calccleanup: activity not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(calcID))
	if err != nil || id == uuid.Nil {
		return temporal.NewNonRetryableApplicationError("invalid calculation_id", "InvalidInput", err)
	}
	if err := a.Deleter.PurgeCalculation(ctx, id); err != nil {
		if a.Log != nil {
			a.Log.Warn("Calculation cleanup failed", "calc_id", id, "error", err)
		}
		return err
	}
	return nil
}
