package calccleanup

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

func Workflow(ctx workflow.Context, in Input) error {
	calcID := strings.TrimSpace(in.CalculationID)
	if calcID == "" {
		return fmt.Errorf("calccleanup: missing calculation_id")
	}

	if in.Grace > 0 {
		// Cancellation before the timer fires leaves the row untouched.
		if err := workflow.Sleep(ctx, in.Grace); err != nil {
			return err
		}
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})
	return workflow.ExecuteActivity(ctx, ActivityDelete, calcID).Get(ctx, nil)
}
