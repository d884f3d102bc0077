package calccleanup

import (
	"time"

	"github.com/google/uuid"
)

const (
	WorkflowName   = "calc_cleanup"
	ActivityDelete = "calc_cleanup_delete"
)

// Input arms one cleanup. Grace is measured from workflow start.
type Input struct {
	CalculationID string        `json:"calculation_id"`
	Grace         time.Duration `json:"grace"`
}

// WorkflowID is the dedup key: one cleanup workflow per calculation.
func WorkflowID(calcID uuid.UUID) string {
	return "calc-cleanup-" + calcID.String()
}
