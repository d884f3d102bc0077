package calc

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Calculation is a long-running externally computed job. UUID is the
// correlation key the external worker reports progress against.
type Calculation struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UUID        string         `gorm:"column:uuid;uniqueIndex;not null" json:"uuid"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string         `gorm:"column:title" json:"title,omitempty"`
	Progress    float64        `gorm:"column:progress;not null;default:0" json:"progress"`
	Status      State          `gorm:"column:status;not null;index" json:"status"`
	Result      datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	Error       datatypes.JSON `gorm:"column:error;type:jsonb" json:"error,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Calculation) TableName() string { return "calculation" }

func (c *Calculation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = StatePending
	}
	return nil
}

// Ref is the minimal resolution result for a correlation key.
type Ref struct {
	ID     uuid.UUID
	UUID   string
	UserID uuid.UUID
}

func (c *Calculation) Ref() Ref {
	return Ref{ID: c.ID, UUID: c.UUID, UserID: c.UserID}
}

// ProgressUpdate is a validated progress report.
type ProgressUpdate struct {
	Progress float64
	Result   datatypes.JSON
	Error    datatypes.JSON
}

// ProgressOutcome describes what one applied update did.
type ProgressOutcome struct {
	Calculation  *Calculation
	Previous     State
	CompletedNow bool
	// UserCalculations is every calculation owned by the same user after the update.
	UserCalculations []*Calculation
}
