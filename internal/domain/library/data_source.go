package library

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DataSource struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Name   string    `gorm:"column:name;not null" json:"name"`
	Kind   string    `gorm:"column:kind" json:"kind,omitempty"`
	URI    string    `gorm:"column:uri" json:"uri,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DataSource) TableName() string { return "data_source" }

func (d *DataSource) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

const (
	DefaultDataSourceLimit = 50
	MaxDataSourceLimit     = 500
)

// DataSourceQuery is the paging/search window for a data-source listing.
type DataSourceQuery struct {
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Search string `json:"search,omitempty"`
	Order  string `json:"order,omitempty"`
}

// Normalized clamps the window and defaults ordering to newest first.
func (q DataSourceQuery) Normalized() DataSourceQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultDataSourceLimit
	}
	if q.Limit > MaxDataSourceLimit {
		q.Limit = MaxDataSourceLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	switch q.Order {
	case "name", "-name", "created_at", "-created_at":
	default:
		q.Order = "-created_at"
	}
	return q
}
