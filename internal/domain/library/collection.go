package library

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityPublic  Visibility = "public"
)

// Collection is a user-facing filter: a named group of data sources.
type Collection struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Description string     `gorm:"column:description" json:"description,omitempty"`
	Visibility  Visibility `gorm:"column:visibility;not null;default:private;index" json:"visibility"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Collection) TableName() string { return "collection" }

func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Visibility == "" {
		c.Visibility = VisibilityPrivate
	}
	return nil
}

func (c *Collection) Shared() bool { return c.Visibility == VisibilityShared }

type CollectionDataSource struct {
	CollectionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"collection_id"`
	DataSourceID uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"data_source_id"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (CollectionDataSource) TableName() string { return "collection_data_source" }

type SharedCollectionUser struct {
	CollectionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"collection_id"`
	UserID       uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (SharedCollectionUser) TableName() string { return "shared_collection_user" }
