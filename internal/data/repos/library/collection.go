package library

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/calcbridge-backend/internal/domain/library"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

type CollectionRepo interface {
	Create(dbc dbctx.Context, rows []*types.Collection) ([]*types.Collection, error)
	// ListForUser returns collections the user owns or is a shared member of.
	ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Collection, int64, error)
	DataSourceLinks(dbc dbctx.Context, collectionIDs []uuid.UUID) ([]*types.CollectionDataSource, error)
	SharedUserLinks(dbc dbctx.Context, collectionIDs []uuid.UUID) ([]*types.SharedCollectionUser, error)
	AddDataSources(dbc dbctx.Context, collectionID uuid.UUID, dataSourceIDs []uuid.UUID) error
	AddSharedUsers(dbc dbctx.Context, collectionID uuid.UUID, userIDs []uuid.UUID) error
}

type collectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCollectionRepo(db *gorm.DB, baseLog *logger.Logger) CollectionRepo {
	return &collectionRepo{db: db, log: baseLog.With("repo", "CollectionRepo")}
}

func (r *collectionRepo) Create(dbc dbctx.Context, rows []*types.Collection) ([]*types.Collection, error) {
	if len(rows) == 0 {
		return []*types.Collection{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func visibleCollectionIDs(t *gorm.DB, userID uuid.UUID) *gorm.DB {
	shared := t.Session(&gorm.Session{NewDB: true}).
		Model(&types.SharedCollectionUser{}).
		Select("collection_id").
		Where("user_id = ?", userID)
	return t.Session(&gorm.Session{NewDB: true}).
		Model(&types.Collection{}).
		Select("id").
		Where("user_id = ? OR id IN (?)", userID, shared)
}

func (r *collectionRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Collection, int64, error) {
	var out []*types.Collection
	if userID == uuid.Nil {
		return out, 0, nil
	}
	t := dbc.DB(r.db)
	q := t.Model(&types.Collection{}).
		Where("id IN (?)", visibleCollectionIDs(t, userID))

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Session(&gorm.Session{}).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *collectionRepo) DataSourceLinks(dbc dbctx.Context, collectionIDs []uuid.UUID) ([]*types.CollectionDataSource, error) {
	var out []*types.CollectionDataSource
	if len(collectionIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("collection_id IN ?", collectionIDs).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *collectionRepo) SharedUserLinks(dbc dbctx.Context, collectionIDs []uuid.UUID) ([]*types.SharedCollectionUser, error) {
	var out []*types.SharedCollectionUser
	if len(collectionIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("collection_id IN ?", collectionIDs).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *collectionRepo) AddDataSources(dbc dbctx.Context, collectionID uuid.UUID, dataSourceIDs []uuid.UUID) error {
	if collectionID == uuid.Nil || len(dataSourceIDs) == 0 {
		return nil
	}
	rows := make([]*types.CollectionDataSource, 0, len(dataSourceIDs))
	for _, id := range dataSourceIDs {
		rows = append(rows, &types.CollectionDataSource{CollectionID: collectionID, DataSourceID: id})
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *collectionRepo) AddSharedUsers(dbc dbctx.Context, collectionID uuid.UUID, userIDs []uuid.UUID) error {
	if collectionID == uuid.Nil || len(userIDs) == 0 {
		return nil
	}
	rows := make([]*types.SharedCollectionUser, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, &types.SharedCollectionUser{CollectionID: collectionID, UserID: id})
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}
