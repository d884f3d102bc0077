package library

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/calcbridge-backend/internal/domain/library"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

type DataSourceRepo interface {
	Create(dbc dbctx.Context, rows []*types.DataSource) ([]*types.DataSource, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, q types.DataSourceQuery) ([]*types.DataSource, int64, error)
	// CollectionLinks returns links from dataSourceIDs to collections visible to userID.
	CollectionLinks(dbc dbctx.Context, userID uuid.UUID, dataSourceIDs []uuid.UUID) ([]*types.CollectionDataSource, error)
}

type dataSourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataSourceRepo(db *gorm.DB, baseLog *logger.Logger) DataSourceRepo {
	return &dataSourceRepo{db: db, log: baseLog.With("repo", "DataSourceRepo")}
}

func (r *dataSourceRepo) Create(dbc dbctx.Context, rows []*types.DataSource) ([]*types.DataSource, error) {
	if len(rows) == 0 {
		return []*types.DataSource{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *dataSourceRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, q types.DataSourceQuery) ([]*types.DataSource, int64, error) {
	var out []*types.DataSource
	if userID == uuid.Nil {
		return out, 0, nil
	}
	q = q.Normalized()

	base := dbc.DB(r.db).Model(&types.DataSource{}).Where("user_id = ?", userID)
	if s := strings.TrimSpace(q.Search); s != "" {
		base = base.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	col, desc := strings.TrimPrefix(q.Order, "-"), strings.HasPrefix(q.Order, "-")
	if err := base.Session(&gorm.Session{}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc}).
		Order("id ASC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *dataSourceRepo) CollectionLinks(dbc dbctx.Context, userID uuid.UUID, dataSourceIDs []uuid.UUID) ([]*types.CollectionDataSource, error) {
	var out []*types.CollectionDataSource
	if userID == uuid.Nil || len(dataSourceIDs) == 0 {
		return out, nil
	}
	t := dbc.DB(r.db)
	if err := t.
		Where("data_source_id IN ?", dataSourceIDs).
		Where("collection_id IN (?)", visibleCollectionIDs(t, userID)).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
