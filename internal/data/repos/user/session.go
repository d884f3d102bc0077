package user

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/calcbridge-backend/internal/domain/user"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

type UserSessionRepo interface {
	Create(dbc dbctx.Context, sessions []*types.UserSession) ([]*types.UserSession, error)
	GetByID(dbc dbctx.Context, sessionID uuid.UUID) (*types.UserSession, error)
}

type userSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserSessionRepo(db *gorm.DB, baseLog *logger.Logger) UserSessionRepo {
	return &userSessionRepo{
		db:  db,
		log: baseLog.With("repo", "UserSessionRepo"),
	}
}

func (r *userSessionRepo) Create(dbc dbctx.Context, sessions []*types.UserSession) ([]*types.UserSession, error) {
	if len(sessions) == 0 {
		return []*types.UserSession{}, nil
	}
	if err := dbc.DB(r.db).Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *userSessionRepo) GetByID(dbc dbctx.Context, sessionID uuid.UUID) (*types.UserSession, error) {
	if sessionID == uuid.Nil {
		return nil, nil
	}
	var row types.UserSession
	if err := dbc.DB(r.db).
		Where("id = ?", sessionID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
