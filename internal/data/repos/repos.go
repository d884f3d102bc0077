package repos

import (
	"github.com/yungbote/calcbridge-backend/internal/data/repos/calc"
	"github.com/yungbote/calcbridge-backend/internal/data/repos/library"
	"github.com/yungbote/calcbridge-backend/internal/data/repos/user"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type UserRepo = user.UserRepo
type UserSessionRepo = user.UserSessionRepo

type CalculationRepo = calc.CalculationRepo

type CollectionRepo = library.CollectionRepo
type DataSourceRepo = library.DataSourceRepo

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo { return user.NewUserRepo(db, log) }
func NewUserSessionRepo(db *gorm.DB, log *logger.Logger) UserSessionRepo {
	return user.NewUserSessionRepo(db, log)
}

func NewCalculationRepo(db *gorm.DB, log *logger.Logger) CalculationRepo {
	return calc.NewCalculationRepo(db, log)
}

func NewCollectionRepo(db *gorm.DB, log *logger.Logger) CollectionRepo {
	return library.NewCollectionRepo(db, log)
}
func NewDataSourceRepo(db *gorm.DB, log *logger.Logger) DataSourceRepo {
	return library.NewDataSourceRepo(db, log)
}
