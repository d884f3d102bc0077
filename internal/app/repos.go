package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/calcbridge-backend/internal/data/repos"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

type Repos struct {
	User        repos.UserRepo
	UserSession repos.UserSessionRepo
	Calculation repos.CalculationRepo
	Collection  repos.CollectionRepo
	DataSource  repos.DataSourceRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:        repos.NewUserRepo(db, log),
		UserSession: repos.NewUserSessionRepo(db, log),
		Calculation: repos.NewCalculationRepo(db, log),
		Collection:  repos.NewCollectionRepo(db, log),
		DataSource:  repos.NewDataSourceRepo(db, log),
	}
}
