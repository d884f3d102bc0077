package db

import (
	"github.com/yungbote/calcbridge-backend/internal/domain/calc"
	"github.com/yungbote/calcbridge-backend/internal/domain/library"
	"github.com/yungbote/calcbridge-backend/internal/domain/user"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Identity
		&user.User{},
		&user.UserSession{},

		// Calculations
		&calc.Calculation{},

		// Library
		&library.Collection{},
		&library.DataSource{},
		&library.CollectionDataSource{},
		&library.SharedCollectionUser{},
	)
}
