package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/calcbridge-backend/internal/domain/calc"
	"github.com/yungbote/calcbridge-backend/internal/domain/library"
	"github.com/yungbote/calcbridge-backend/internal/domain/user"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB) *user.User {
	tb.Helper()
	id := uuid.New()
	u := &user.User{
		ID:        id,
		Email:     id.String() + "@example.com",
		FirstName: "A",
		LastName:  "B",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID) *user.UserSession {
	tb.Helper()
	s := &user.UserSession{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

func SeedCalculation(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, status calc.State, progress float64) *calc.Calculation {
	tb.Helper()
	c := &calc.Calculation{
		ID:       uuid.New(),
		UUID:     uuid.NewString(),
		UserID:   userID,
		Title:    "calc",
		Progress: progress,
		Status:   status,
	}
	if status == calc.StateCompleted {
		now := time.Now().UTC()
		c.CompletedAt = &now
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed calculation: %v", err)
	}
	return c
}

func SeedCollection(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string, vis library.Visibility) *library.Collection {
	tb.Helper()
	c := &library.Collection{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		Visibility: vis,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed collection: %v", err)
	}
	return c
}

func SeedDataSource(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string) *library.DataSource {
	tb.Helper()
	d := &library.DataSource{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Kind:   "csv",
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed data source: %v", err)
	}
	return d
}

func LinkDataSource(tb testing.TB, ctx context.Context, tx *gorm.DB, collectionID, dataSourceID uuid.UUID) {
	tb.Helper()
	link := &library.CollectionDataSource{CollectionID: collectionID, DataSourceID: dataSourceID}
	if err := tx.WithContext(ctx).Create(link).Error; err != nil {
		tb.Fatalf("link data source: %v", err)
	}
}

func ShareCollection(tb testing.TB, ctx context.Context, tx *gorm.DB, collectionID, userID uuid.UUID) {
	tb.Helper()
	link := &library.SharedCollectionUser{CollectionID: collectionID, UserID: userID}
	if err := tx.WithContext(ctx).Create(link).Error; err != nil {
		tb.Fatalf("share collection: %v", err)
	}
}
