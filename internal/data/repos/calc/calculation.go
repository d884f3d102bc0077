package calc

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/calcbridge-backend/internal/domain/calc"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

type CalculationRepo interface {
	Create(dbc dbctx.Context, calcs []*types.Calculation) ([]*types.Calculation, error)
	GetByUUID(dbc dbctx.Context, key string) (*types.Calculation, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Calculation, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Calculation, error)
	ApplyProgress(dbc dbctx.Context, id uuid.UUID, update types.ProgressUpdate) (types.ProgressOutcome, error)
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type calculationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCalculationRepo(db *gorm.DB, baseLog *logger.Logger) CalculationRepo {
	return &calculationRepo{db: db, log: baseLog.With("repo", "CalculationRepo")}
}

func (r *calculationRepo) Create(dbc dbctx.Context, calcs []*types.Calculation) ([]*types.Calculation, error) {
	if len(calcs) == 0 {
		return []*types.Calculation{}, nil
	}
	if err := dbc.DB(r.db).Create(&calcs).Error; err != nil {
		return nil, err
	}
	return calcs, nil
}

// GetByUUID resolves the external correlation key. Missing rows return
// types.ErrCalculationNotFound.
func (r *calculationRepo) GetByUUID(dbc dbctx.Context, key string) (*types.Calculation, error) {
	var row types.Calculation
	if err := dbc.DB(r.db).
		Where("uuid = ?", key).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, types.ErrCalculationNotFound
	}
	return &row, nil
}

func (r *calculationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Calculation, error) {
	var row types.Calculation
	if err := dbc.DB(r.db).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, types.ErrCalculationNotFound
	}
	return &row, nil
}

func (r *calculationRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Calculation, error) {
	var out []*types.Calculation
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyProgress locks the row, runs the state transition and persists the
// result in one transaction. A vanished row reports types.ErrCalculationCleaned.
func (r *calculationRepo) ApplyProgress(dbc dbctx.Context, id uuid.UUID, update types.ProgressUpdate) (types.ProgressOutcome, error) {
	var outcome types.ProgressOutcome
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		var row types.Calculation
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Limit(1).
			Find(&row).Error; err != nil {
			return err
		}
		if row.ID == uuid.Nil {
			return types.ErrCalculationCleaned
		}

		next, completedNow, err := types.Transition(row.Status, update.Progress)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"progress":   update.Progress,
			"updated_at": time.Now().UTC(),
		}
		if update.Result != nil {
			updates["result"] = update.Result
		}
		if update.Error != nil {
			updates["error"] = update.Error
		}
		if next != row.Status {
			updates["status"] = next
		}
		if completedNow {
			updates["completed_at"] = time.Now().UTC()
		}
		if err := tx.Model(&types.Calculation{}).
			Where("id = ?", id).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update calculation: %w", err)
		}

		var fresh types.Calculation
		if err := tx.Where("id = ?", id).Take(&fresh).Error; err != nil {
			return fmt.Errorf("reload calculation: %w", err)
		}

		var all []*types.Calculation
		if err := tx.
			Where("user_id = ?", row.UserID).
			Order("created_at ASC").
			Order("id ASC").
			Find(&all).Error; err != nil {
			return fmt.Errorf("list user calculations: %w", err)
		}

		outcome = types.ProgressOutcome{
			Calculation:      &fresh,
			Previous:         row.Status,
			CompletedNow:     completedNow,
			UserCalculations: all,
		}
		return nil
	})
	if err != nil {
		if !types.IsRejection(err) && !errors.Is(err, types.ErrUnknownState) {
			r.log.Error("ApplyProgress failed", "calc_id", id, "error", err)
		}
		return types.ProgressOutcome{}, err
	}
	return outcome, nil
}

// DeleteByID hard-deletes the row. Deleting an absent row is not an error.
func (r *calculationRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).
		Where("id = ?", id).
		Delete(&types.Calculation{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
