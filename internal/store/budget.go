package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BudgetRepo provides access to per-user monthly overage budgets.
type BudgetRepo struct {
	db *gorm.DB
}

func NewBudgetRepo(db *gorm.DB) *BudgetRepo { return &BudgetRepo{db: db} }

// Get returns the budget for a period, defaulting to zero cents if no row
// exists — a user must opt into spending beyond their plan.
func (r *BudgetRepo) Get(ctx context.Context, userID uuid.UUID, periodStart time.Time) (int64, error) {
	var row OverageBudget
	err := r.db.WithContext(ctx).First(&row, "user_id = ? AND period_start = ?", userID, periodStart).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.BudgetCents, nil
}

func (r *BudgetRepo) Set(ctx context.Context, userID uuid.UUID, periodStart time.Time, budgetCents int64) error {
	row := OverageBudget{UserID: userID, PeriodStart: periodStart, BudgetCents: budgetCents}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"budget_cents": budgetCents}),
	}).Create(&row).Error
}
