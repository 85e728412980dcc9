package repositories

import (
	"context"
	"time"

	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/uptrace/bun"
)

type InsuranceRepository interface {
	// CreateAll inserts every policy of one purchase together.
	CreateAll(ctx context.Context, policies []*models.InsurancePolicy) error
	ListByAccount(ctx context.Context, accountID int64) ([]*models.InsurancePolicy, error)
}

type insuranceRepository struct {
	*BaseRepository
}

func NewInsuranceRepository(db *bun.DB) InsuranceRepository {
	return &insuranceRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *insuranceRepository) CreateAll(ctx context.Context, policies []*models.InsurancePolicy) error {
	if len(policies) == 0 {
		return nil
	}
	now := time.Now()
	for _, p := range policies {
		p.CreatedAt = now
	}
	_, err := r.GetDB().NewInsert().Model(&policies).Exec(ctx)
	return r.HandleError("create_all", "insurance_policy", err)
}

func (r *insuranceRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.InsurancePolicy, error) {
	var policies []*models.InsurancePolicy
	err := r.GetDB().NewSelect().
		Model(&policies).
		Where("account_id = ?", accountID).
		Order("week_start_date DESC").
		Scan(ctx)
	return policies, r.HandleError("list_by_account", "insurance_policy", err)
}
