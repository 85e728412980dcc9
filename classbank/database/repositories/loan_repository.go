package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/uptrace/bun"
)

type LoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	GetByID(ctx context.Context, id int64) (*models.Loan, error)
	Update(ctx context.Context, loan *models.Loan) error
	ListByAccount(ctx context.Context, accountID int64) ([]*models.Loan, error)
	// ClaimPeriod marks periodKey as posted on an active loan in one
	// conditional update. It reports false when the loan is not active or the
	// period was already claimed, which makes concurrent collection ticks
	// race-free: exactly one caller wins the period.
	ClaimPeriod(ctx context.Context, id int64, periodKey string) (bool, error)
	// ListDue returns active loans whose last posted period differs from
	// periodKey, i.e. loans the current tick still owes a payment attempt.
	ListDue(ctx context.Context, periodKey string) ([]*models.Loan, error)
	ListSkipped(ctx context.Context) ([]*models.Loan, error)
}

type loanRepository struct {
	*BaseRepository
}

func NewLoanRepository(db *bun.DB) LoanRepository {
	return &loanRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	loan.CreatedAt = time.Now()
	loan.UpdatedAt = time.Now()
	_, err := r.GetDB().NewInsert().Model(loan).Exec(ctx)
	return r.HandleError("create", "loan", err)
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*models.Loan, error) {
	loan := new(models.Loan)
	err := r.GetDB().NewSelect().
		Model(loan).
		Where("l.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "loan", ID: id}
		}
		return nil, r.HandleErrorWithID("get", "loan", id, err)
	}
	return loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	loan.UpdatedAt = time.Now()
	_, err := r.GetDB().NewUpdate().
		Model(loan).
		WherePK().
		Exec(ctx)
	return r.HandleErrorWithID("update", "loan", loan.ID, err)
}

func (r *loanRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.GetDB().NewSelect().
		Model(&loans).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Scan(ctx)
	return loans, r.HandleError("list_by_account", "loan", err)
}

func (r *loanRepository) ClaimPeriod(ctx context.Context, id int64, periodKey string) (bool, error) {
	res, err := r.GetDB().NewUpdate().
		Model((*models.Loan)(nil)).
		Set("last_payment_period = ?", periodKey).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", models.LoanActive).
		Where("last_payment_period <> ?", periodKey).
		Exec(ctx)
	if err != nil {
		return false, r.HandleErrorWithID("claim_period", "loan", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleErrorWithID("claim_period", "loan", id, err)
	}
	return affected == 1, nil
}

func (r *loanRepository) ListDue(ctx context.Context, periodKey string) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.GetDB().NewSelect().
		Model(&loans).
		Where("status = ?", models.LoanActive).
		Where("last_payment_period <> ?", periodKey).
		Order("id ASC").
		Scan(ctx)
	return loans, r.HandleError("list_due", "loan", err)
}

func (r *loanRepository) ListSkipped(ctx context.Context) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.GetDB().NewSelect().
		Model(&loans).
		Where("status = ?", models.LoanActive).
		Where("skipped_payments > 0").
		Order("skipped_payments DESC").
		Scan(ctx)
	return loans, r.HandleError("list_skipped", "loan", err)
}
