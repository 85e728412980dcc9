package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/uptrace/bun"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByOwnerID(ctx context.Context, ownerID string) (*models.Account, error)
	ListByClass(ctx context.Context, className string) ([]*models.Account, error)
	ListAll(ctx context.Context) ([]*models.Account, error)
	ListClassNames(ctx context.Context) ([]string, error)
	UpdateSalary(ctx context.Context, id int64, salary decimal.Decimal) error
	MarkOrphaned(ctx context.Context, id int64) error
}

type accountRepository struct {
	*BaseRepository
}

func NewAccountRepository(db *bun.DB) AccountRepository {
	return &accountRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	_, err := r.GetDB().NewInsert().Model(account).Exec(ctx)
	return r.HandleError("create", "account", err)
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	account := new(models.Account)
	err := r.GetDB().NewSelect().
		Model(account).
		Where("a.id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "account", ID: id}
		}
		return nil, r.HandleErrorWithID("get", "account", id, err)
	}
	return account, nil
}

func (r *accountRepository) GetByOwnerID(ctx context.Context, ownerID string) (*models.Account, error) {
	slog.Debug("AccountRepository.GetByOwnerID called",
		slog.String("type", "db"),
		slog.String("operation", "GetByOwnerID"),
		slog.String("owner_id", ownerID))

	account := new(models.Account)
	err := r.GetDB().NewSelect().
		Model(account).
		Where("owner_id = ?", ownerID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "account", ID: ownerID}
		}
		return nil, r.HandleErrorWithID("get", "account", ownerID, err)
	}
	return account, nil
}

func (r *accountRepository) ListByClass(ctx context.Context, className string) ([]*models.Account, error) {
	var accounts []*models.Account
	err := r.GetDB().NewSelect().
		Model(&accounts).
		Where("class_name = ?", className).
		Where("orphaned = false").
		Order("id ASC").
		Scan(ctx)
	return accounts, r.HandleError("list_by_class", "account", err)
}

func (r *accountRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	err := r.GetDB().NewSelect().
		Model(&accounts).
		Where("orphaned = false").
		Order("id ASC").
		Scan(ctx)
	return accounts, r.HandleError("list_all", "account", err)
}

func (r *accountRepository) ListClassNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.GetDB().NewSelect().
		Model((*models.Account)(nil)).
		ColumnExpr("DISTINCT class_name").
		Where("class_name <> ''").
		Scan(ctx, &names)
	return names, r.HandleError("list_class_names", "account", err)
}

func (r *accountRepository) UpdateSalary(ctx context.Context, id int64, salary decimal.Decimal) error {
	_, err := r.GetDB().NewUpdate().
		Model((*models.Account)(nil)).
		Set("salary = ?", salary).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return r.HandleErrorWithID("update_salary", "account", id, err)
}

func (r *accountRepository) MarkOrphaned(ctx context.Context, id int64) error {
	_, err := r.GetDB().NewUpdate().
		Model((*models.Account)(nil)).
		Set("orphaned = true").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return r.HandleErrorWithID("mark_orphaned", "account", id, err)
}
