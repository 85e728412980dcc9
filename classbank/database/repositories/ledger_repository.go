package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/economy"
	"github.com/uptrace/bun"
)

// LedgerEntry is one account's share of a batch adjustment. Delta is signed;
// the resulting transaction stores the absolute amount with the direction on
// the from/to side.
type LedgerEntry struct {
	AccountID int64
	Delta     decimal.Decimal
}

// BatchOptions controls the floor policy of a batch. ClampDebits caps each
// negative delta at the account's balance as read under the row lock, so the
// clamp cannot be invalidated by a concurrent debit; AllowOverdraw lets
// deltas cross zero instead.
type BatchOptions struct {
	AllowOverdraw bool
	ClampDebits   bool
}

// LedgerRepository is the single gate through which balances move. Every
// method runs as one database transaction: lock the account rows, append the
// transaction records, update the balances, commit or roll back entirely.
type LedgerRepository interface {
	Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error)
	Credit(ctx context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error)
	Debit(ctx context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string, allowOverdraw bool) (*models.Transaction, error)
	ApplyBatch(ctx context.Context, entries []LedgerEntry, typ models.TransactionType, desc string, opts BatchOptions) (int, error)
	History(ctx context.Context, accountID int64) ([]*models.Transaction, error)
}

type ledgerRepository struct {
	*BaseRepository
}

func NewLedgerRepository(db *bun.DB) LedgerRepository {
	return &ledgerRepository{BaseRepository: NewBaseRepository(db)}
}

// lockAccount reads an account row under FOR UPDATE inside tx.
func lockAccount(ctx context.Context, tx bun.Tx, id int64) (*models.Account, error) {
	account := new(models.Account)
	err := tx.NewSelect().
		Model(account).
		Where("a.id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "account", ID: id}
		}
		return nil, err
	}
	return account, nil
}

func setBalance(ctx context.Context, tx bun.Tx, id int64, balance decimal.Decimal) error {
	_, err := tx.NewUpdate().
		Model((*models.Account)(nil)).
		Set("balance = ?", balance).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *ledgerRepository) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error) {
	txn := &models.Transaction{
		FromAccountID: &fromID,
		ToAccountID:   &toID,
		Amount:        amount,
		Type:          typ,
		Description:   desc,
		CreatedAt:     time.Now(),
	}

	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		// Lock in id order so two opposing transfers cannot deadlock
		ids := []int64{fromID, toID}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		locked := make(map[int64]*models.Account, 2)
		for _, id := range ids {
			account, err := lockAccount(ctx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}

		from, to := locked[fromID], locked[toID]
		newFrom := from.Balance.Sub(amount)
		if newFrom.IsNegative() {
			return &economy.InsufficientFundsError{AccountID: fromID, Balance: from.Balance, Amount: amount}
		}

		if err := setBalance(ctx, tx, fromID, newFrom); err != nil {
			return err
		}
		if err := setBalance(ctx, tx, toID, to.Balance.Add(amount)); err != nil {
			return err
		}

		_, err := tx.NewInsert().Model(txn).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *ledgerRepository) Credit(ctx context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error) {
	txn := &models.Transaction{
		ToAccountID: &accountID,
		Amount:      amount,
		Type:        typ,
		Description: desc,
		CreatedAt:   time.Now(),
	}

	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		account, err := lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if err := setBalance(ctx, tx, accountID, account.Balance.Add(amount)); err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(txn).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *ledgerRepository) Debit(ctx context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string, allowOverdraw bool) (*models.Transaction, error) {
	txn := &models.Transaction{
		FromAccountID: &accountID,
		Amount:        amount,
		Type:          typ,
		Description:   desc,
		CreatedAt:     time.Now(),
	}

	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		account, err := lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		newBalance := account.Balance.Sub(amount)
		if newBalance.IsNegative() && !allowOverdraw {
			return &economy.InsufficientFundsError{AccountID: accountID, Balance: account.Balance, Amount: amount}
		}
		if err := setBalance(ctx, tx, accountID, newBalance); err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(txn).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *ledgerRepository) ApplyBatch(ctx context.Context, entries []LedgerEntry, typ models.TransactionType, desc string, opts BatchOptions) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	applied := 0
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		applied = 0

		// One lock pass over the whole scope, ordered to avoid deadlocks
		// against concurrent transfers
		ordered := make([]LedgerEntry, len(entries))
		copy(ordered, entries)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].AccountID < ordered[j].AccountID })

		now := time.Now()
		txns := make([]*models.Transaction, 0, len(ordered))
		for _, entry := range ordered {
			if entry.Delta.IsZero() {
				applied++
				continue
			}

			account, err := lockAccount(ctx, tx, entry.AccountID)
			if err != nil {
				return err
			}

			delta := entry.Delta
			if opts.ClampDebits && delta.IsNegative() && account.Balance.LessThan(delta.Abs()) {
				delta = account.Balance.Neg()
			}
			// A clamped-to-zero delta moves no money: the account counts as
			// covered by the batch but gets no ledger entry
			if delta.IsZero() {
				applied++
				continue
			}

			newBalance := account.Balance.Add(delta)
			if newBalance.IsNegative() && !opts.AllowOverdraw {
				return &economy.InsufficientFundsError{
					AccountID: entry.AccountID,
					Balance:   account.Balance,
					Amount:    delta.Abs(),
				}
			}
			if err := setBalance(ctx, tx, entry.AccountID, newBalance); err != nil {
				return err
			}

			id := entry.AccountID
			txn := &models.Transaction{
				Amount:      delta.Abs(),
				Type:        typ,
				Description: desc,
				CreatedAt:   now,
			}
			if delta.IsNegative() {
				txn.FromAccountID = &id
			} else {
				txn.ToAccountID = &id
			}
			txns = append(txns, txn)
			applied++
		}

		if len(txns) == 0 {
			return nil
		}

		timeoutCtx, cancel := r.WithCustomTimeout(ctx, config.BatchQueryTimeout)
		defer cancel()
		_, err := tx.NewInsert().Model(&txns).Exec(timeoutCtx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

func (r *ledgerRepository) History(ctx context.Context, accountID int64) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	err := r.GetDB().NewSelect().
		Model(&txns).
		Where("from_account_id = ? OR to_account_id = ?", accountID, accountID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	return txns, r.HandleErrorWithID("history", "transaction", accountID, err)
}
