// Package ledger is the money-movement service. Every mutation funnels into
// a single database transaction in the ledger repository; this layer adds
// validation, the overdraw policy, and a bounded retry on transient store
// conflicts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy"
)

// DebitOptions controls the floor policy for one-sided debits. Ordinary
// purchases and withdrawals keep the zero floor; loan payments, insurance
// premiums and disasters are explicitly permitted to overdraw.
type DebitOptions struct {
	AllowOverdraw bool
}

type Ledger struct {
	repo repositories.LedgerRepository
}

func New(repo repositories.LedgerRepository) *Ledger {
	return &Ledger{repo: repo}
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}
	return nil
}

func validDescription(desc string) error {
	if len(desc) > config.MaxDescriptionLength {
		return fmt.Errorf("description exceeds %d characters", config.MaxDescriptionLength)
	}
	return nil
}

// Transfer debits from and credits to atomically. A failed transfer changes
// no balance.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, fmt.Errorf("transfer to the same account %d", fromID)
	}
	if err := validDescription(desc); err != nil {
		return nil, err
	}

	var txn *models.Transaction
	err := l.withRetry(ctx, "transfer", func() error {
		var err error
		txn, err = l.repo.Transfer(ctx, fromID, toID, amount, typ, desc)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Transfer posted",
		slog.String("type", "ledger"),
		slog.Int64("from", fromID),
		slog.Int64("to", toID),
		slog.String("amount", amount.String()),
		slog.String("tx_type", string(typ)))
	return txn, nil
}

// Credit adds amount to one account.
func (l *Ledger) Credit(ctx context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if err := validDescription(desc); err != nil {
		return nil, err
	}

	var txn *models.Transaction
	err := l.withRetry(ctx, "credit", func() error {
		var err error
		txn, err = l.repo.Credit(ctx, accountID, amount, typ, desc)
		return err
	})
	return txn, err
}

// Debit removes amount from one account subject to the floor policy.
func (l *Ledger) Debit(ctx context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string, opts DebitOptions) (*models.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if err := validDescription(desc); err != nil {
		return nil, err
	}

	var txn *models.Transaction
	err := l.withRetry(ctx, "debit", func() error {
		var err error
		txn, err = l.repo.Debit(ctx, accountID, amount, typ, desc, opts.AllowOverdraw)
		return err
	})
	return txn, err
}

// ApplyBatch applies a set of signed deltas in one all-or-nothing store
// transaction and returns how many accounts were covered. The floor policy
// in opts is enforced against the locked balances inside that transaction.
func (l *Ledger) ApplyBatch(ctx context.Context, entries []repositories.LedgerEntry, typ models.TransactionType, desc string, opts repositories.BatchOptions) (int, error) {
	applied := 0
	err := l.withRetry(ctx, "apply_batch", func() error {
		var err error
		applied, err = l.repo.ApplyBatch(ctx, entries, typ, desc, opts)
		return err
	})
	return applied, err
}

// History returns an account's full transaction log, oldest first.
func (l *Ledger) History(ctx context.Context, accountID int64) ([]*models.Transaction, error) {
	return l.repo.History(ctx, accountID)
}

// Replay recomputes a balance from the transaction log. Accounts start at
// zero, so the replayed value must equal the stored balance at all times;
// the admin verification path and the tests both lean on this.
func (l *Ledger) Replay(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	txns, err := l.repo.History(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, txn := range txns {
		if txn.ToAccountID != nil && *txn.ToAccountID == accountID {
			balance = balance.Add(txn.Amount)
		}
		if txn.FromAccountID != nil && *txn.FromAccountID == accountID {
			balance = balance.Sub(txn.Amount)
		}
	}
	return balance, nil
}

// withRetry reruns fn on transient serialization or deadlock aborts, a
// bounded number of times with a linear backoff, then surfaces the conflict.
func (l *Ledger) withRetry(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		err = fn()
		if err == nil || !isTransientConflict(err) {
			return err
		}

		slog.Warn("Ledger conflict, retrying",
			slog.String("type", "ledger"),
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * config.RetryInterval):
		}
	}
	return &economy.ConcurrentModificationError{Operation: operation, Attempts: config.MaxRetries, Err: err}
}

// isTransientConflict matches serialization failures (40001) and deadlocks
// (40P01), which are safe to rerun because the aborted transaction had no
// effect.
func isTransientConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
