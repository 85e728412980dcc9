// Package bulk applies one adjustment to a whole class (or everyone) as a
// single all-or-nothing ledger batch.
package bulk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sahilm/fuzzy"
	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy/ledger"
)

// Scope selects the accounts a bulk operation covers. An empty ClassName
// means every non-orphaned account.
type Scope struct {
	ClassName string
}

// Result reports what a bulk operation did. When the scope matched nothing,
// Applied is 0 and Suggestions carries close class-name matches so a typo in
// the class name reads as a typo, not a silent success.
type Result struct {
	Applied     int
	Suggestions []string
}

type Processor struct {
	accounts repositories.AccountRepository
	ledger   *ledger.Ledger
}

func NewProcessor(accounts repositories.AccountRepository, led *ledger.Ledger) *Processor {
	return &Processor{accounts: accounts, ledger: led}
}

// Pay credits amount to every account in scope, atomically.
func (p *Processor) Pay(ctx context.Context, scope Scope, amount decimal.Decimal, desc string) (*Result, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("bulk payment amount must be positive, got %s", amount)
	}
	return p.Adjust(ctx, scope, amount, models.TransactionBulkPayment, desc)
}

// Remove debits amount from every account in scope, atomically. Each debit
// is clamped at the account's balance: nobody goes negative, and a clamped
// account still counts as covered.
func (p *Processor) Remove(ctx context.Context, scope Scope, amount decimal.Decimal, desc string) (*Result, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("bulk removal amount must be positive, got %s", amount)
	}
	return p.Adjust(ctx, scope, amount.Neg(), models.TransactionBulkRemoval, desc)
}

// Adjust is the generic primitive behind Pay and Remove: one signed delta
// applied to the whole scope in a single all-or-nothing batch. Negative
// deltas clamp at each account's balance, read under the batch's row locks
// so a concurrent debit cannot turn a clamp into an overdraw.
func (p *Processor) Adjust(ctx context.Context, scope Scope, delta decimal.Decimal, typ models.TransactionType, desc string) (*Result, error) {
	accounts, err := p.resolve(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		suggestions, serr := p.suggestClasses(ctx, scope.ClassName)
		if serr != nil {
			slog.Warn("Class suggestion lookup failed",
				slog.String("type", "db"),
				slog.Any("error", serr))
		}
		return &Result{Applied: 0, Suggestions: suggestions}, nil
	}

	entries := make([]repositories.LedgerEntry, 0, len(accounts))
	for _, account := range accounts {
		entries = append(entries, repositories.LedgerEntry{AccountID: account.ID, Delta: delta})
	}

	applied, err := p.ledger.ApplyBatch(ctx, entries, typ, desc, repositories.BatchOptions{ClampDebits: delta.IsNegative()})
	if err != nil {
		return nil, err
	}

	slog.Info("Bulk adjustment applied",
		slog.String("type", "op"),
		slog.String("tx_type", string(typ)),
		slog.String("class", scope.ClassName),
		slog.String("delta", delta.String()),
		slog.Int("accounts", applied))
	return &Result{Applied: applied}, nil
}

func (p *Processor) resolve(ctx context.Context, scope Scope) ([]*models.Account, error) {
	if scope.ClassName == "" {
		return p.accounts.ListAll(ctx)
	}
	return p.accounts.ListByClass(ctx, scope.ClassName)
}

// suggestClasses fuzzy-matches the requested name against the known class
// names, best matches first.
func (p *Processor) suggestClasses(ctx context.Context, requested string) ([]string, error) {
	if requested == "" {
		return nil, nil
	}
	names, err := p.accounts.ListClassNames(ctx)
	if err != nil {
		return nil, err
	}

	matches := fuzzy.Find(requested, names)
	suggestions := make([]string, 0, len(matches))
	for i, match := range matches {
		if i >= 3 {
			break
		}
		suggestions = append(suggestions, match.Str)
	}
	return suggestions, nil
}
