// Package insurance sells fixed-term coverage priced from the student's
// salary. Policies are immutable once bought; active coverage is always
// derived from the window, never stored.
package insurance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy"
	"github.com/teachertools/classbank/classbank/economy/ledger"
)

// QuoteLine prices one coverage type over the requested term.
type QuoteLine struct {
	Type        models.InsuranceType
	RatePercent decimal.Decimal
	WeeklyCost  decimal.Decimal
	TotalCost   decimal.Decimal
}

// Quote is the full price breakdown of a prospective purchase.
type Quote struct {
	AccountID int64
	Weeks     int
	Lines     []QuoteLine
	Total     decimal.Decimal
}

type Service struct {
	policies repositories.InsuranceRepository
	accounts repositories.AccountRepository
	ledger   *ledger.Ledger

	// rates are percent of salary per week, keyed by coverage type
	rates map[models.InsuranceType]decimal.Decimal
	now   func() time.Time
}

func NewService(
	policies repositories.InsuranceRepository,
	accounts repositories.AccountRepository,
	led *ledger.Ledger,
	rates map[models.InsuranceType]decimal.Decimal,
) *Service {
	return &Service{
		policies: policies,
		accounts: accounts,
		ledger:   led,
		rates:    rates,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Used by tests to pin windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// QuoteFor prices the requested coverage types over weeks. Premiums are a
// percentage of the weekly salary, so an account without a salary cannot be
// quoted at all.
func (s *Service) QuoteFor(ctx context.Context, accountID int64, types []models.InsuranceType, weeks int) (*Quote, error) {
	if weeks < config.MinInsuranceWeeks || weeks > config.MaxInsuranceWeeks {
		return nil, fmt.Errorf("weeks %d outside allowed range [%d, %d]", weeks, config.MinInsuranceWeeks, config.MaxInsuranceWeeks)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("at least one coverage type required")
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.Salary.IsPositive() {
		return nil, &economy.NoSalaryError{AccountID: accountID}
	}

	seen := make(map[models.InsuranceType]bool, len(types))
	quote := &Quote{AccountID: accountID, Weeks: weeks, Total: decimal.Zero}
	for _, typ := range types {
		if seen[typ] {
			return nil, fmt.Errorf("duplicate coverage type %q", typ)
		}
		seen[typ] = true

		rate, ok := s.rates[typ]
		if !ok {
			return nil, fmt.Errorf("unknown coverage type %q", typ)
		}

		weekly := account.Salary.Mul(rate).DivRound(decimal.NewFromInt(100), 2)
		total := weekly.Mul(decimal.NewFromInt(int64(weeks)))
		quote.Lines = append(quote.Lines, QuoteLine{
			Type:        typ,
			RatePercent: rate,
			WeeklyCost:  weekly,
			TotalCost:   total,
		})
		quote.Total = quote.Total.Add(total)
	}
	return quote, nil
}

// Purchase quotes and buys in one step: a single premium debit covers every
// selected type, and all policies of the purchase share one coverage window.
// The debit keeps the zero floor; coverage is not worth going negative for.
func (s *Service) Purchase(ctx context.Context, accountID int64, types []models.InsuranceType, weeks int) ([]*models.InsurancePolicy, error) {
	quote, err := s.QuoteFor(ctx, accountID, types, weeks)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(quote.Lines))
	for i, line := range quote.Lines {
		names[i] = string(line.Type)
	}
	desc := fmt.Sprintf("insurance premium: %s for %d weeks", strings.Join(names, ", "), weeks)

	if _, err := s.ledger.Debit(ctx, accountID, quote.Total, models.TransactionInsurancePremium, desc, ledger.DebitOptions{}); err != nil {
		return nil, err
	}

	start := startOfDay(s.now())
	policies := make([]*models.InsurancePolicy, len(quote.Lines))
	for i, line := range quote.Lines {
		policies[i] = &models.InsurancePolicy{
			AccountID:     accountID,
			InsuranceType: line.Type,
			Weeks:         weeks,
			RatePercent:   line.RatePercent,
			TotalCost:     line.TotalCost,
			WeekStartDate: start,
		}
	}
	if err := s.policies.CreateAll(ctx, policies); err != nil {
		// A charged premium without policy rows is money for nothing; give
		// it back before surfacing the failure
		refundDesc := fmt.Sprintf("insurance premium refund: %s", desc)
		if _, rerr := s.ledger.Credit(ctx, accountID, quote.Total, models.TransactionInsurancePremium, refundDesc); rerr != nil {
			slog.Error("Premium refund after failed policy write failed",
				slog.String("type", "ledger"),
				slog.Int64("account_id", accountID),
				slog.String("premium", quote.Total.String()),
				slog.Any("error", rerr))
		}
		return nil, err
	}

	slog.Info("Insurance purchased",
		slog.String("type", "op"),
		slog.Int64("account_id", accountID),
		slog.Int("policies", len(policies)),
		slog.Int("weeks", weeks),
		slog.String("premium", quote.Total.String()))
	return policies, nil
}

// ActivePolicies returns the account's policies whose window contains now.
func (s *Service) ActivePolicies(ctx context.Context, accountID int64) ([]*models.InsurancePolicy, error) {
	all, err := s.policies.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	active := all[:0]
	for _, p := range all {
		if p.ActiveAt(now) {
			active = append(active, p)
		}
	}
	return active, nil
}

// Covered reports whether the account holds active coverage of one type.
func (s *Service) Covered(ctx context.Context, accountID int64, typ models.InsuranceType) (bool, error) {
	active, err := s.ActivePolicies(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, p := range active {
		if p.InsuranceType == typ {
			return true, nil
		}
	}
	return false, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
