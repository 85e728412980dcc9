package insurance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy"
	"github.com/teachertools/classbank/classbank/economy/economytest"
	"github.com/teachertools/classbank/classbank/economy/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRates() map[models.InsuranceType]decimal.Decimal {
	return map[models.InsuranceType]decimal.Decimal{
		models.InsuranceHealth:   dec("5"),
		models.InsuranceCyber:    dec("2"),
		models.InsuranceProperty: dec("3"),
	}
}

func newService(store *economytest.Store) *Service {
	return NewService(store.Insurance(), store.Accounts(), ledger.New(store.Ledger()), testRates())
}

func TestQuote(t *testing.T) {
	store := economytest.NewStore()
	// Salary 100: health 5%/week = 5.00, cyber 2%/week = 2.00
	account := store.AddAccount("alice", "3A", dec("500"), dec("100"))
	s := newService(store)

	quote, err := s.QuoteFor(context.Background(), account, []models.InsuranceType{models.InsuranceHealth, models.InsuranceCyber}, 4)
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)
	require.True(t, quote.Lines[0].WeeklyCost.Equal(dec("5")))
	require.True(t, quote.Lines[0].TotalCost.Equal(dec("20")))
	require.True(t, quote.Lines[1].WeeklyCost.Equal(dec("2")))
	require.True(t, quote.Total.Equal(dec("28")), "total = %s", quote.Total)
}

func TestQuoteValidation(t *testing.T) {
	store := economytest.NewStore()
	salaried := store.AddAccount("alice", "3A", dec("500"), dec("100"))
	unsalaried := store.AddAccount("bob", "3A", dec("500"), decimal.Zero)
	s := newService(store)
	ctx := context.Background()
	health := []models.InsuranceType{models.InsuranceHealth}

	tests := []struct {
		name    string
		account int64
		types   []models.InsuranceType
		weeks   int
		check   func(t *testing.T, err error)
	}{
		{
			name:    "no salary",
			account: unsalaried,
			types:   health,
			weeks:   4,
			check: func(t *testing.T, err error) {
				require.True(t, economy.IsNoSalary(err))
			},
		},
		{
			name:    "zero weeks",
			account: salaried,
			types:   health,
			weeks:   0,
			check:   func(t *testing.T, err error) { require.Error(t, err) },
		},
		{
			name:    "too many weeks",
			account: salaried,
			types:   health,
			weeks:   53,
			check:   func(t *testing.T, err error) { require.Error(t, err) },
		},
		{
			name:    "no types",
			account: salaried,
			types:   nil,
			weeks:   4,
			check:   func(t *testing.T, err error) { require.Error(t, err) },
		},
		{
			name:    "duplicate type",
			account: salaried,
			types:   []models.InsuranceType{models.InsuranceHealth, models.InsuranceHealth},
			weeks:   4,
			check:   func(t *testing.T, err error) { require.Error(t, err) },
		},
		{
			name:    "unknown type",
			account: salaried,
			types:   []models.InsuranceType{"meteor"},
			weeks:   4,
			check:   func(t *testing.T, err error) { require.Error(t, err) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.QuoteFor(ctx, tt.account, tt.types, tt.weeks)
			tt.check(t, err)
		})
	}
}

func TestPurchase(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", dec("500"), dec("100"))
	s := newService(store)
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	s.WithClock(func() time.Time { return now })
	ctx := context.Background()

	policies, err := s.Purchase(ctx, account, []models.InsuranceType{models.InsuranceHealth, models.InsuranceCyber}, 4)
	require.NoError(t, err)
	require.Len(t, policies, 2)

	// One premium debit covers both policies
	require.True(t, store.Balance(account).Equal(dec("472")))
	require.Equal(t, 1, store.TransactionCount())

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, p := range policies {
		require.True(t, p.WeekStartDate.Equal(start), "policies share one window")
		require.Equal(t, 4, p.Weeks)
	}
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", dec("10"), dec("100"))
	s := newService(store)
	ctx := context.Background()

	_, err := s.Purchase(ctx, account, []models.InsuranceType{models.InsuranceHealth}, 4)
	require.Error(t, err)
	require.True(t, economy.IsInsufficientFunds(err))

	// Failed purchase writes nothing
	require.True(t, store.Balance(account).Equal(dec("10")))
	active, err := s.ActivePolicies(ctx, account)
	require.NoError(t, err)
	require.Empty(t, active)
}

type failingPolicies struct {
	repositories.InsuranceRepository
	fail bool
}

func (f *failingPolicies) CreateAll(ctx context.Context, policies []*models.InsurancePolicy) error {
	if f.fail {
		return errors.New("policy store unavailable")
	}
	return f.InsuranceRepository.CreateAll(ctx, policies)
}

func TestPurchasePolicyWriteFailureRefunds(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", dec("500"), dec("100"))
	flaky := &failingPolicies{InsuranceRepository: store.Insurance(), fail: true}
	s := NewService(flaky, store.Accounts(), ledger.New(store.Ledger()), testRates())
	ctx := context.Background()

	// The premium was debited before the policy write failed; the refund
	// puts it back so the buyer is not charged for coverage that never
	// existed
	_, err := s.Purchase(ctx, account, []models.InsuranceType{models.InsuranceHealth}, 4)
	require.Error(t, err)
	require.True(t, store.Balance(account).Equal(dec("500")))

	active, err := s.ActivePolicies(ctx, account)
	require.NoError(t, err)
	require.Empty(t, active)

	flaky.fail = false
	policies, err := s.Purchase(ctx, account, []models.InsuranceType{models.InsuranceHealth}, 4)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	require.True(t, store.Balance(account).Equal(dec("480")))
}

func TestActivePoliciesWindow(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", dec("500"), dec("100"))
	s := newService(store)

	purchaseTime := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time { return purchaseTime })
	_, err := s.Purchase(context.Background(), account, []models.InsuranceType{models.InsuranceHealth}, 2)
	require.NoError(t, err)

	tests := []struct {
		name   string
		now    time.Time
		active bool
	}{
		{name: "during coverage", now: purchaseTime.AddDate(0, 0, 7), active: true},
		{name: "first day", now: purchaseTime, active: true},
		{name: "after expiry", now: purchaseTime.AddDate(0, 0, 15), active: false},
		{name: "before start", now: purchaseTime.AddDate(0, 0, -1), active: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.WithClock(func() time.Time { return tt.now })
			covered, err := s.Covered(context.Background(), account, models.InsuranceHealth)
			require.NoError(t, err)
			require.Equal(t, tt.active, covered)
		})
	}
}
