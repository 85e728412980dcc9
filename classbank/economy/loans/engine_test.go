package loans

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy"
	"github.com/teachertools/classbank/classbank/economy/economytest"
	"github.com/teachertools/classbank/classbank/economy/ledger"
	"github.com/teachertools/classbank/classbank/economy/settings"
)

type loanFixture struct {
	store  *economytest.Store
	engine *Engine
	clock  *time.Time
}

func newLoanFixture(t *testing.T) *loanFixture {
	t.Helper()
	store := economytest.NewStore()
	store.SetSetting(config.SettingLoanRate, "0.01")

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	f := &loanFixture{store: store, clock: &now}

	led := ledger.New(store.Ledger())
	set := settings.NewService(store.Settings())
	f.engine = NewEngine(store.Loans(), store.Accounts(), led, set).
		WithClock(func() time.Time { return *f.clock })
	return f
}

func (f *loanFixture) advanceMonth() {
	*f.clock = f.clock.AddDate(0, 1, 0)
}

func TestApplyValidation(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		term      int
		wantErr   bool
	}{
		{name: "valid", principal: "1200", term: 12},
		{name: "below minimum principal", principal: "5", term: 12, wantErr: true},
		{name: "above maximum principal", principal: "20000", term: 12, wantErr: true},
		{name: "zero term", principal: "1200", term: 0, wantErr: true},
		{name: "term too long", principal: "1200", term: 48, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoanFixture(t)
			account := f.store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)

			loan, err := f.engine.Apply(context.Background(), account, dec(tt.principal), tt.term)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && loan.Status != models.LoanPending {
				t.Errorf("status = %s, want pending", loan.Status)
			}
		})
	}
}

func TestApplyFreezesRate(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)

	loan, err := f.engine.Apply(context.Background(), account, dec("1200"), 12)
	require.NoError(t, err)
	require.True(t, loan.InterestRate.Equal(dec("0.01")))
}

func TestReviewApproveDisburses(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	ctx := context.Background()

	loan, err := f.engine.Apply(ctx, account, dec("1200"), 12)
	require.NoError(t, err)

	loan, err = f.engine.Review(ctx, loan.ID, true)
	require.NoError(t, err)
	require.Equal(t, models.LoanActive, loan.Status)
	require.True(t, loan.MonthlyPayment.Equal(dec("106.62")))
	require.True(t, loan.OutstandingBalance.Equal(dec("1200")))
	require.Equal(t, 12, loan.PaymentsRemaining)
	require.True(t, f.store.Balance(account).Equal(dec("1200")), "principal disbursed")
	require.Equal(t, PeriodKey(*f.clock), loan.LastPaymentPeriod, "approval month never collects")
}

func TestReviewDenyIsTerminal(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	ctx := context.Background()

	loan, err := f.engine.Apply(ctx, account, dec("1200"), 12)
	require.NoError(t, err)

	loan, err = f.engine.Review(ctx, loan.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.LoanDenied, loan.Status)
	require.True(t, f.store.Balance(account).IsZero(), "denial moves no money")

	_, err = f.engine.Review(ctx, loan.ID, true)
	require.Error(t, err)
	require.True(t, economy.IsInvalidStateTransition(err))
}

func TestReviewRejectsNonPending(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	ctx := context.Background()

	loan, err := f.engine.Apply(ctx, account, dec("1200"), 12)
	require.NoError(t, err)
	_, err = f.engine.Review(ctx, loan.ID, true)
	require.NoError(t, err)

	_, err = f.engine.Review(ctx, loan.ID, true)
	require.Error(t, err)
	require.True(t, economy.IsInvalidStateTransition(err))
}

func TestPostPaymentConvergesToPaidOff(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", dec("100"), decimal.Zero)
	ctx := context.Background()

	loan, err := f.engine.Apply(ctx, account, dec("1200"), 12)
	require.NoError(t, err)
	loan, err = f.engine.Review(ctx, loan.ID, true)
	require.NoError(t, err)

	for month := 1; month <= 12; month++ {
		f.advanceMonth()
		loan, err = f.engine.PostPayment(ctx, loan.ID, PeriodKey(*f.clock))
		require.NoError(t, err, "month %d", month)
	}

	require.Equal(t, models.LoanPaidOff, loan.Status)
	require.True(t, loan.OutstandingBalance.IsZero())
	require.Equal(t, 0, loan.PaymentsRemaining)
	// Interest accrues monthly on the remaining balance: eleven level
	// payments of 106.62 plus a clamped final payment of 106.60
	require.True(t, loan.TotalPaid.Equal(dec("1279.42")), "total paid = %s", loan.TotalPaid)
	require.True(t, f.store.Balance(account).Equal(dec("20.58")), "balance = %s", f.store.Balance(account))

	history, err := ledger.New(f.store.Ledger()).History(ctx, account)
	require.NoError(t, err)
	last := history[len(history)-1]
	require.True(t, last.Amount.Equal(dec("106.60")), "final payment = %s", last.Amount)
}

func TestPostPaymentCollectsInterest(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	ctx := context.Background()

	loan, err := f.engine.Apply(ctx, account, dec("1200"), 12)
	require.NoError(t, err)
	loan, err = f.engine.Review(ctx, loan.ID, true)
	require.NoError(t, err)

	// One percent on 1200 accrues 12.00; a 106.62 payment leaves 1105.38,
	// not the interest-free 1093.38
	f.advanceMonth()
	loan, err = f.engine.PostPayment(ctx, loan.ID, PeriodKey(*f.clock))
	require.NoError(t, err)
	require.True(t, loan.OutstandingBalance.Equal(dec("1105.38")), "outstanding = %s", loan.OutstandingBalance)

	f.advanceMonth()
	loan, err = f.engine.PostPayment(ctx, loan.ID, PeriodKey(*f.clock))
	require.NoError(t, err)
	require.True(t, loan.OutstandingBalance.Equal(dec("1009.81")), "outstanding = %s", loan.OutstandingBalance)
}

func TestPostPaymentIdempotentPerPeriod(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	ctx := context.Background()

	loan, err := f.engine.Apply(ctx, account, dec("1200"), 12)
	require.NoError(t, err)
	loan, err = f.engine.Review(ctx, loan.ID, true)
	require.NoError(t, err)

	f.advanceMonth()
	period := PeriodKey(*f.clock)
	loan, err = f.engine.PostPayment(ctx, loan.ID, period)
	require.NoError(t, err)
	afterFirst := f.store.Balance(account)

	// Re-running the same period is a no-op
	loan, err = f.engine.PostPayment(ctx, loan.ID, period)
	require.NoError(t, err)
	require.True(t, f.store.Balance(account).Equal(afterFirst))
	require.True(t, loan.TotalPaid.Equal(dec("106.62")))
}

func TestPostPaymentSkipsOnInsufficientFunds(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	ctx := context.Background()

	loan, err := f.engine.Apply(ctx, account, dec("1200"), 12)
	require.NoError(t, err)
	loan, err = f.engine.Review(ctx, loan.ID, true)
	require.NoError(t, err)

	// Drain the account so the first collection cannot cover the payment
	led := ledger.New(f.store.Ledger())
	_, err = led.Debit(ctx, account, dec("1200"), models.TransactionPurchase, "spent it all", ledger.DebitOptions{})
	require.NoError(t, err)

	f.advanceMonth()
	period := PeriodKey(*f.clock)
	loan, err = f.engine.PostPayment(ctx, loan.ID, period)
	require.NoError(t, err)
	require.Equal(t, 1, loan.SkippedPayments)
	require.NotNil(t, loan.LastSkippedAt)
	require.Equal(t, period, loan.LastPaymentPeriod, "skip still closes the period")
	require.True(t, loan.OutstandingBalance.Equal(dec("1200")), "skip collects nothing")
	require.True(t, f.store.Balance(account).IsZero(), "borrower not overdrawn")

	skipped, err := f.engine.ListSkipped(ctx)
	require.NoError(t, err)
	require.Len(t, skipped, 1)

	// Funds arrive; next period collects normally
	_, err = led.Credit(ctx, account, dec("500"), models.TransactionSalary, "payday")
	require.NoError(t, err)
	f.advanceMonth()
	loan, err = f.engine.PostPayment(ctx, loan.ID, PeriodKey(*f.clock))
	require.NoError(t, err)
	require.True(t, loan.TotalPaid.Equal(dec("106.62")))
}

func TestPostPaymentConcurrentSamePeriodCollectsOnce(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	ctx := context.Background()

	loan, err := f.engine.Apply(ctx, account, dec("1200"), 12)
	require.NoError(t, err)
	loan, err = f.engine.Review(ctx, loan.ID, true)
	require.NoError(t, err)

	// Two schedulers racing the same period must not double-debit: the
	// period claim admits exactly one collector
	f.advanceMonth()
	period := PeriodKey(*f.clock)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.PostPayment(ctx, loan.ID, period); err != nil {
				t.Errorf("PostPayment() error = %v", err)
			}
		}()
	}
	wg.Wait()

	loan, err = f.engine.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.True(t, loan.TotalPaid.Equal(dec("106.62")), "total paid = %s", loan.TotalPaid)
	require.True(t, f.store.Balance(account).Equal(dec("1093.38")), "balance = %s", f.store.Balance(account))
	require.Equal(t, 2, f.store.TransactionCount(), "disbursement plus one payment")
}

type failingCreditLedger struct {
	repositories.LedgerRepository
	fail bool
}

func (f *failingCreditLedger) Credit(ctx context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error) {
	if f.fail {
		return nil, errors.New("credit unavailable")
	}
	return f.LedgerRepository.Credit(ctx, accountID, amount, typ, desc)
}

func TestReviewDisbursementFailureRevertsToPending(t *testing.T) {
	store := economytest.NewStore()
	store.SetSetting(config.SettingLoanRate, "0.01")
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	flaky := &failingCreditLedger{LedgerRepository: store.Ledger(), fail: true}
	engine := NewEngine(store.Loans(), store.Accounts(), ledger.New(flaky), settings.NewService(store.Settings())).
		WithClock(func() time.Time { return now })
	account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	ctx := context.Background()

	loan, err := engine.Apply(ctx, account, dec("1200"), 12)
	require.NoError(t, err)

	_, err = engine.Review(ctx, loan.ID, true)
	require.Error(t, err)

	// The failed disbursement must not leave an active loan with no money
	// behind it; a retry approves cleanly once the ledger recovers
	loan, err = engine.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.Equal(t, models.LoanPending, loan.Status)
	require.True(t, loan.OutstandingBalance.IsZero())
	require.True(t, store.Balance(account).IsZero())

	flaky.fail = false
	loan, err = engine.Review(ctx, loan.ID, true)
	require.NoError(t, err)
	require.Equal(t, models.LoanActive, loan.Status)
	require.True(t, store.Balance(account).Equal(dec("1200")))
}

func TestPostPaymentPaidOffIsNoOp(t *testing.T) {
	f := newLoanFixture(t)
	account := f.store.AddAccount("alice", "3A", dec("2000"), decimal.Zero)
	ctx := context.Background()

	loan, err := f.engine.Apply(ctx, account, dec("100"), 1)
	require.NoError(t, err)
	loan, err = f.engine.Review(ctx, loan.ID, true)
	require.NoError(t, err)

	f.advanceMonth()
	loan, err = f.engine.PostPayment(ctx, loan.ID, PeriodKey(*f.clock))
	require.NoError(t, err)
	require.Equal(t, models.LoanPaidOff, loan.Status)
	balance := f.store.Balance(account)

	f.advanceMonth()
	loan, err = f.engine.PostPayment(ctx, loan.ID, PeriodKey(*f.clock))
	require.NoError(t, err)
	require.Equal(t, models.LoanPaidOff, loan.Status)
	require.True(t, f.store.Balance(account).Equal(balance), "paid_off collects nothing")
}

func TestSchedulerRunOnce(t *testing.T) {
	f := newLoanFixture(t)
	ctx := context.Background()

	// Three borrowers; the third cannot pay
	var loanIDs []int64
	for _, owner := range []string{"alice", "bob", "carol"} {
		account := f.store.AddAccount(owner, "3A", decimal.Zero, decimal.Zero)
		loan, err := f.engine.Apply(ctx, account, dec("1200"), 12)
		require.NoError(t, err)
		loan, err = f.engine.Review(ctx, loan.ID, true)
		require.NoError(t, err)
		loanIDs = append(loanIDs, loan.ID)
	}
	led := ledger.New(f.store.Ledger())
	carol, err := f.store.Accounts().GetByOwnerID(ctx, "carol")
	require.NoError(t, err)
	_, err = led.Debit(ctx, carol.ID, dec("1200"), models.TransactionPurchase, "spent", ledger.DebitOptions{})
	require.NoError(t, err)

	scheduler := NewScheduler(f.engine).WithClock(func() time.Time { return *f.clock })
	f.advanceMonth()
	require.NoError(t, scheduler.RunOnce(ctx))

	for i, id := range loanIDs[:2] {
		loan, err := f.engine.GetLoan(ctx, id)
		require.NoError(t, err)
		require.True(t, loan.TotalPaid.Equal(dec("106.62")), "loan %d", i)
	}
	carolLoan, err := f.engine.GetLoan(ctx, loanIDs[2])
	require.NoError(t, err)
	require.Equal(t, 1, carolLoan.SkippedPayments)

	// A second run in the same period changes nothing
	require.NoError(t, scheduler.RunOnce(ctx))
	loan, err := f.engine.GetLoan(ctx, loanIDs[0])
	require.NoError(t, err)
	require.True(t, loan.TotalPaid.Equal(dec("106.62")))
}
