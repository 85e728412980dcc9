package loans

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy"
	"github.com/teachertools/classbank/classbank/economy/ledger"
	"github.com/teachertools/classbank/classbank/economy/settings"
)

type Engine struct {
	loans    repositories.LoanRepository
	accounts repositories.AccountRepository
	ledger   *ledger.Ledger
	settings *settings.Service

	now func() time.Time
}

func NewEngine(
	loans repositories.LoanRepository,
	accounts repositories.AccountRepository,
	led *ledger.Ledger,
	set *settings.Service,
) *Engine {
	return &Engine{
		loans:    loans,
		accounts: accounts,
		ledger:   led,
		settings: set,
		now:      time.Now,
	}
}

// WithClock overrides the engine clock. Used by tests to pin period keys.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// PeriodKey is the monthly idempotency key for scheduled collections.
func PeriodKey(t time.Time) string {
	return t.Format("2006-01")
}

// Apply files a loan application. The rate is frozen from the settings
// snapshot at application time; later rate changes do not reprice it.
func (e *Engine) Apply(ctx context.Context, accountID int64, principal decimal.Decimal, termMonths int) (*models.Loan, error) {
	if _, err := e.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	minP := decimal.NewFromInt(config.MinLoanPrincipal)
	maxP := decimal.NewFromInt(config.MaxLoanPrincipal)
	if principal.LessThan(minP) || principal.GreaterThan(maxP) {
		return nil, fmt.Errorf("principal %s outside allowed range [%s, %s]", principal, minP, maxP)
	}
	if termMonths < config.MinLoanTerm || termMonths > config.MaxLoanTerm {
		return nil, fmt.Errorf("term %d outside allowed range [%d, %d] months", termMonths, config.MinLoanTerm, config.MaxLoanTerm)
	}

	snap, err := e.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rate := snap.Decimal(config.SettingLoanRate, decimal.RequireFromString("0.01"))

	loan := &models.Loan{
		AccountID:    accountID,
		Principal:    principal,
		InterestRate: rate,
		TermMonths:   termMonths,
		Status:       models.LoanPending,
	}
	if err := e.loans.Create(ctx, loan); err != nil {
		return nil, err
	}

	slog.Info("Loan application filed",
		slog.String("type", "op"),
		slog.Int64("loan_id", loan.ID),
		slog.Int64("account_id", accountID),
		slog.String("principal", principal.String()),
		slog.Int("term_months", termMonths))
	return loan, nil
}

// Review approves or denies a pending application. Approval disburses the
// principal immediately and activates the repayment schedule.
func (e *Engine) Review(ctx context.Context, loanID int64, approve bool) (*models.Loan, error) {
	loan, err := e.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanPending {
		target := models.LoanDenied
		if approve {
			target = models.LoanActive
		}
		return nil, &economy.InvalidStateTransitionError{
			Entity: fmt.Sprintf("loan %d", loanID),
			From:   string(loan.Status),
			To:     string(target),
		}
	}

	if !approve {
		loan.Status = models.LoanDenied
		if err := e.loans.Update(ctx, loan); err != nil {
			return nil, err
		}
		slog.Info("Loan denied",
			slog.String("type", "op"),
			slog.Int64("loan_id", loanID))
		return loan, nil
	}

	now := e.now()
	loan.Status = models.LoanActive
	loan.ApprovedAt = &now
	loan.OutstandingBalance = loan.Principal
	loan.MonthlyPayment = MonthlyPayment(loan.Principal, loan.InterestRate, loan.TermMonths)
	loan.PaymentsRemaining = loan.TermMonths
	// The approval period never collects; the first payment falls due the
	// following month.
	loan.LastPaymentPeriod = PeriodKey(now)
	if err := e.loans.Update(ctx, loan); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("loan %d disbursement: %s over %d months", loan.ID, loan.Principal, loan.TermMonths)
	if _, err := e.ledger.Credit(ctx, loan.AccountID, loan.Principal, models.TransactionLoanDisbursement, desc); err != nil {
		// Roll the activation back: an active loan without its disbursement
		// would start collecting against money never paid out
		loan.Status = models.LoanPending
		loan.ApprovedAt = nil
		loan.OutstandingBalance = decimal.Zero
		loan.MonthlyPayment = decimal.Zero
		loan.PaymentsRemaining = 0
		loan.LastPaymentPeriod = ""
		if uerr := e.loans.Update(ctx, loan); uerr != nil {
			slog.Error("Loan activation rollback failed",
				slog.String("type", "op"),
				slog.Int64("loan_id", loanID),
				slog.Any("error", uerr))
		}
		return nil, err
	}

	slog.Info("Loan approved and disbursed",
		slog.String("type", "op"),
		slog.Int64("loan_id", loanID),
		slog.String("principal", loan.Principal.String()),
		slog.String("monthly_payment", loan.MonthlyPayment.String()))
	return loan, nil
}

// PostPayment attempts the scheduled collection for one loan in one period.
// It is idempotent per period key: the period is claimed with a single
// conditional update before any money moves, so concurrent ticks from
// multiple processes cannot double-debit the borrower. Insufficient funds
// skip the payment and flag the loan rather than overdrawing.
func (e *Engine) PostPayment(ctx context.Context, loanID int64, periodKey string) (*models.Loan, error) {
	loan, err := e.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if loan.Status == models.LoanPaidOff {
		return loan, nil
	}
	if loan.Status != models.LoanActive {
		return nil, &economy.InvalidStateTransitionError{
			Entity: fmt.Sprintf("loan %d", loanID),
			From:   string(loan.Status),
			To:     "payment",
		}
	}
	if loan.LastPaymentPeriod == periodKey {
		return loan, nil
	}

	prevPeriod := loan.LastPaymentPeriod
	claimed, err := e.loans.ClaimPeriod(ctx, loanID, periodKey)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another process posted this period between our read and the claim
		return e.loans.GetByID(ctx, loanID)
	}
	loan.LastPaymentPeriod = periodKey

	// Interest accrues on the remaining balance each period; the final
	// payment clamps to what is owed, absorbing rounding drift from the
	// level-payment schedule.
	interest := loan.OutstandingBalance.Mul(loan.InterestRate).Round(2)
	owed := loan.OutstandingBalance.Add(interest)
	due := decimal.Min(loan.MonthlyPayment, owed)
	desc := fmt.Sprintf("loan %d payment for %s", loan.ID, periodKey)

	_, err = e.ledger.Debit(ctx, loan.AccountID, due, models.TransactionLoanPayment, desc, ledger.DebitOptions{})
	if err != nil {
		if !economy.IsInsufficientFunds(err) {
			// Release the claim so the period is retried, not silently lost
			loan.LastPaymentPeriod = prevPeriod
			if uerr := e.loans.Update(ctx, loan); uerr != nil {
				slog.Error("Loan period claim release failed",
					slog.String("type", "op"),
					slog.Int64("loan_id", loanID),
					slog.String("period", periodKey),
					slog.Any("error", uerr))
			}
			return nil, err
		}
		now := e.now()
		loan.SkippedPayments++
		loan.LastSkippedAt = &now
		if uerr := e.loans.Update(ctx, loan); uerr != nil {
			return nil, uerr
		}
		slog.Warn("Loan payment skipped",
			slog.String("type", "op"),
			slog.Int64("loan_id", loanID),
			slog.String("period", periodKey),
			slog.Int("skipped_total", loan.SkippedPayments))
		return loan, nil
	}

	loan.OutstandingBalance = owed.Sub(due)
	loan.TotalPaid = loan.TotalPaid.Add(due)
	if loan.PaymentsRemaining > 0 {
		loan.PaymentsRemaining--
	}
	if loan.OutstandingBalance.LessThanOrEqual(decimal.Zero) {
		loan.OutstandingBalance = decimal.Zero
		loan.PaymentsRemaining = 0
		loan.Status = models.LoanPaidOff
	}
	if err := e.loans.Update(ctx, loan); err != nil {
		return nil, err
	}

	slog.Info("Loan payment collected",
		slog.String("type", "op"),
		slog.Int64("loan_id", loanID),
		slog.String("period", periodKey),
		slog.String("amount", due.String()),
		slog.String("outstanding", loan.OutstandingBalance.String()),
		slog.Bool("paid_off", loan.Status == models.LoanPaidOff))
	return loan, nil
}

// GetLoan returns one loan by id.
func (e *Engine) GetLoan(ctx context.Context, loanID int64) (*models.Loan, error) {
	return e.loans.GetByID(ctx, loanID)
}

// ListForAccount returns an account's loans, newest first.
func (e *Engine) ListForAccount(ctx context.Context, accountID int64) ([]*models.Loan, error) {
	return e.loans.ListByAccount(ctx, accountID)
}

// ListSkipped returns active loans with at least one missed collection, for
// the teacher's delinquency report.
func (e *Engine) ListSkipped(ctx context.Context) ([]*models.Loan, error) {
	return e.loans.ListSkipped(ctx)
}
