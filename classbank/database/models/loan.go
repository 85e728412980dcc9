package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanApproved LoanStatus = "approved"
	LoanDenied   LoanStatus = "denied"
	LoanActive   LoanStatus = "active"
	LoanPaidOff  LoanStatus = "paid_off"
)

type Loan struct {
	bun.BaseModel `bun:"table:loans,alias:l"`

	ID        int64 `bun:"id,pk,autoincrement"`
	AccountID int64 `bun:"account_id,notnull"`

	Principal decimal.Decimal `bun:"principal,type:numeric(20,2),notnull"`

	// Monthly rate, e.g. 0.01 for 1% per month
	InterestRate decimal.Decimal `bun:"interest_rate,type:numeric(10,6),notnull"`

	TermMonths int        `bun:"term_months,notnull"`
	Status     LoanStatus `bun:"status,notnull,default:'pending'"`

	OutstandingBalance decimal.Decimal `bun:"outstanding_balance,type:numeric(20,2),notnull,default:0"`
	MonthlyPayment     decimal.Decimal `bun:"monthly_payment,type:numeric(20,2),notnull,default:0"`
	TotalPaid          decimal.Decimal `bun:"total_paid,type:numeric(20,2),notnull,default:0"`
	PaymentsRemaining  int             `bun:"payments_remaining,notnull,default:0"`

	// Skipped-payment marker: payments the schedule could not collect because
	// the borrower lacked funds. Reported to teachers, retried next period.
	SkippedPayments int        `bun:"skipped_payments,notnull,default:0"`
	LastSkippedAt   *time.Time `bun:"last_skipped_at"`

	// Period key ("2026-08") of the last posted or skipped payment. A tick
	// re-run inside the same period is a no-op, so crash replays cannot
	// double-charge.
	LastPaymentPeriod string `bun:"last_payment_period,notnull,default:''"`

	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	ApprovedAt *time.Time `bun:"approved_at"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`
}
