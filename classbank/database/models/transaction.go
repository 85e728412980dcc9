package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TransactionType string

const (
	TransactionTransfer           TransactionType = "transfer"
	TransactionSalary             TransactionType = "salary"
	TransactionDeposit            TransactionType = "deposit"
	TransactionWithdrawal         TransactionType = "withdrawal"
	TransactionLoanDisbursement   TransactionType = "loan_disbursement"
	TransactionLoanPayment        TransactionType = "loan_payment"
	TransactionGameReward         TransactionType = "game_reward"
	TransactionPurchase           TransactionType = "purchase"
	TransactionInsurancePremium   TransactionType = "insurance_premium"
	TransactionDisasterAdjustment TransactionType = "disaster_adjustment"
	TransactionBulkPayment        TransactionType = "bulk_payment"
	TransactionBulkRemoval        TransactionType = "bulk_removal"
)

// Transaction is one append-only ledger entry. At least one of FromAccountID
// and ToAccountID is set; the amount is always positive and the direction is
// carried by which side is set.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID            int64           `bun:"id,pk,autoincrement"`
	FromAccountID *int64          `bun:"from_account_id"`
	ToAccountID   *int64          `bun:"to_account_id"`
	Amount        decimal.Decimal `bun:"amount,type:numeric(20,2),notnull"`
	Type          TransactionType `bun:"type,notnull"`
	Description   string          `bun:"description,notnull,default:''"`
	CreatedAt     time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}
