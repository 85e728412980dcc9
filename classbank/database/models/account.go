package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Account is a student's (or the class fund's) ledger account. Accounts are
// never deleted; when the owner is removed the row stays as an orphan so the
// transaction history keeps replaying to the same balances.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID        int64  `bun:"id,pk,autoincrement"`
	OwnerID   string `bun:"owner_id,notnull,unique"`
	OwnerName string `bun:"owner_name,notnull"`
	ClassName string `bun:"class_name,notnull,default:''"`

	Balance decimal.Decimal `bun:"balance,type:numeric(20,2),notnull,default:0"`

	// Salary is maintained by the job/salary plumbing outside the engine and
	// read here for insurance quotes and salary-scoped disasters.
	Salary decimal.Decimal `bun:"salary,type:numeric(20,2),notnull,default:0"`

	Orphaned bool `bun:"orphaned,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
