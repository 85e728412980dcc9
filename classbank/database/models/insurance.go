package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type InsuranceType string

const (
	InsuranceHealth   InsuranceType = "health"
	InsuranceCyber    InsuranceType = "cyber"
	InsuranceProperty InsuranceType = "property"
)

// InsurancePolicy is immutable once purchased: no cancellation, no refund.
// Whether it is active is always derived from the coverage window, never
// stored as a flag.
type InsurancePolicy struct {
	bun.BaseModel `bun:"table:insurance_policies,alias:ip"`

	ID            int64           `bun:"id,pk,autoincrement"`
	AccountID     int64           `bun:"account_id,notnull"`
	InsuranceType InsuranceType   `bun:"insurance_type,notnull"`
	Weeks         int             `bun:"weeks,notnull"`
	RatePercent   decimal.Decimal `bun:"rate_percent,type:numeric(10,6),notnull"`
	TotalCost     decimal.Decimal `bun:"total_cost,type:numeric(20,2),notnull"`
	WeekStartDate time.Time       `bun:"week_start_date,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ActiveAt reports whether the coverage window contains now.
func (p *InsurancePolicy) ActiveAt(now time.Time) bool {
	end := p.WeekStartDate.AddDate(0, 0, p.Weeks*7)
	return !now.Before(p.WeekStartDate) && now.Before(end)
}
