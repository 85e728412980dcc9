package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type DisasterEffectType string

const (
	EffectBalancePercentage DisasterEffectType = "balance_percentage"
	EffectBalanceFixed      DisasterEffectType = "balance_fixed"
	EffectSalaryPercentage  DisasterEffectType = "salary_percentage"
)

// Disaster is a reusable template. EffectValue is signed: negative values
// drain accounts, positive values are windfalls. TargetClass empty means
// every class.
type Disaster struct {
	bun.BaseModel `bun:"table:disasters,alias:d"`

	ID          int64              `bun:"id,pk,autoincrement"`
	Name        string             `bun:"name,notnull"`
	Description string             `bun:"description,notnull,default:''"`
	EffectType  DisasterEffectType `bun:"effect_type,notnull"`
	EffectValue decimal.Decimal    `bun:"effect_value,type:numeric(20,6),notnull"`
	TargetClass string             `bun:"target_class,notnull,default:''"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// DisasterEvent is the immutable record of one trigger.
type DisasterEvent struct {
	bun.BaseModel `bun:"table:disaster_events,alias:de"`

	ID               int64           `bun:"id,pk,autoincrement"`
	DisasterID       int64           `bun:"disaster_id,notnull"`
	AffectedStudents int             `bun:"affected_students,notnull"`
	TotalImpact      decimal.Decimal `bun:"total_impact,type:numeric(20,2),notnull"`
	Notes            string          `bun:"notes,notnull,default:''"`
	TriggeredAt      time.Time       `bun:"triggered_at,notnull,default:current_timestamp"`
}
