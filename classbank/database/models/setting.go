package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Setting is one versioned key/value toggle. Version is monotonic per key;
// engines read all settings as a single snapshot and carry that snapshot
// through the whole operation.
type Setting struct {
	bun.BaseModel `bun:"table:bank_settings,alias:bs"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	Version   int64     `bun:"version,notnull,default:1"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
