package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type GameType string

const (
	GameMath   GameType = "math"
	GameWordle GameType = "wordle"
)

type GameDifficulty string

const (
	DifficultyEasy   GameDifficulty = "easy"
	DifficultyMedium GameDifficulty = "medium"
	DifficultyHard   GameDifficulty = "hard"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionSettled    SessionStatus = "settled"
)

// GameSession records one play of a skill game. The id doubles as the
// settlement idempotency key. Challenge holds the server-generated problems
// or target word; Result holds the raw inputs the settlement was scored from.
type GameSession struct {
	bun.BaseModel `bun:"table:game_sessions,alias:gs"`

	ID         string         `bun:"id,pk"`
	AccountID  int64          `bun:"account_id,notnull"`
	GameType   GameType       `bun:"game_type,notnull"`
	Difficulty GameDifficulty `bun:"difficulty,notnull"`
	Status     SessionStatus  `bun:"status,notnull,default:'in_progress'"`

	Challenge json.RawMessage `bun:"challenge,type:jsonb,notnull"`
	Result    json.RawMessage `bun:"result,type:jsonb"`

	Earnings decimal.Decimal `bun:"earnings,type:numeric(20,2),notnull,default:0"`

	StartedAt time.Time  `bun:"started_at,notnull,default:current_timestamp"`
	SettledAt *time.Time `bun:"settled_at"`
}
