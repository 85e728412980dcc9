package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DailyPlayCounter tracks plays per account, game and game day. GameDay is
// the fixed-hour day index, not a calendar date, so the counter rolls over at
// the configured reset hour. The (account, game, day) row is unique and the
// count is only ever moved by a conditional upsert.
type DailyPlayCounter struct {
	bun.BaseModel `bun:"table:daily_play_counters,alias:dpc"`

	ID        int64    `bun:"id,pk,autoincrement"`
	AccountID int64    `bun:"account_id,notnull,unique:uq_daily_play"`
	GameType  GameType `bun:"game_type,notnull,unique:uq_daily_play"`
	GameDay   int64    `bun:"game_day,notnull,unique:uq_daily_play"`
	Count     int      `bun:"count,notnull,default:0"`

	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// HighScore keeps the best settled score per account and game.
type HighScore struct {
	bun.BaseModel `bun:"table:high_scores,alias:hs"`

	ID         int64     `bun:"id,pk,autoincrement"`
	AccountID  int64     `bun:"account_id,notnull,unique:uq_high_score"`
	GameType   GameType  `bun:"game_type,notnull,unique:uq_high_score"`
	Score      int       `bun:"score,notnull,default:0"`
	AchievedAt time.Time `bun:"achieved_at,notnull"`
}
