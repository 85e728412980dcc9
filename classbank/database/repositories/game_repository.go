package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/uptrace/bun"
)

type GameSessionRepository interface {
	Create(ctx context.Context, session *models.GameSession) error
	GetByID(ctx context.Context, id string) (*models.GameSession, error)
	// SettleOnce flips in_progress -> settled and records the outcome in one
	// conditional update. It reports false when the session was already
	// settled, which is the settlement idempotency signal.
	SettleOnce(ctx context.Context, id string, result json.RawMessage, earnings decimal.Decimal, settledAt time.Time) (bool, error)
	// Reopen reverts a settled session to in_progress, clearing its outcome.
	// Used when the side effects of a won settlement could not complete, so a
	// retry can run the settlement again instead of losing the reward.
	Reopen(ctx context.Context, id string) error
}

type DailyPlayRepository interface {
	// IncrementIfBelow bumps the (account, game, day) counter only while it
	// is under limit, as a single atomic statement. It returns the count
	// after the call and whether the increment happened. Two concurrent
	// calls for the last slot can never both succeed.
	IncrementIfBelow(ctx context.Context, accountID int64, game models.GameType, gameDay int64, limit int) (int, bool, error)
	Count(ctx context.Context, accountID int64, game models.GameType, gameDay int64) (int, error)
}

type HighScoreRepository interface {
	// RecordScore keeps the per-account best; lower scores leave the row
	// untouched.
	RecordScore(ctx context.Context, accountID int64, game models.GameType, score int, at time.Time) error
	Get(ctx context.Context, accountID int64, game models.GameType) (*models.HighScore, error)
}

type gameSessionRepository struct {
	*BaseRepository
}

func NewGameSessionRepository(db *bun.DB) GameSessionRepository {
	return &gameSessionRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *gameSessionRepository) Create(ctx context.Context, session *models.GameSession) error {
	session.StartedAt = time.Now()
	_, err := r.GetDB().NewInsert().Model(session).Exec(ctx)
	return r.HandleError("create", "game_session", err)
}

func (r *gameSessionRepository) GetByID(ctx context.Context, id string) (*models.GameSession, error) {
	session := new(models.GameSession)
	err := r.GetDB().NewSelect().
		Model(session).
		Where("gs.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "game_session", ID: id}
		}
		return nil, r.HandleErrorWithID("get", "game_session", id, err)
	}
	return session, nil
}

func (r *gameSessionRepository) SettleOnce(ctx context.Context, id string, result json.RawMessage, earnings decimal.Decimal, settledAt time.Time) (bool, error) {
	res, err := r.GetDB().NewUpdate().
		Model((*models.GameSession)(nil)).
		Set("status = ?", models.SessionSettled).
		Set("result = ?", result).
		Set("earnings = ?", earnings).
		Set("settled_at = ?", settledAt).
		Where("id = ?", id).
		Where("status = ?", models.SessionInProgress).
		Exec(ctx)
	if err != nil {
		return false, r.HandleErrorWithID("settle", "game_session", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleErrorWithID("settle", "game_session", id, err)
	}
	return affected == 1, nil
}

func (r *gameSessionRepository) Reopen(ctx context.Context, id string) error {
	_, err := r.GetDB().NewUpdate().
		Model((*models.GameSession)(nil)).
		Set("status = ?", models.SessionInProgress).
		Set("result = NULL").
		Set("earnings = 0").
		Set("settled_at = NULL").
		Where("id = ?", id).
		Where("status = ?", models.SessionSettled).
		Exec(ctx)
	return r.HandleErrorWithID("reopen", "game_session", id, err)
}

type dailyPlayRepository struct {
	*BaseRepository
}

func NewDailyPlayRepository(db *bun.DB) DailyPlayRepository {
	return &dailyPlayRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *dailyPlayRepository) IncrementIfBelow(ctx context.Context, accountID int64, game models.GameType, gameDay int64, limit int) (int, bool, error) {
	// Upsert with a guarded DO UPDATE: the WHERE on the conflict arm makes
	// increment-and-check one atomic statement, so there is no
	// check-then-act window
	var count int
	err := r.GetDB().QueryRowContext(ctx, `
        INSERT INTO daily_play_counters (account_id, game_type, game_day, count, updated_at)
        VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP)
        ON CONFLICT (account_id, game_type, game_day)
        DO UPDATE SET count = daily_play_counters.count + 1, updated_at = CURRENT_TIMESTAMP
        WHERE daily_play_counters.count < ?
        RETURNING count
    `, accountID, string(game), gameDay, limit).Scan(&count)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict arm rejected: the counter already sits at the limit
			current, cerr := r.Count(ctx, accountID, game, gameDay)
			if cerr != nil {
				return 0, false, cerr
			}
			return current, false, nil
		}
		return 0, false, r.HandleError("increment", "daily_play_counter", err)
	}
	return count, true, nil
}

func (r *dailyPlayRepository) Count(ctx context.Context, accountID int64, game models.GameType, gameDay int64) (int, error) {
	counter := new(models.DailyPlayCounter)
	err := r.GetDB().NewSelect().
		Model(counter).
		Where("account_id = ?", accountID).
		Where("game_type = ?", game).
		Where("game_day = ?", gameDay).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, r.HandleError("count", "daily_play_counter", err)
	}
	return counter.Count, nil
}

type highScoreRepository struct {
	*BaseRepository
}

func NewHighScoreRepository(db *bun.DB) HighScoreRepository {
	return &highScoreRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *highScoreRepository) RecordScore(ctx context.Context, accountID int64, game models.GameType, score int, at time.Time) error {
	_, err := r.GetDB().ExecContext(ctx, `
        INSERT INTO high_scores (account_id, game_type, score, achieved_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (account_id, game_type)
        DO UPDATE SET score = EXCLUDED.score, achieved_at = EXCLUDED.achieved_at
        WHERE high_scores.score < EXCLUDED.score
    `, accountID, string(game), score, at)
	return r.HandleError("record_score", "high_score", err)
}

func (r *highScoreRepository) Get(ctx context.Context, accountID int64, game models.GameType) (*models.HighScore, error) {
	hs := new(models.HighScore)
	err := r.GetDB().NewSelect().
		Model(hs).
		Where("account_id = ?", accountID).
		Where("game_type = ?", game).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "high_score", ID: accountID}
		}
		return nil, r.HandleErrorWithID("get", "high_score", accountID, err)
	}
	return hs, nil
}
