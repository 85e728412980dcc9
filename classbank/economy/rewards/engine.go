// Package rewards settles skill-game sessions into ledger credits. Problems
// and answers are generated on the server and settlement rescores the raw
// submitted inputs; a client-claimed score is never trusted.
package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy"
	"github.com/teachertools/classbank/classbank/economy/ledger"
	"github.com/teachertools/classbank/classbank/economy/settings"
)

// ErrGameDisabled is returned when the game's enable flag is off in the
// settings snapshot read at session start.
var ErrGameDisabled = errors.New("game type is disabled")

var difficultyMultipliers = map[models.GameDifficulty]decimal.Decimal{
	models.DifficultyEasy:   decimal.RequireFromString("1.0"),
	models.DifficultyMedium: decimal.RequireFromString("1.5"),
	models.DifficultyHard:   decimal.RequireFromString("2.0"),
}

// StartResult is what the API layer relays back after a session start.
type StartResult struct {
	Session        *models.GameSession
	RemainingPlays int
}

// SettleResult carries the settled outcome. On a repeated settlement the
// engine returns the original result alongside AlreadySettledError.
type SettleResult struct {
	SessionID      string
	Earnings       decimal.Decimal
	CorrectUnits   int
	DoublesDay     bool
	RemainingPlays int
}

type Engine struct {
	sessions repositories.GameSessionRepository
	plays    repositories.DailyPlayRepository
	scores   repositories.HighScoreRepository
	ledger   *ledger.Ledger
	settings *settings.Service

	resetHour int
	loc       *time.Location
	now       func() time.Time
}

func NewEngine(
	sessions repositories.GameSessionRepository,
	plays repositories.DailyPlayRepository,
	scores repositories.HighScoreRepository,
	led *ledger.Ledger,
	set *settings.Service,
	resetHour int,
	loc *time.Location,
) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		sessions:  sessions,
		plays:     plays,
		scores:    scores,
		ledger:    led,
		settings:  set,
		resetHour: resetHour,
		loc:       loc,
		now:       time.Now,
	}
}

// WithClock overrides the engine clock. Used by tests to pin the game day.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// StartSession checks the enable flag and the daily window, then reserves a
// play and creates the session with its server-generated challenge. The
// counter bump is a single conditional update, so N concurrent starts with K
// slots left yield exactly K sessions.
func (e *Engine) StartSession(ctx context.Context, accountID int64, gameType models.GameType, difficulty models.GameDifficulty) (*StartResult, error) {
	if _, ok := difficultyMultipliers[difficulty]; !ok {
		return nil, fmt.Errorf("unknown difficulty %q", difficulty)
	}

	snap, err := e.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if !snap.GameEnabled(string(gameType)) {
		return nil, ErrGameDisabled
	}

	limit := snap.Int(config.SettingDailyPlayLimit, config.DefaultDailyPlayLimit)
	if limit <= 0 {
		return nil, &economy.DailyLimitError{AccountID: accountID, GameType: string(gameType), Limit: limit}
	}

	gameDay := GameDay(e.now(), e.resetHour, e.loc)
	count, ok, err := e.plays.IncrementIfBelow(ctx, accountID, gameType, gameDay, limit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &economy.DailyLimitError{AccountID: accountID, GameType: string(gameType), Limit: limit}
	}

	challenge, err := e.generateChallenge(gameType, difficulty)
	if err != nil {
		return nil, err
	}

	session := &models.GameSession{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		GameType:   gameType,
		Difficulty: difficulty,
		Status:     models.SessionInProgress,
		Challenge:  challenge,
	}
	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("Game session started",
		slog.String("type", "op"),
		slog.String("session_id", session.ID),
		slog.Int64("account_id", accountID),
		slog.String("game", string(gameType)),
		slog.Int("plays_used", count))

	return &StartResult{Session: session, RemainingPlays: limit - count}, nil
}

func (e *Engine) generateChallenge(gameType models.GameType, difficulty models.GameDifficulty) (json.RawMessage, error) {
	switch gameType {
	case models.GameMath:
		return json.Marshal(GenerateMathChallenge(difficulty))
	case models.GameWordle:
		return json.Marshal(GenerateWordChallenge())
	default:
		return nil, fmt.Errorf("unknown game type %q", gameType)
	}
}

// SettleSession settles a session exactly once. The in_progress -> settled
// flip is the idempotency gate: the credit only happens on the call that won
// the flip, so a repeated or concurrent settle can never pay twice.
func (e *Engine) SettleSession(ctx context.Context, sessionID string, rawInputs json.RawMessage) (*SettleResult, error) {
	session, err := e.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionSettled {
		result, err := e.settledResult(ctx, session)
		return result, err
	}

	correctUnits, resultPayload, err := e.score(session, rawInputs)
	if err != nil {
		return nil, err
	}

	snap, err := e.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	doubles := snap.Bool(config.SettingDoublesDay)
	baseRate := snap.Decimal(config.SettingBaseRate, decimal.NewFromInt(config.DefaultBaseRate))

	earnings := decimal.NewFromInt(int64(correctUnits)).
		Mul(baseRate).
		Mul(difficultyMultipliers[session.Difficulty])
	if doubles {
		earnings = earnings.Mul(decimal.NewFromInt(2))
	}
	earnings = earnings.Round(2)

	settledAt := e.now()
	won, err := e.sessions.SettleOnce(ctx, sessionID, resultPayload, earnings, settledAt)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another settle raced us past the gate; surface its outcome
		settled, gerr := e.sessions.GetByID(ctx, sessionID)
		if gerr != nil {
			return nil, gerr
		}
		result, rerr := e.settledResult(ctx, settled)
		return result, rerr
	}

	if earnings.IsPositive() {
		desc := fmt.Sprintf("%s reward: %d correct (%s)", session.GameType, correctUnits, session.Difficulty)
		if doubles {
			// The applied multiplier is part of the audit record; flipping
			// the toggle later must not reinterpret this reward
			desc += " x2 doubles day"
		}
		if _, err := e.ledger.Credit(ctx, session.AccountID, earnings, models.TransactionGameReward, desc); err != nil {
			// Hand the flip back so a retry can settle again; a session left
			// settled here would answer every retry with AlreadySettled and
			// the reward would never be paid
			if rerr := e.sessions.Reopen(ctx, sessionID); rerr != nil {
				slog.Error("Session reopen after failed credit failed",
					slog.String("type", "ledger"),
					slog.String("session_id", sessionID),
					slog.Any("error", rerr))
			}
			slog.Error("Settled session credit failed",
				slog.String("type", "ledger"),
				slog.String("session_id", sessionID),
				slog.Any("error", err))
			return nil, err
		}
	}

	if err := e.scores.RecordScore(ctx, session.AccountID, session.GameType, correctUnits, settledAt); err != nil {
		slog.Warn("High score update failed",
			slog.String("type", "db"),
			slog.String("session_id", sessionID),
			slog.Any("error", err))
	}

	remaining, err := e.remainingPlays(ctx, session.AccountID, session.GameType, snap.Int(config.SettingDailyPlayLimit, config.DefaultDailyPlayLimit))
	if err != nil {
		return nil, err
	}

	slog.Info("Game session settled",
		slog.String("type", "op"),
		slog.String("session_id", sessionID),
		slog.Int("correct", correctUnits),
		slog.String("earnings", earnings.String()),
		slog.Bool("doubles_day", doubles))

	return &SettleResult{
		SessionID:      sessionID,
		Earnings:       earnings,
		CorrectUnits:   correctUnits,
		DoublesDay:     doubles,
		RemainingPlays: remaining,
	}, nil
}

// RemainingPlays reports how many plays the account has left today.
func (e *Engine) RemainingPlays(ctx context.Context, accountID int64, gameType models.GameType) (int, error) {
	snap, err := e.settings.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return e.remainingPlays(ctx, accountID, gameType, snap.Int(config.SettingDailyPlayLimit, config.DefaultDailyPlayLimit))
}

func (e *Engine) remainingPlays(ctx context.Context, accountID int64, gameType models.GameType, limit int) (int, error) {
	count, err := e.plays.Count(ctx, accountID, gameType, GameDay(e.now(), e.resetHour, e.loc))
	if err != nil {
		return 0, err
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (e *Engine) score(session *models.GameSession, rawInputs json.RawMessage) (int, json.RawMessage, error) {
	switch session.GameType {
	case models.GameMath:
		var challenge MathChallenge
		if err := json.Unmarshal(session.Challenge, &challenge); err != nil {
			return 0, nil, fmt.Errorf("corrupt math challenge: %w", err)
		}
		var submission MathSubmission
		if err := json.Unmarshal(rawInputs, &submission); err != nil {
			return 0, nil, fmt.Errorf("invalid math submission: %w", err)
		}
		correct := ScoreMath(challenge, submission)
		payload, err := json.Marshal(map[string]any{"answers": submission.Answers, "correct": correct})
		return correct, payload, err

	case models.GameWordle:
		var challenge WordChallenge
		if err := json.Unmarshal(session.Challenge, &challenge); err != nil {
			return 0, nil, fmt.Errorf("corrupt word challenge: %w", err)
		}
		var submission WordSubmission
		if err := json.Unmarshal(rawInputs, &submission); err != nil {
			return 0, nil, fmt.Errorf("invalid word submission: %w", err)
		}
		outcome, units, err := ScoreWord(challenge, submission)
		if err != nil {
			return 0, nil, err
		}
		payload, merr := json.Marshal(outcome)
		return units, payload, merr

	default:
		return 0, nil, fmt.Errorf("unknown game type %q", session.GameType)
	}
}

func (e *Engine) settledResult(ctx context.Context, session *models.GameSession) (*SettleResult, error) {
	snap, err := e.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	remaining, err := e.remainingPlays(ctx, session.AccountID, session.GameType, snap.Int(config.SettingDailyPlayLimit, config.DefaultDailyPlayLimit))
	if err != nil {
		return nil, err
	}

	return &SettleResult{
			SessionID:      session.ID,
			Earnings:       session.Earnings,
			RemainingPlays: remaining,
		}, &economy.AlreadySettledError{
			SessionID: session.ID,
			Earnings:  session.Earnings,
		}
}
