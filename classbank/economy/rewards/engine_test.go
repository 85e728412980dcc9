package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy"
	"github.com/teachertools/classbank/classbank/economy/economytest"
	"github.com/teachertools/classbank/classbank/economy/ledger"
	"github.com/teachertools/classbank/classbank/economy/settings"
)

func newTestEngine(t *testing.T, store *economytest.Store) *Engine {
	t.Helper()
	led := ledger.New(store.Ledger())
	set := settings.NewService(store.Settings())
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return NewEngine(store.Sessions(), store.Plays(), store.Scores(), led, set, config.DefaultResetHour, time.UTC).
		WithClock(func() time.Time { return fixed })
}

func solveMath(t *testing.T, session *models.GameSession) json.RawMessage {
	t.Helper()
	var challenge MathChallenge
	require.NoError(t, json.Unmarshal(session.Challenge, &challenge))

	answers := make([]int, len(challenge.Problems))
	for i, p := range challenge.Problems {
		answers[i] = p.Answer
	}
	raw, err := json.Marshal(MathSubmission{Answers: answers})
	require.NoError(t, err)
	return raw
}

func TestStartSessionDailyLimitConcurrent(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.StartSession(ctx, account, models.GameMath, models.DifficultyEasy)
		}(i)
	}
	wg.Wait()

	started, limited := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			started++
		case economy.IsDailyLimit(err):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, config.DefaultDailyPlayLimit, started, "exactly the limit may start")
	require.Equal(t, attempts-config.DefaultDailyPlayLimit, limited)
}

func TestStartSessionDisabledGame(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	store.SetSetting(config.SettingGameEnabled+"math", "false")
	engine := newTestEngine(t, store)

	_, err := engine.StartSession(context.Background(), account, models.GameMath, models.DifficultyEasy)
	require.ErrorIs(t, err, ErrGameDisabled)

	// The other game is untouched by the math toggle
	_, err = engine.StartSession(context.Background(), account, models.GameWordle, models.DifficultyEasy)
	require.NoError(t, err)
}

func TestSettleSessionDoublesDay(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	store.SetSetting(config.SettingDoublesDay, "true")
	engine := newTestEngine(t, store)
	ctx := context.Background()

	start, err := engine.StartSession(ctx, account, models.GameMath, models.DifficultyEasy)
	require.NoError(t, err)

	result, err := engine.SettleSession(ctx, start.Session.ID, solveMath(t, start.Session))
	require.NoError(t, err)

	// 5 correct x base rate 1 x easy 1.0 x doubles 2
	require.True(t, result.Earnings.Equal(decimal.NewFromInt(10)), "earnings = %s", result.Earnings)
	require.Equal(t, config.MathProblemCount, result.CorrectUnits)
	require.True(t, result.DoublesDay)
	require.True(t, store.Balance(account).Equal(decimal.NewFromInt(10)))

	// The applied multiplier lands in the transaction description
	history, err := ledger.New(store.Ledger()).History(ctx, account)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Contains(t, history[0].Description, "x2 doubles day")
	require.Equal(t, models.TransactionGameReward, history[0].Type)
}

func TestSettleSessionIdempotent(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	start, err := engine.StartSession(ctx, account, models.GameMath, models.DifficultyEasy)
	require.NoError(t, err)

	inputs := solveMath(t, start.Session)
	first, err := engine.SettleSession(ctx, start.Session.ID, inputs)
	require.NoError(t, err)
	require.True(t, first.Earnings.Equal(decimal.NewFromInt(5)))

	second, err := engine.SettleSession(ctx, start.Session.ID, inputs)
	require.Error(t, err)
	require.True(t, economy.IsAlreadySettled(err))
	require.True(t, second.Earnings.Equal(first.Earnings), "repeat settle surfaces the original outcome")

	// Balance credited exactly once
	require.True(t, store.Balance(account).Equal(decimal.NewFromInt(5)))
}

type failingCreditLedger struct {
	repositories.LedgerRepository
	fail bool
}

func (f *failingCreditLedger) Credit(ctx context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error) {
	if f.fail {
		return nil, errors.New("credit unavailable")
	}
	return f.LedgerRepository.Credit(ctx, accountID, amount, typ, desc)
}

func TestSettleSessionCreditFailureReopens(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	flaky := &failingCreditLedger{LedgerRepository: store.Ledger(), fail: true}
	set := settings.NewService(store.Settings())
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(store.Sessions(), store.Plays(), store.Scores(), ledger.New(flaky), set, config.DefaultResetHour, time.UTC).
		WithClock(func() time.Time { return fixed })
	ctx := context.Background()

	start, err := engine.StartSession(ctx, account, models.GameMath, models.DifficultyEasy)
	require.NoError(t, err)
	inputs := solveMath(t, start.Session)

	// A failed payout must not leave the session settled, or every retry
	// would see AlreadySettled and the reward would never be paid
	_, err = engine.SettleSession(ctx, start.Session.ID, inputs)
	require.Error(t, err)
	require.False(t, economy.IsAlreadySettled(err))
	require.True(t, store.Balance(account).IsZero())

	session, err := store.Sessions().GetByID(ctx, start.Session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionInProgress, session.Status)

	flaky.fail = false
	result, err := engine.SettleSession(ctx, start.Session.ID, inputs)
	require.NoError(t, err)
	require.True(t, result.Earnings.Equal(decimal.NewFromInt(5)))
	require.True(t, store.Balance(account).Equal(decimal.NewFromInt(5)))
}

func TestSettleSessionDifficultyMultiplier(t *testing.T) {
	tests := []struct {
		difficulty models.GameDifficulty
		want       string
	}{
		{models.DifficultyEasy, "5"},
		{models.DifficultyMedium, "7.5"},
		{models.DifficultyHard, "10"},
	}

	for _, tt := range tests {
		t.Run(string(tt.difficulty), func(t *testing.T) {
			store := economytest.NewStore()
			account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
			engine := newTestEngine(t, store)
			ctx := context.Background()

			start, err := engine.StartSession(ctx, account, models.GameMath, tt.difficulty)
			require.NoError(t, err)

			result, err := engine.SettleSession(ctx, start.Session.ID, solveMath(t, start.Session))
			require.NoError(t, err)
			require.True(t, result.Earnings.Equal(decimal.RequireFromString(tt.want)),
				"earnings = %s, want %s", result.Earnings, tt.want)
		})
	}
}

func TestSettleSessionZeroEarnings(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	start, err := engine.StartSession(ctx, account, models.GameMath, models.DifficultyEasy)
	require.NoError(t, err)

	wrong, err := json.Marshal(MathSubmission{Answers: []int{-1, -1, -1, -1, -1}})
	require.NoError(t, err)

	result, err := engine.SettleSession(ctx, start.Session.ID, wrong)
	require.NoError(t, err)
	require.True(t, result.Earnings.IsZero())
	require.Zero(t, store.TransactionCount(), "a zero settlement writes no ledger row")
}

func TestSettleSessionRecordsHighScore(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	start, err := engine.StartSession(ctx, account, models.GameMath, models.DifficultyEasy)
	require.NoError(t, err)
	_, err = engine.SettleSession(ctx, start.Session.ID, solveMath(t, start.Session))
	require.NoError(t, err)

	hs, err := store.Scores().Get(ctx, account, models.GameMath)
	require.NoError(t, err)
	require.Equal(t, config.MathProblemCount, hs.Score)
}

func TestRemainingPlays(t *testing.T) {
	store := economytest.NewStore()
	account := store.AddAccount("alice", "3A", decimal.Zero, decimal.Zero)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	start, err := engine.StartSession(ctx, account, models.GameMath, models.DifficultyEasy)
	require.NoError(t, err)
	require.Equal(t, config.DefaultDailyPlayLimit-1, start.RemainingPlays)

	remaining, err := engine.RemainingPlays(ctx, account, models.GameMath)
	require.NoError(t, err)
	require.Equal(t, config.DefaultDailyPlayLimit-1, remaining)

	// The wordle counter is independent
	remaining, err = engine.RemainingPlays(ctx, account, models.GameWordle)
	require.NoError(t, err)
	require.Equal(t, config.DefaultDailyPlayLimit, remaining)
}
