package bulk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/economy/economytest"
	"github.com/teachertools/classbank/classbank/economy/ledger"
)

func newDisasterEngine(store *economytest.Store) *DisasterEngine {
	return NewDisasterEngine(store.Disasters(), store.Accounts(), ledger.New(store.Ledger()))
}

func TestTriggerBalancePercentage(t *testing.T) {
	store := economytest.NewStore()
	a := store.AddAccount("alice", "3A", dec("200"), decimal.Zero)
	b := store.AddAccount("bob", "3A", dec("50"), decimal.Zero)
	e := newDisasterEngine(store)
	ctx := context.Background()

	disaster := &models.Disaster{
		Name:        "Flood",
		EffectType:  models.EffectBalancePercentage,
		EffectValue: dec("-10"),
		TargetClass: "3A",
	}
	require.NoError(t, e.Define(ctx, disaster))

	event, err := e.Trigger(ctx, disaster.ID, "spring flood drill")
	require.NoError(t, err)
	require.Equal(t, 2, event.AffectedStudents)
	require.True(t, event.TotalImpact.Equal(dec("-25")), "total impact = %s", event.TotalImpact)
	require.True(t, store.Balance(a).Equal(dec("180")))
	require.True(t, store.Balance(b).Equal(dec("45")))
}

func TestTriggerFixedCanOverdraw(t *testing.T) {
	store := economytest.NewStore()
	a := store.AddAccount("alice", "3A", dec("10"), decimal.Zero)
	e := newDisasterEngine(store)
	ctx := context.Background()

	disaster := &models.Disaster{
		Name:        "Earthquake",
		EffectType:  models.EffectBalanceFixed,
		EffectValue: dec("-30"),
	}
	require.NoError(t, e.Define(ctx, disaster))

	event, err := e.Trigger(ctx, disaster.ID, "")
	require.NoError(t, err)
	require.Equal(t, 1, event.AffectedStudents)
	require.True(t, store.Balance(a).Equal(dec("-20")), "disasters may overdraw")
}

func TestTriggerSalaryPercentage(t *testing.T) {
	store := economytest.NewStore()
	a := store.AddAccount("alice", "3A", dec("100"), dec("80"))
	b := store.AddAccount("bob", "3A", dec("100"), decimal.Zero)
	e := newDisasterEngine(store)
	ctx := context.Background()

	disaster := &models.Disaster{
		Name:        "Tax audit",
		EffectType:  models.EffectSalaryPercentage,
		EffectValue: dec("-25"),
	}
	require.NoError(t, e.Define(ctx, disaster))

	event, err := e.Trigger(ctx, disaster.ID, "")
	require.NoError(t, err)
	require.True(t, store.Balance(a).Equal(dec("80")), "25%% of salary 80 removed")
	require.True(t, store.Balance(b).Equal(dec("100")), "no salary, no effect")
	// Zero-salary account is still in scope, still counted
	require.Equal(t, 2, event.AffectedStudents)
	require.True(t, event.TotalImpact.Equal(dec("-20")))
}

func TestTriggerPositiveWindfall(t *testing.T) {
	store := economytest.NewStore()
	a := store.AddAccount("alice", "3A", dec("100"), decimal.Zero)
	e := newDisasterEngine(store)
	ctx := context.Background()

	disaster := &models.Disaster{
		Name:        "Grant",
		EffectType:  models.EffectBalanceFixed,
		EffectValue: dec("15"),
	}
	require.NoError(t, e.Define(ctx, disaster))

	event, err := e.Trigger(ctx, disaster.ID, "")
	require.NoError(t, err)
	require.True(t, event.TotalImpact.Equal(dec("15")))
	require.True(t, store.Balance(a).Equal(dec("115")))
}

func TestTriggerRecordsEvent(t *testing.T) {
	store := economytest.NewStore()
	store.AddAccount("alice", "3A", dec("100"), decimal.Zero)
	e := newDisasterEngine(store)
	ctx := context.Background()

	disaster := &models.Disaster{
		Name:        "Flood",
		EffectType:  models.EffectBalanceFixed,
		EffectValue: dec("-5"),
	}
	require.NoError(t, e.Define(ctx, disaster))

	_, err := e.Trigger(ctx, disaster.ID, "first")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = e.Trigger(ctx, disaster.ID, "second")
	require.NoError(t, err)

	events, err := e.Events(ctx, disaster.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "second", events[0].Notes, "newest first")
}

func TestDefineValidation(t *testing.T) {
	store := economytest.NewStore()
	e := newDisasterEngine(store)
	ctx := context.Background()

	err := e.Define(ctx, &models.Disaster{Name: "Bad", EffectType: "typo", EffectValue: dec("1")})
	require.Error(t, err)

	err = e.Define(ctx, &models.Disaster{Name: "Nothing", EffectType: models.EffectBalanceFixed, EffectValue: decimal.Zero})
	require.Error(t, err)
}
