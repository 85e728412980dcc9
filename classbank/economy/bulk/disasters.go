package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy/ledger"
)

var hundred = decimal.NewFromInt(100)

// DisasterEngine fires disaster templates against their target scope. Unlike
// ordinary bulk removals, disaster debits may overdraw: a flood does not stop
// at a zero balance.
type DisasterEngine struct {
	disasters repositories.DisasterRepository
	accounts  repositories.AccountRepository
	ledger    *ledger.Ledger
	now       func() time.Time
}

func NewDisasterEngine(
	disasters repositories.DisasterRepository,
	accounts repositories.AccountRepository,
	led *ledger.Ledger,
) *DisasterEngine {
	return &DisasterEngine{
		disasters: disasters,
		accounts:  accounts,
		ledger:    led,
		now:       time.Now,
	}
}

// Define stores a reusable disaster template.
func (e *DisasterEngine) Define(ctx context.Context, disaster *models.Disaster) error {
	switch disaster.EffectType {
	case models.EffectBalancePercentage, models.EffectBalanceFixed, models.EffectSalaryPercentage:
	default:
		return fmt.Errorf("unknown effect type %q", disaster.EffectType)
	}
	if disaster.EffectValue.IsZero() {
		return fmt.Errorf("effect value must be non-zero")
	}
	return e.disasters.Create(ctx, disaster)
}

// List returns the stored templates.
func (e *DisasterEngine) List(ctx context.Context) ([]*models.Disaster, error) {
	return e.disasters.List(ctx)
}

// Trigger fires a template once: computes each account's delta from the
// effect, applies them as one atomic batch, and records the immutable event.
// Percentage effects read the balance or salary as of the trigger.
func (e *DisasterEngine) Trigger(ctx context.Context, disasterID int64, notes string) (*models.DisasterEvent, error) {
	disaster, err := e.disasters.GetByID(ctx, disasterID)
	if err != nil {
		return nil, err
	}

	accounts, err := e.resolveTargets(ctx, disaster.TargetClass)
	if err != nil {
		return nil, err
	}

	entries := make([]repositories.LedgerEntry, 0, len(accounts))
	totalImpact := decimal.Zero
	for _, account := range accounts {
		delta := effectDelta(disaster, account)
		entries = append(entries, repositories.LedgerEntry{AccountID: account.ID, Delta: delta})
		totalImpact = totalImpact.Add(delta)
	}

	desc := fmt.Sprintf("disaster: %s", disaster.Name)
	affected, err := e.ledger.ApplyBatch(ctx, entries, models.TransactionDisasterAdjustment, desc, repositories.BatchOptions{AllowOverdraw: true})
	if err != nil {
		return nil, err
	}

	event := &models.DisasterEvent{
		DisasterID:       disaster.ID,
		AffectedStudents: affected,
		TotalImpact:      totalImpact,
		Notes:            notes,
		TriggeredAt:      e.now(),
	}
	if err := e.disasters.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	slog.Info("Disaster triggered",
		slog.String("type", "op"),
		slog.Int64("disaster_id", disaster.ID),
		slog.String("name", disaster.Name),
		slog.Int("affected", affected),
		slog.String("total_impact", totalImpact.String()))
	return event, nil
}

// Events returns the trigger history of one template, newest first.
func (e *DisasterEngine) Events(ctx context.Context, disasterID int64) ([]*models.DisasterEvent, error) {
	return e.disasters.ListEvents(ctx, disasterID)
}

func (e *DisasterEngine) resolveTargets(ctx context.Context, targetClass string) ([]*models.Account, error) {
	if targetClass == "" {
		return e.accounts.ListAll(ctx)
	}
	return e.accounts.ListByClass(ctx, targetClass)
}

// effectDelta computes one account's signed balance change. Percentage
// values are percent points: -10 drains a tenth.
func effectDelta(disaster *models.Disaster, account *models.Account) decimal.Decimal {
	switch disaster.EffectType {
	case models.EffectBalancePercentage:
		return account.Balance.Mul(disaster.EffectValue).DivRound(hundred, 2)
	case models.EffectSalaryPercentage:
		return account.Salary.Mul(disaster.EffectValue).DivRound(hundred, 2)
	default:
		return disaster.EffectValue.Round(2)
	}
}
