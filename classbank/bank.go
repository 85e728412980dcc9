package classbank

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy/bulk"
	"github.com/teachertools/classbank/classbank/economy/insurance"
	"github.com/teachertools/classbank/classbank/economy/ledger"
	"github.com/teachertools/classbank/classbank/economy/loans"
	"github.com/teachertools/classbank/classbank/economy/rewards"
	"github.com/teachertools/classbank/classbank/economy/settings"
)

func New(cfg Config, version string, commit string) *Bank {
	return &Bank{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

// Bank wires the store, the ledger and the engines together for the daemon.
type Bank struct {
	Cfg     Config
	Version string
	Commit  string
	DB      *database.DB

	AccountRepository repositories.AccountRepository
	LoanRepository    repositories.LoanRepository

	Ledger        *ledger.Ledger
	Settings      *settings.Service
	Rewards       *rewards.Engine
	Loans         *loans.Engine
	LoanScheduler *loans.Scheduler
	Bulk          *bulk.Processor
	Disasters     *bulk.DisasterEngine
	Insurance     *insurance.Service
}

// Setup builds every repository and engine on top of an open DB connection.
func (b *Bank) Setup() error {
	if b.DB == nil {
		return fmt.Errorf("database not connected")
	}
	bunDB := b.DB.BunDB()

	b.AccountRepository = repositories.NewAccountRepository(bunDB)
	b.LoanRepository = repositories.NewLoanRepository(bunDB)
	ledgerRepo := repositories.NewLedgerRepository(bunDB)
	sessionRepo := repositories.NewGameSessionRepository(bunDB)
	playRepo := repositories.NewDailyPlayRepository(bunDB)
	scoreRepo := repositories.NewHighScoreRepository(bunDB)
	insuranceRepo := repositories.NewInsuranceRepository(bunDB)
	disasterRepo := repositories.NewDisasterRepository(bunDB)
	settingRepo := repositories.NewSettingRepository(bunDB)

	b.Ledger = ledger.New(ledgerRepo)
	b.Settings = settings.NewService(settingRepo)

	resetHour := b.Cfg.Bank.ResetHour
	if resetHour == 0 {
		resetHour = config.DefaultResetHour
	}
	loc := time.UTC
	if b.Cfg.Bank.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(b.Cfg.Bank.Timezone)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", b.Cfg.Bank.Timezone, err)
		}
	}

	b.Rewards = rewards.NewEngine(sessionRepo, playRepo, scoreRepo, b.Ledger, b.Settings, resetHour, loc)
	b.Loans = loans.NewEngine(b.LoanRepository, b.AccountRepository, b.Ledger, b.Settings)
	b.LoanScheduler = loans.NewScheduler(b.Loans)
	b.Bulk = bulk.NewProcessor(b.AccountRepository, b.Ledger)
	b.Disasters = bulk.NewDisasterEngine(disasterRepo, b.AccountRepository, b.Ledger)

	rates, err := parseInsuranceRates(b.Cfg.Bank.InsuranceRates)
	if err != nil {
		return fmt.Errorf("insurance rates: %w", err)
	}
	b.Insurance = insurance.NewService(insuranceRepo, b.AccountRepository, b.Ledger, rates)

	slog.Info("ClassBank engines initialized",
		slog.String("type", "sys"),
		slog.Int("reset_hour", resetHour),
		slog.String("timezone", loc.String()),
		slog.Int("insurance_types", len(rates)))
	return nil
}

func parseInsuranceRates(raw map[string]string) (map[models.InsuranceType]decimal.Decimal, error) {
	rates := make(map[models.InsuranceType]decimal.Decimal, len(raw))
	for name, value := range raw {
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("rate for %q: %w", name, err)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("rate for %q is negative", name)
		}
		rates[models.InsuranceType(name)] = rate
	}
	return rates, nil
}
