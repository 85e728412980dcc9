// Package economytest provides an in-memory store implementing the repository
// interfaces, so the engine packages test against real repository semantics
// without a database. Mutations hold one mutex, which matches the
// serializable behavior the SQL implementations get from row locks and
// conditional updates.
package economytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/teachertools/classbank/classbank/database/repositories"
	"github.com/teachertools/classbank/classbank/economy"
)

// Store is the shared backing state. The typed repository views returned by
// the accessor methods all mutate the same store, like repositories sharing
// one database.
type Store struct {
	mu sync.Mutex

	accounts     map[int64]*models.Account
	transactions []*models.Transaction
	loans        map[int64]*models.Loan
	sessions     map[string]*models.GameSession
	counters     map[string]int
	scores       map[string]*models.HighScore
	policies     []*models.InsurancePolicy
	disasters    map[int64]*models.Disaster
	events       []*models.DisasterEvent
	settings     map[string]*models.Setting

	nextAccountID  int64
	nextTxnID      int64
	nextLoanID     int64
	nextDisasterID int64
	nextEventID    int64
	nextPolicyID   int64
}

func NewStore() *Store {
	return &Store{
		accounts:  make(map[int64]*models.Account),
		loans:     make(map[int64]*models.Loan),
		sessions:  make(map[string]*models.GameSession),
		counters:  make(map[string]int),
		scores:    make(map[string]*models.HighScore),
		disasters: make(map[int64]*models.Disaster),
		settings:  make(map[string]*models.Setting),
	}
}

// AddAccount seeds an account and returns its id.
func (s *Store) AddAccount(ownerID, className string, balance, salary decimal.Decimal) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccountID++
	s.accounts[s.nextAccountID] = &models.Account{
		ID:        s.nextAccountID,
		OwnerID:   ownerID,
		OwnerName: ownerID,
		ClassName: className,
		Balance:   balance,
		Salary:    salary,
	}
	return s.nextAccountID
}

// Balance reads an account balance directly.
func (s *Store) Balance(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return a.Balance
	}
	return decimal.Zero
}

// SetSetting seeds or overwrites a setting, bumping its version.
func (s *Store) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertSettingLocked(key, value)
}

func (s *Store) upsertSettingLocked(key, value string) {
	if existing, ok := s.settings[key]; ok {
		existing.Value = value
		existing.Version++
		existing.UpdatedAt = time.Now()
		return
	}
	s.settings[key] = &models.Setting{Key: key, Value: value, Version: 1, UpdatedAt: time.Now()}
}

// TransactionCount reports how many ledger rows exist.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *Store) Accounts() repositories.AccountRepository     { return (*accountRepo)(wrap(s)) }
func (s *Store) Ledger() repositories.LedgerRepository        { return (*ledgerRepo)(wrap(s)) }
func (s *Store) Loans() repositories.LoanRepository           { return (*loanRepo)(wrap(s)) }
func (s *Store) Sessions() repositories.GameSessionRepository { return (*sessionRepo)(wrap(s)) }
func (s *Store) Plays() repositories.DailyPlayRepository      { return (*playRepo)(wrap(s)) }
func (s *Store) Scores() repositories.HighScoreRepository     { return (*scoreRepo)(wrap(s)) }
func (s *Store) Insurance() repositories.InsuranceRepository  { return (*insuranceRepo)(wrap(s)) }
func (s *Store) Disasters() repositories.DisasterRepository   { return (*disasterRepo)(wrap(s)) }
func (s *Store) Settings() repositories.SettingRepository     { return (*settingRepo)(wrap(s)) }

type view struct{ s *Store }

func wrap(s *Store) *view { return &view{s: s} }

// --- accounts ---

type accountRepo view

func (r *accountRepo) Create(_ context.Context, account *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.OwnerID == account.OwnerID {
			return &repositories.ConflictError{Entity: "account", Field: "owner_id", Value: account.OwnerID}
		}
	}
	r.s.nextAccountID++
	account.ID = r.s.nextAccountID
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.s.accounts[account.ID] = account
	return nil
}

func (r *accountRepo) GetByID(_ context.Context, id int64) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "account", ID: id}
	}
	copied := *account
	return &copied, nil
}

func (r *accountRepo) GetByOwnerID(_ context.Context, ownerID string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.OwnerID == ownerID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, &repositories.NotFoundError{Entity: "account", ID: ownerID}
}

func (r *accountRepo) ListByClass(_ context.Context, className string) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Account
	for _, a := range r.s.accounts {
		if a.ClassName == className && !a.Orphaned {
			copied := *a
			out = append(out, &copied)
		}
	}
	sortAccounts(out)
	return out, nil
}

func (r *accountRepo) ListAll(_ context.Context) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Account
	for _, a := range r.s.accounts {
		if !a.Orphaned {
			copied := *a
			out = append(out, &copied)
		}
	}
	sortAccounts(out)
	return out, nil
}

func (r *accountRepo) ListClassNames(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]bool)
	var names []string
	for _, a := range r.s.accounts {
		if a.ClassName != "" && !seen[a.ClassName] {
			seen[a.ClassName] = true
			names = append(names, a.ClassName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *accountRepo) UpdateSalary(_ context.Context, id int64, salary decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return &repositories.NotFoundError{Entity: "account", ID: id}
	}
	account.Salary = salary
	account.UpdatedAt = time.Now()
	return nil
}

func (r *accountRepo) MarkOrphaned(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return &repositories.NotFoundError{Entity: "account", ID: id}
	}
	account.Orphaned = true
	account.UpdatedAt = time.Now()
	return nil
}

func sortAccounts(accounts []*models.Account) {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
}

// --- ledger ---

type ledgerRepo view

func (r *ledgerRepo) Transfer(_ context.Context, fromID, toID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	from, ok := r.s.accounts[fromID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "account", ID: fromID}
	}
	to, ok := r.s.accounts[toID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "account", ID: toID}
	}
	if from.Balance.LessThan(amount) {
		return nil, &economy.InsufficientFundsError{AccountID: fromID, Balance: from.Balance, Amount: amount}
	}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	return r.appendLocked(&fromID, &toID, amount, typ, desc), nil
}

func (r *ledgerRepo) Credit(_ context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[accountID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "account", ID: accountID}
	}
	account.Balance = account.Balance.Add(amount)
	return r.appendLocked(nil, &accountID, amount, typ, desc), nil
}

func (r *ledgerRepo) Debit(_ context.Context, accountID int64, amount decimal.Decimal, typ models.TransactionType, desc string, allowOverdraw bool) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[accountID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "account", ID: accountID}
	}
	if !allowOverdraw && account.Balance.LessThan(amount) {
		return nil, &economy.InsufficientFundsError{AccountID: accountID, Balance: account.Balance, Amount: amount}
	}
	account.Balance = account.Balance.Sub(amount)
	return r.appendLocked(&accountID, nil, amount, typ, desc), nil
}

func (r *ledgerRepo) ApplyBatch(_ context.Context, entries []repositories.LedgerEntry, typ models.TransactionType, desc string, opts repositories.BatchOptions) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Stage everything first so a failed entry commits nothing. Clamping
	// reads the staged balance, mirroring the row-locked read of the SQL
	// implementation.
	staged := make(map[int64]decimal.Decimal, len(entries))
	deltas := make([]decimal.Decimal, len(entries))
	applied := 0
	for i, entry := range entries {
		account, ok := r.s.accounts[entry.AccountID]
		if !ok {
			return 0, &repositories.NotFoundError{Entity: "account", ID: entry.AccountID}
		}
		applied++
		current, seen := staged[entry.AccountID]
		if !seen {
			current = account.Balance
		}
		delta := entry.Delta
		if opts.ClampDebits && delta.IsNegative() && current.LessThan(delta.Abs()) {
			delta = current.Neg()
		}
		deltas[i] = delta
		if delta.IsZero() {
			continue
		}
		next := current.Add(delta)
		if !opts.AllowOverdraw && next.IsNegative() {
			return 0, &economy.InsufficientFundsError{AccountID: entry.AccountID, Balance: current, Amount: delta.Abs()}
		}
		staged[entry.AccountID] = next
	}

	for id, balance := range staged {
		r.s.accounts[id].Balance = balance
		r.s.accounts[id].UpdatedAt = time.Now()
	}
	for i, entry := range entries {
		if deltas[i].IsZero() {
			continue
		}
		id := entry.AccountID
		if deltas[i].IsNegative() {
			r.appendLocked(&id, nil, deltas[i].Abs(), typ, desc)
		} else {
			r.appendLocked(nil, &id, deltas[i], typ, desc)
		}
	}
	return applied, nil
}

func (r *ledgerRepo) History(_ context.Context, accountID int64) ([]*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Transaction
	for _, txn := range r.s.transactions {
		if (txn.FromAccountID != nil && *txn.FromAccountID == accountID) ||
			(txn.ToAccountID != nil && *txn.ToAccountID == accountID) {
			copied := *txn
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *ledgerRepo) appendLocked(from, to *int64, amount decimal.Decimal, typ models.TransactionType, desc string) *models.Transaction {
	r.s.nextTxnID++
	txn := &models.Transaction{
		ID:            r.s.nextTxnID,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		Type:          typ,
		Description:   desc,
		CreatedAt:     time.Now(),
	}
	r.s.transactions = append(r.s.transactions, txn)
	return txn
}

// --- loans ---

type loanRepo view

func (r *loanRepo) Create(_ context.Context, loan *models.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextLoanID++
	loan.ID = r.s.nextLoanID
	loan.CreatedAt = time.Now()
	loan.UpdatedAt = loan.CreatedAt
	copied := *loan
	r.s.loans[loan.ID] = &copied
	return nil
}

func (r *loanRepo) GetByID(_ context.Context, id int64) (*models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	loan, ok := r.s.loans[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "loan", ID: id}
	}
	copied := *loan
	return &copied, nil
}

func (r *loanRepo) Update(_ context.Context, loan *models.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.loans[loan.ID]; !ok {
		return &repositories.NotFoundError{Entity: "loan", ID: loan.ID}
	}
	loan.UpdatedAt = time.Now()
	copied := *loan
	r.s.loans[loan.ID] = &copied
	return nil
}

func (r *loanRepo) ClaimPeriod(_ context.Context, id int64, periodKey string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	loan, ok := r.s.loans[id]
	if !ok || loan.Status != models.LoanActive || loan.LastPaymentPeriod == periodKey {
		return false, nil
	}
	loan.LastPaymentPeriod = periodKey
	loan.UpdatedAt = time.Now()
	return true, nil
}

func (r *loanRepo) ListByAccount(_ context.Context, accountID int64) ([]*models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Loan
	for _, loan := range r.s.loans {
		if loan.AccountID == accountID {
			copied := *loan
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *loanRepo) ListDue(_ context.Context, periodKey string) ([]*models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Loan
	for _, loan := range r.s.loans {
		if loan.Status == models.LoanActive && loan.LastPaymentPeriod != periodKey {
			copied := *loan
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *loanRepo) ListSkipped(_ context.Context) ([]*models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Loan
	for _, loan := range r.s.loans {
		if loan.Status == models.LoanActive && loan.SkippedPayments > 0 {
			copied := *loan
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SkippedPayments > out[j].SkippedPayments })
	return out, nil
}

// --- game sessions ---

type sessionRepo view

func (r *sessionRepo) Create(_ context.Context, session *models.GameSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[session.ID]; ok {
		return &repositories.ConflictError{Entity: "game_session", Field: "id", Value: session.ID}
	}
	session.StartedAt = time.Now()
	copied := *session
	r.s.sessions[session.ID] = &copied
	return nil
}

func (r *sessionRepo) GetByID(_ context.Context, id string) (*models.GameSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "game_session", ID: id}
	}
	copied := *session
	return &copied, nil
}

func (r *sessionRepo) SettleOnce(_ context.Context, id string, result json.RawMessage, earnings decimal.Decimal, settledAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return false, &repositories.NotFoundError{Entity: "game_session", ID: id}
	}
	if session.Status != models.SessionInProgress {
		return false, nil
	}
	session.Status = models.SessionSettled
	session.Result = result
	session.Earnings = earnings
	session.SettledAt = &settledAt
	return true, nil
}

func (r *sessionRepo) Reopen(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return &repositories.NotFoundError{Entity: "game_session", ID: id}
	}
	if session.Status != models.SessionSettled {
		return nil
	}
	session.Status = models.SessionInProgress
	session.Result = nil
	session.Earnings = decimal.Zero
	session.SettledAt = nil
	return nil
}

// --- daily plays ---

type playRepo view

func playKey(accountID int64, game models.GameType, gameDay int64) string {
	return fmt.Sprintf("%d|%s|%d", accountID, game, gameDay)
}

func (r *playRepo) IncrementIfBelow(_ context.Context, accountID int64, game models.GameType, gameDay int64, limit int) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := playKey(accountID, game, gameDay)
	count := r.s.counters[key]
	if count >= limit {
		return count, false, nil
	}
	count++
	r.s.counters[key] = count
	return count, true, nil
}

func (r *playRepo) Count(_ context.Context, accountID int64, game models.GameType, gameDay int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.counters[playKey(accountID, game, gameDay)], nil
}

// --- high scores ---

type scoreRepo view

func scoreKey(accountID int64, game models.GameType) string {
	return fmt.Sprintf("%d|%s", accountID, game)
}

func (r *scoreRepo) RecordScore(_ context.Context, accountID int64, game models.GameType, score int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := scoreKey(accountID, game)
	existing, ok := r.s.scores[key]
	if ok && existing.Score >= score {
		return nil
	}
	r.s.scores[key] = &models.HighScore{AccountID: accountID, GameType: game, Score: score, AchievedAt: at}
	return nil
}

func (r *scoreRepo) Get(_ context.Context, accountID int64, game models.GameType) (*models.HighScore, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	hs, ok := r.s.scores[scoreKey(accountID, game)]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "high_score", ID: accountID}
	}
	copied := *hs
	return &copied, nil
}

// --- insurance ---

type insuranceRepo view

func (r *insuranceRepo) CreateAll(_ context.Context, policies []*models.InsurancePolicy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range policies {
		r.s.nextPolicyID++
		p.ID = r.s.nextPolicyID
		p.CreatedAt = time.Now()
		copied := *p
		r.s.policies = append(r.s.policies, &copied)
	}
	return nil
}

func (r *insuranceRepo) ListByAccount(_ context.Context, accountID int64) ([]*models.InsurancePolicy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.InsurancePolicy
	for _, p := range r.s.policies {
		if p.AccountID == accountID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

// --- disasters ---

type disasterRepo view

func (r *disasterRepo) Create(_ context.Context, disaster *models.Disaster) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextDisasterID++
	disaster.ID = r.s.nextDisasterID
	disaster.CreatedAt = time.Now()
	copied := *disaster
	r.s.disasters[disaster.ID] = &copied
	return nil
}

func (r *disasterRepo) GetByID(_ context.Context, id int64) (*models.Disaster, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	disaster, ok := r.s.disasters[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "disaster", ID: id}
	}
	copied := *disaster
	return &copied, nil
}

func (r *disasterRepo) List(_ context.Context) ([]*models.Disaster, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Disaster
	for _, d := range r.s.disasters {
		copied := *d
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *disasterRepo) CreateEvent(_ context.Context, event *models.DisasterEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextEventID++
	event.ID = r.s.nextEventID
	if event.TriggeredAt.IsZero() {
		event.TriggeredAt = time.Now()
	}
	copied := *event
	r.s.events = append(r.s.events, &copied)
	return nil
}

func (r *disasterRepo) ListEvents(_ context.Context, disasterID int64) ([]*models.DisasterEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.DisasterEvent
	for _, e := range r.s.events {
		if e.DisasterID == disasterID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out, nil
}

// --- settings ---

type settingRepo view

func (r *settingRepo) GetAll(_ context.Context) ([]*models.Setting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Setting
	for _, s := range r.s.settings {
		copied := *s
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *settingRepo) Get(_ context.Context, key string) (*models.Setting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	setting, ok := r.s.settings[key]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "setting", ID: key}
	}
	copied := *setting
	return &copied, nil
}

func (r *settingRepo) Set(_ context.Context, key, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.upsertSettingLocked(key, value)
	return nil
}
