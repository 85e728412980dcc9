// Package economy defines the error taxonomy shared by the engine packages.
// Routine business conditions are typed errors the API layer can map to
// conflicts or soft blocks; only store unavailability propagates unchanged.
package economy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientFundsError is a local precondition failure: the debit would
// push the account below its floor. Not retryable.
type InsufficientFundsError struct {
	AccountID int64
	Balance   decimal.Decimal
	Amount    decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("account %d has %s, cannot cover %s", e.AccountID, e.Balance, e.Amount)
}

// DailyLimitError is a soft block: the user is out of plays for the current
// game day. Remaining is always 0 when this is returned.
type DailyLimitError struct {
	AccountID int64
	GameType  string
	Limit     int
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("account %d reached the daily %s limit of %d", e.AccountID, e.GameType, e.Limit)
}

// AlreadySettledError signals a repeated settlement. The original outcome is
// carried so the caller can surface it instead of recomputing.
type AlreadySettledError struct {
	SessionID string
	Earnings  decimal.Decimal
}

func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("session %s already settled for %s", e.SessionID, e.Earnings)
}

// InvalidStateTransitionError is a state-machine violation, e.g. reviewing a
// loan that is not pending.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// ConcurrentModificationError surfaces after the bounded internal retries on
// a transient store conflict were exhausted.
type ConcurrentModificationError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s aborted after %d conflicting attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ConcurrentModificationError) Unwrap() error {
	return e.Err
}

// NoSalaryError is the insurance precondition: premiums are computed from the
// salary, so a zero salary cannot be quoted.
type NoSalaryError struct {
	AccountID int64
}

func (e *NoSalaryError) Error() string {
	return fmt.Sprintf("account %d has no salary to quote against", e.AccountID)
}

func IsInsufficientFunds(err error) bool {
	var e *InsufficientFundsError
	return errors.As(err, &e)
}

func IsDailyLimit(err error) bool {
	var e *DailyLimitError
	return errors.As(err, &e)
}

func IsAlreadySettled(err error) bool {
	var e *AlreadySettledError
	return errors.As(err, &e)
}

func IsInvalidStateTransition(err error) bool {
	var e *InvalidStateTransitionError
	return errors.As(err, &e)
}

func IsConcurrentModification(err error) bool {
	var e *ConcurrentModificationError
	return errors.As(err, &e)
}

func IsNoSalary(err error) bool {
	var e *NoSalaryError
	return errors.As(err, &e)
}
