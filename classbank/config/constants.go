package config

import "time"

// Application-wide constants organized by domain

// Database and Performance Constants
const (
	// Timeouts
	DefaultQueryTimeout = 30 * time.Second
	BatchQueryTimeout   = 30 * time.Second
	SchedulerTimeout    = 5 * time.Minute

	// Cache settings
	SettingsCacheExpiration = 30 * time.Second
	SettingsCacheSize       = 256

	// Retry policy for transient store conflicts
	MaxRetries    = 3
	RetryInterval = 50 * time.Millisecond
)

// Ledger Constants
const (
	// Longest description accepted on a transaction
	MaxDescriptionLength = 200
)

// Reward Engine Constants
const (
	// Daily play window resets at this hour, not midnight
	DefaultResetHour = 6

	// Plays per user per game per game day unless overridden in settings
	DefaultDailyPlayLimit = 3

	// Base payout per correct unit before multipliers
	DefaultBaseRate = 1

	// Problems in one math session
	MathProblemCount = 5

	// Guesses allowed in one word session
	WordMaxGuesses = 6
	WordLength     = 5
)

// Loan Engine Constants
const (
	MinLoanPrincipal = 10
	MaxLoanPrincipal = 10000
	MinLoanTerm      = 1
	MaxLoanTerm      = 36

	// Scheduler fan-out bound: concurrent payment postings
	LoanSchedulerWorkers = 4

	LoanTickInterval = 1 * time.Hour
)

// Insurance Constants
const (
	MinInsuranceWeeks = 1
	MaxInsuranceWeeks = 52
)

// Settings keys consumed by the engines
const (
	SettingDoublesDay     = "doubles_day"
	SettingDailyPlayLimit = "daily_play_limit"
	SettingBaseRate       = "base_rate"
	SettingLoanRate       = "loan_monthly_rate"
	SettingGameEnabled    = "game_enabled." // prefix, suffixed with the game type
)
