package classbank

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log  LogConfig  `toml:"log"`
	DB   DBConfig   `toml:"db"`
	Bank BankConfig `toml:"bank"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type BankConfig struct {
	// Hour of day (0-23) at which the game day rolls over
	ResetHour int `toml:"reset_hour"`

	// Timezone name for the game-day boundary, e.g. "America/New_York".
	// Empty means UTC.
	Timezone string `toml:"timezone"`

	DailyPlayLimit int `toml:"daily_play_limit"`

	// Monthly interest rate applied to new loans, e.g. "0.01"
	LoanMonthlyRate string `toml:"loan_monthly_rate"`

	// Weekly premium rates per insurance type as a percent of salary,
	// e.g. health = "0.05"
	InsuranceRates map[string]string `toml:"insurance_rates"`
}
