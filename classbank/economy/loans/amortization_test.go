package loans

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMonthlyPayment(t *testing.T) {
	tests := []struct {
		name       string
		principal  string
		rate       string
		termMonths int
		want       string
	}{
		{
			name:       "standard schedule",
			principal:  "1200",
			rate:       "0.01",
			termMonths: 12,
			want:       "106.62",
		},
		{
			name:       "zero rate is straight line",
			principal:  "1200",
			rate:       "0",
			termMonths: 12,
			want:       "100",
		},
		{
			name:       "single month pays principal plus one period of interest",
			principal:  "100",
			rate:       "0.01",
			termMonths: 1,
			want:       "101",
		},
		{
			name:       "long term",
			principal:  "10000",
			rate:       "0.005",
			termMonths: 36,
			want:       "304.22",
		},
		{
			name:       "zero term",
			principal:  "1200",
			rate:       "0.01",
			termMonths: 0,
			want:       "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthlyPayment(dec(tt.principal), dec(tt.rate), tt.termMonths)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("MonthlyPayment(%s, %s, %d) = %s, want %s", tt.principal, tt.rate, tt.termMonths, got, tt.want)
			}
		})
	}
}

func TestTotalCost(t *testing.T) {
	got := TotalCost(dec("1200"), dec("0.01"), 12)
	if !got.Equal(dec("1279.44")) {
		t.Errorf("TotalCost() = %s, want 1279.44", got)
	}
}
