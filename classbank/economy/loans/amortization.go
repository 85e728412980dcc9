// Package loans runs the loan lifecycle: application, teacher review,
// disbursement, and the monthly amortized collection schedule.
package loans

import "github.com/shopspring/decimal"

// MonthlyPayment computes the level payment of a fully amortizing loan:
//
//	P * r * (1+r)^n / ((1+r)^n - 1)
//
// where r is the monthly rate and n the term in months. A zero rate
// degenerates to straight-line principal. The result is rounded to cents;
// rounding drift is absorbed by the final payment, which pays exactly the
// remaining outstanding balance.
func MonthlyPayment(principal, monthlyRate decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	n := int64(termMonths)
	if monthlyRate.IsZero() {
		return principal.DivRound(decimal.NewFromInt(n), 2)
	}

	onePlusR := decimal.NewFromInt(1).Add(monthlyRate)
	compounded := onePlusR.Pow(decimal.NewFromInt(n))

	numerator := principal.Mul(monthlyRate).Mul(compounded)
	denominator := compounded.Sub(decimal.NewFromInt(1))
	return numerator.DivRound(denominator, 2)
}

// TotalCost is the nominal sum of all scheduled payments before the
// final-payment rounding adjustment. Shown to applicants as an estimate.
func TotalCost(principal, monthlyRate decimal.Decimal, termMonths int) decimal.Decimal {
	return MonthlyPayment(principal, monthlyRate, termMonths).Mul(decimal.NewFromInt(int64(termMonths)))
}
