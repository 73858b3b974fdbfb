package accounting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// CurrencyDelta is the debit-minus-credit difference for one currency among a
// transaction's lines. A balanced transaction has a zero delta per currency.
type CurrencyDelta struct {
	CurrencyCode string
	Debits       decimal.Decimal
	Credits      decimal.Decimal
}

// Delta returns debits minus credits.
func (d CurrencyDelta) Delta() decimal.Decimal {
	return d.Debits.Sub(d.Credits)
}

// ValidateLine checks the debit/credit shape of a single line: amounts are
// non-negative and exactly one of them is nonzero.
func ValidateLine(line domain.TransactionLine) error {
	if line.Debit.IsNegative() || line.Credit.IsNegative() {
		return fmt.Errorf("line amounts must not be negative for account %s", line.AccountID)
	}
	debitSet := line.Debit.IsPositive()
	creditSet := line.Credit.IsPositive()
	if debitSet == creditSet {
		return fmt.Errorf("exactly one of debit or credit must be set for account %s", line.AccountID)
	}
	if line.CurrencyCode == "" {
		return fmt.Errorf("currency code is required for account %s", line.AccountID)
	}
	return nil
}

// SumByCurrency aggregates debit and credit totals per currency.
func SumByCurrency(lines []domain.TransactionLine) map[string]CurrencyDelta {
	sums := make(map[string]CurrencyDelta, 2)
	for _, line := range lines {
		d := sums[line.CurrencyCode]
		d.CurrencyCode = line.CurrencyCode
		d.Debits = d.Debits.Add(line.Debit)
		d.Credits = d.Credits.Add(line.Credit)
		sums[line.CurrencyCode] = d
	}
	return sums
}

// FindImbalance returns the first currency whose debits and credits differ,
// or nil when every currency balances. Transactions must not rely on implicit
// FX netting, so the check is strictly per currency.
func FindImbalance(lines []domain.TransactionLine) *CurrencyDelta {
	for _, d := range SumByCurrency(lines) {
		if !d.Delta().IsZero() {
			out := d
			return &out
		}
	}
	return nil
}
