package accounting_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	"github.com/lexpraxis/legal_practice_app/internal/utils/accounting"
)

func line(accountID string, debit, credit float64, currency string) domain.TransactionLine {
	return domain.TransactionLine{
		AccountID:    accountID,
		Debit:        decimal.NewFromFloat(debit),
		Credit:       decimal.NewFromFloat(credit),
		CurrencyCode: currency,
	}
}

func TestValidateLine(t *testing.T) {
	tests := []struct {
		name    string
		line    domain.TransactionLine
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid debit line",
			line:    line("acc-1", 100.00, 0, "USD"),
			wantErr: false,
		},
		{
			name:    "valid credit line",
			line:    line("acc-1", 0, 250.50, "EGP"),
			wantErr: false,
		},
		{
			name:    "negative debit",
			line:    line("acc-1", -10.00, 0, "USD"),
			wantErr: true,
			errMsg:  "must not be negative",
		},
		{
			name:    "negative credit",
			line:    line("acc-1", 0, -10.00, "USD"),
			wantErr: true,
			errMsg:  "must not be negative",
		},
		{
			name:    "both debit and credit set",
			line:    line("acc-1", 50.00, 50.00, "USD"),
			wantErr: true,
			errMsg:  "exactly one of debit or credit",
		},
		{
			name:    "neither debit nor credit set",
			line:    line("acc-1", 0, 0, "USD"),
			wantErr: true,
			errMsg:  "exactly one of debit or credit",
		},
		{
			name:    "missing currency code",
			line:    line("acc-1", 100.00, 0, ""),
			wantErr: true,
			errMsg:  "currency code is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := accounting.ValidateLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSumByCurrency(t *testing.T) {
	lines := []domain.TransactionLine{
		line("acc-1", 100.00, 0, "USD"),
		line("acc-2", 0, 60.00, "USD"),
		line("acc-3", 0, 40.00, "USD"),
		line("acc-4", 500.00, 0, "EGP"),
		line("acc-5", 0, 500.00, "EGP"),
	}

	sums := accounting.SumByCurrency(lines)
	assert.Len(t, sums, 2)

	usd := sums["USD"]
	assert.Equal(t, "USD", usd.CurrencyCode)
	assert.True(t, usd.Debits.Equal(decimal.NewFromInt(100)), "USD debits should sum to 100, got %s", usd.Debits)
	assert.True(t, usd.Credits.Equal(decimal.NewFromInt(100)), "USD credits should sum to 100, got %s", usd.Credits)
	assert.True(t, usd.Delta().IsZero())

	egp := sums["EGP"]
	assert.True(t, egp.Debits.Equal(decimal.NewFromInt(500)))
	assert.True(t, egp.Delta().IsZero())
}

func TestFindImbalance(t *testing.T) {
	t.Run("balanced multi-currency transaction", func(t *testing.T) {
		lines := []domain.TransactionLine{
			line("acc-1", 100.00, 0, "USD"),
			line("acc-2", 0, 100.00, "USD"),
			line("acc-3", 4850.00, 0, "EGP"),
			line("acc-4", 0, 4850.00, "EGP"),
		}
		assert.Nil(t, accounting.FindImbalance(lines))
	})

	t.Run("imbalance in one currency", func(t *testing.T) {
		lines := []domain.TransactionLine{
			line("acc-1", 100.00, 0, "USD"),
			line("acc-2", 0, 100.00, "USD"),
			line("acc-3", 4850.00, 0, "EGP"),
			line("acc-4", 0, 4800.00, "EGP"),
		}
		got := accounting.FindImbalance(lines)
		assert.NotNil(t, got)
		assert.Equal(t, "EGP", got.CurrencyCode)
		assert.True(t, got.Delta().Equal(decimal.NewFromInt(50)), "delta should be 50, got %s", got.Delta())
	})

	t.Run("cross-currency netting is not allowed", func(t *testing.T) {
		// 100 USD debit vs 4850 EGP credit may be equivalent in value but
		// each currency must balance on its own.
		lines := []domain.TransactionLine{
			line("acc-1", 100.00, 0, "USD"),
			line("acc-2", 0, 4850.00, "EGP"),
		}
		assert.NotNil(t, accounting.FindImbalance(lines))
	})

	t.Run("empty line set balances", func(t *testing.T) {
		assert.Nil(t, accounting.FindImbalance(nil))
	})
}
