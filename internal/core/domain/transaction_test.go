package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

func TestTransactionLine_SignedAmount(t *testing.T) {
	debit := domain.TransactionLine{Debit: decimal.NewFromInt(100)}
	credit := domain.TransactionLine{Credit: decimal.NewFromInt(100)}

	tests := []struct {
		name        string
		line        domain.TransactionLine
		accountType domain.AccountType
		want        int64
	}{
		{"debit grows an asset", debit, domain.Asset, 100},
		{"debit grows an expense", debit, domain.ExpenseType, 100},
		{"credit shrinks an asset", credit, domain.Asset, -100},
		{"credit grows a liability", credit, domain.Liability, 100},
		{"credit grows equity", credit, domain.Equity, 100},
		{"credit grows income", credit, domain.Income, 100},
		{"debit shrinks income", debit, domain.Income, -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.line.SignedAmount(tt.accountType)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "expected %d, got %s", tt.want, got)
		})
	}
}
