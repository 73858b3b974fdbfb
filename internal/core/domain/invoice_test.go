package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

func item(qty, price float64) domain.InvoiceItem {
	it := domain.InvoiceItem{
		Quantity:  decimal.NewFromFloat(qty),
		UnitPrice: decimal.NewFromFloat(price),
	}
	it.Recalculate()
	return it
}

func TestInvoiceItem_Recalculate(t *testing.T) {
	it := domain.InvoiceItem{
		Quantity:  decimal.NewFromFloat(2.5),
		UnitPrice: decimal.NewFromInt(200),
	}
	it.Recalculate()
	assert.True(t, it.LineTotal.Equal(decimal.NewFromInt(500)), "expected 500, got %s", it.LineTotal)

	// Stale LineTotal is overwritten.
	it.Quantity = decimal.NewFromInt(3)
	it.Recalculate()
	assert.True(t, it.LineTotal.Equal(decimal.NewFromInt(600)))
}

func TestInvoice_RecalculateTotals(t *testing.T) {
	tests := []struct {
		name         string
		items        []domain.InvoiceItem
		discount     decimal.Decimal
		tax          decimal.Decimal
		wantSubtotal decimal.Decimal
		wantTotal    decimal.Decimal
	}{
		{
			name:         "no discount or tax",
			items:        []domain.InvoiceItem{item(2, 100.00), item(3, 50.00)},
			discount:     decimal.Zero,
			tax:          decimal.Zero,
			wantSubtotal: decimal.NewFromInt(350),
			wantTotal:    decimal.NewFromInt(350),
		},
		{
			name:         "discount then tax",
			items:        []domain.InvoiceItem{item(2, 100.00), item(3, 50.00)},
			discount:     decimal.NewFromInt(10),
			tax:          decimal.NewFromInt(14),
			wantSubtotal: decimal.NewFromInt(350),
			wantTotal:    decimal.NewFromFloat(359.10), // (350 - 35) * 1.14
		},
		{
			name:         "tax only",
			items:        []domain.InvoiceItem{item(1, 1000.00)},
			discount:     decimal.Zero,
			tax:          decimal.NewFromInt(14),
			wantSubtotal: decimal.NewFromInt(1000),
			wantTotal:    decimal.NewFromInt(1140),
		},
		{
			name:         "no items",
			items:        nil,
			discount:     decimal.NewFromInt(10),
			tax:          decimal.NewFromInt(14),
			wantSubtotal: decimal.Zero,
			wantTotal:    decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := domain.Invoice{
				Items:    tt.items,
				Discount: tt.discount,
				Tax:      tt.tax,
			}
			inv.RecalculateTotals()
			assert.True(t, inv.Subtotal.Equal(tt.wantSubtotal), "subtotal: want %s, got %s", tt.wantSubtotal, inv.Subtotal)
			assert.True(t, inv.Total.Equal(tt.wantTotal), "total: want %s, got %s", tt.wantTotal, inv.Total)
		})
	}
}

func TestInvoice_RecalculateTotalsIdempotent(t *testing.T) {
	inv := domain.Invoice{
		Items:    []domain.InvoiceItem{item(2, 100.00), item(3, 50.00)},
		Discount: decimal.NewFromInt(10),
		Tax:      decimal.NewFromInt(14),
	}
	inv.RecalculateTotals()
	first := inv.Total

	inv.RecalculateTotals()
	assert.True(t, inv.Total.Equal(first), "repeated recalculation changed the total: %s vs %s", first, inv.Total)
}
