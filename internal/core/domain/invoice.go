package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "DRAFT"
	InvoiceSent  InvoiceStatus = "SENT"
	InvoicePaid  InvoiceStatus = "PAID"
)

// InvoiceItemType identifies what an invoice line bills for.
type InvoiceItemType string

const (
	ItemTime    InvoiceItemType = "TIME"
	ItemExpense InvoiceItemType = "EXPENSE"
	ItemFixed   InvoiceItemType = "FIXED"
)

// Invoice bills a client project. Totals are derived from the items:
// subtotal = sum of line totals, total = (subtotal - discount) * (1 + tax/100),
// and are recomputed whenever items, discount, tax or currency change.
type Invoice struct {
	InvoiceID     string          `json:"invoiceID"` // Primary key (UUID)
	CompanyID     string          `json:"companyID"`
	ClientID      string          `json:"clientID"`
	ProjectID     string          `json:"projectID"`
	InvoiceNumber string          `json:"invoiceNumber"` // Sequential per company, "INV-00001" style
	CurrencyCode  string          `json:"currencyCode"`
	Status        InvoiceStatus   `json:"status"`
	IssueDate     time.Time       `json:"issueDate"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"` // Percentage of subtotal
	Tax           decimal.Decimal `json:"tax"`      // Percentage applied after discount
	Total         decimal.Decimal `json:"total"`
	TrustDeducted decimal.Decimal `json:"trustDeducted"` // Cumulative trust money applied
	Items         []InvoiceItem   `json:"items,omitempty"`
	AuditFields
}

// RecalculateTotals recomputes Subtotal and Total from the current item set.
// Idempotent: calling it twice with unchanged inputs yields identical totals.
func (inv *Invoice) RecalculateTotals() {
	subtotal := decimal.Zero
	for _, item := range inv.Items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	inv.Subtotal = subtotal

	hundred := decimal.NewFromInt(100)
	discounted := subtotal.Sub(subtotal.Mul(inv.Discount).Div(hundred))
	inv.Total = discounted.Mul(decimal.NewFromInt(1).Add(inv.Tax.Div(hundred)))
}

// InvoiceItem is one line of an invoice. RefID points back at the source time
// entry or expense so line creation stays idempotent: one line per source
// record.
type InvoiceItem struct {
	ItemID    string          `json:"itemID"` // Primary key (UUID)
	InvoiceID string          `json:"invoiceID"`
	ItemType  InvoiceItemType `json:"itemType"`
	RefID     *string         `json:"refID,omitempty"` // Source time entry / expense ID
	Details   string          `json:"details"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"` // quantity * unitPrice
	AuditFields
}

// Recalculate refreshes LineTotal from quantity and unit price.
func (i *InvoiceItem) Recalculate() {
	i.LineTotal = i.Quantity.Mul(i.UnitPrice)
}

// Payment records money applied against an invoice.
type Payment struct {
	PaymentID    string          `json:"paymentID"` // Primary key (UUID)
	CompanyID    string          `json:"companyID"`
	InvoiceID    string          `json:"invoiceID"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
	Method       string          `json:"method"` // e.g. "TRUST"
	PaidOn       time.Time       `json:"paidOn"`
	AuditFields
}
