package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a cost incurred on behalf of a client project. Approval is a
// one-way transition: once approved the expense has been consumed against
// advances, posted to the ledger and linked to a draft invoice, and cannot be
// approved again.
type Expense struct {
	ExpenseID    string          `json:"expenseID"` // Primary key (UUID)
	CompanyID    string          `json:"companyID"`
	ProjectID    string          `json:"projectID"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
	IncurredOn   time.Time       `json:"incurredOn"`
	Approved     bool            `json:"approved"`
	ApprovedAt   *time.Time      `json:"approvedAt,omitempty"`
	ApprovedBy   *string         `json:"approvedBy,omitempty"`
	Invoiced     bool            `json:"invoiced"`
	InvoiceID    *string         `json:"invoiceID,omitempty"`
	AuditFields
}
