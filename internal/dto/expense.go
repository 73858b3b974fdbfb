package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// CreateExpenseRequest records a new (unapproved) project expense.
type CreateExpenseRequest struct {
	ProjectID    string          `json:"projectID" binding:"required"`
	Description  string          `json:"description" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	CurrencyCode string          `json:"currencyCode" binding:"required,currencycode"`
	IncurredOn   time.Time       `json:"incurredOn" binding:"required"`
}

// ExpenseResponse is the API shape of an expense.
type ExpenseResponse struct {
	ExpenseID    string          `json:"expenseID"`
	ProjectID    string          `json:"projectID"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
	IncurredOn   time.Time       `json:"incurredOn"`
	Approved     bool            `json:"approved"`
	Invoiced     bool            `json:"invoiced"`
	InvoiceID    *string         `json:"invoiceID,omitempty"`
}

// ApproveExpenseResponse reports how the approved amount was funded.
type ApproveExpenseResponse struct {
	ExpenseID string          `json:"expenseID"`
	Covered   decimal.Decimal `json:"covered"`  // Consumed from advances
	Residual  decimal.Decimal `json:"residual"` // Debited directly (overdraft accepted)
	InvoiceID string          `json:"invoiceID"`
}

// ToExpenseResponse converts a domain expense to its API shape.
func ToExpenseResponse(e *domain.Expense) ExpenseResponse {
	return ExpenseResponse{
		ExpenseID:    e.ExpenseID,
		ProjectID:    e.ProjectID,
		Description:  e.Description,
		Amount:       e.Amount,
		CurrencyCode: e.CurrencyCode,
		IncurredOn:   e.IncurredOn,
		Approved:     e.Approved,
		Invoiced:     e.Invoiced,
		InvoiceID:    e.InvoiceID,
	}
}
