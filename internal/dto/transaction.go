package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// CreateTransactionLineRequest is one debit or credit line of a posting
// request. Exactly one of Debit/Credit must be nonzero.
type CreateTransactionLineRequest struct {
	AccountID    string          `json:"accountID" binding:"required"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	CurrencyCode string          `json:"currencyCode" binding:"required,currencycode"`
	Memo         string          `json:"memo"`
}

// CreateTransactionRequest asks the ledger to post a balanced transaction.
type CreateTransactionRequest struct {
	Date  time.Time                      `json:"date" binding:"required"`
	Memo  string                         `json:"memo" binding:"required"`
	Lines []CreateTransactionLineRequest `json:"lines" binding:"required,min=2,dive"`
}

// TransactionLineResponse is the API shape of a posted line.
type TransactionLineResponse struct {
	LineID       string          `json:"lineID"`
	AccountID    string          `json:"accountID"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	CurrencyCode string          `json:"currencyCode"`
	Memo         string          `json:"memo,omitempty"`
}

// TransactionResponse is the API shape of a posted transaction.
type TransactionResponse struct {
	TransactionID          string                    `json:"transactionID"`
	Date                   time.Time                 `json:"date"`
	Memo                   string                    `json:"memo"`
	Status                 string                    `json:"status"`
	OriginalTransactionID  *string                   `json:"originalTransactionID,omitempty"`
	ReversingTransactionID *string                   `json:"reversingTransactionID,omitempty"`
	Lines                  []TransactionLineResponse `json:"lines,omitempty"`
	CreatedAt              time.Time                 `json:"createdAt"`
	CreatedBy              string                    `json:"createdBy"`
}

// ListTransactionLinesParams carries pagination for per-account line listings.
type ListTransactionLinesParams struct {
	Limit     int     `form:"limit"`
	NextToken *string `form:"nextToken"`
}

// ListTransactionLinesResponse is a page of lines plus the next-page token.
type ListTransactionLinesResponse struct {
	Lines     []TransactionLineResponse `json:"lines"`
	NextToken *string                   `json:"nextToken,omitempty"`
}

// ToTransactionLineResponse converts a domain line to its API shape.
func ToTransactionLineResponse(l domain.TransactionLine) TransactionLineResponse {
	return TransactionLineResponse{
		LineID:       l.LineID,
		AccountID:    l.AccountID,
		Debit:        l.Debit,
		Credit:       l.Credit,
		CurrencyCode: l.CurrencyCode,
		Memo:         l.Memo,
	}
}

// ToTransactionResponse converts a domain transaction to its API shape.
func ToTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		TransactionID:          t.TransactionID,
		Date:                   t.Date,
		Memo:                   t.Memo,
		Status:                 string(t.Status),
		OriginalTransactionID:  t.OriginalTransactionID,
		ReversingTransactionID: t.ReversingTransactionID,
		CreatedAt:              t.CreatedAt,
		CreatedBy:              t.CreatedBy,
	}
	for _, l := range t.Lines {
		resp.Lines = append(resp.Lines, ToTransactionLineResponse(l))
	}
	return resp
}
