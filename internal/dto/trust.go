package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// AddAdvanceRequest records a client/project prepayment and credits the
// matching trust sub-ledger.
type AddAdvanceRequest struct {
	ClientID     string          `json:"clientID" binding:"required"`
	ProjectID    string          `json:"projectID" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	CurrencyCode string          `json:"currencyCode" binding:"required,currencycode"`
	Kind         string          `json:"accountType" binding:"required,oneof=TRUST EXPENSE"`
	PaidOn       time.Time       `json:"paidOn" binding:"required"`
	Description  string          `json:"description"`
}

// TrustAdjustmentRequest credits or debits a trust sub-ledger directly.
// ProjectID nil addresses the client-wide account.
type TrustAdjustmentRequest struct {
	ClientID     string          `json:"clientID" binding:"required"`
	ProjectID    *string         `json:"projectID"`
	CurrencyCode string          `json:"currencyCode" binding:"required,currencycode"`
	Kind         string          `json:"accountType" binding:"required,oneof=TRUST EXPENSE"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	Description  string          `json:"description" binding:"required"`
}

// TrustAccountResponse is the API shape of a trust sub-ledger.
type TrustAccountResponse struct {
	TrustAccountID string          `json:"trustAccountID"`
	ClientID       string          `json:"clientID"`
	ProjectID      *string         `json:"projectID,omitempty"`
	CurrencyCode   string          `json:"currencyCode"`
	Kind           string          `json:"accountType"`
	Balance        decimal.Decimal `json:"balance"`
}

// TrustBalanceResponse reports the authoritative (derived) balance.
type TrustBalanceResponse struct {
	TrustAccountID string          `json:"trustAccountID"`
	Balance        decimal.Decimal `json:"balance"`
	CurrencyCode   string          `json:"currencyCode"`
}

// AdvanceResponse is the API shape of an advance payment.
type AdvanceResponse struct {
	AdvanceID    string          `json:"advanceID"`
	ClientID     string          `json:"clientID"`
	ProjectID    string          `json:"projectID"`
	Amount       decimal.Decimal `json:"amount"`
	Consumed     decimal.Decimal `json:"consumed"`
	CurrencyCode string          `json:"currencyCode"`
	Kind         string          `json:"accountType"`
	PaidOn       time.Time       `json:"paidOn"`
}

// ToTrustAccountResponse converts a domain trust account to its API shape.
func ToTrustAccountResponse(a *domain.TrustAccount) TrustAccountResponse {
	return TrustAccountResponse{
		TrustAccountID: a.TrustAccountID,
		ClientID:       a.ClientID,
		ProjectID:      a.ProjectID,
		CurrencyCode:   a.CurrencyCode,
		Kind:           string(a.Kind),
		Balance:        a.Balance,
	}
}

// ToAdvanceResponse converts a domain advance to its API shape.
func ToAdvanceResponse(a *domain.AdvancePayment) AdvanceResponse {
	return AdvanceResponse{
		AdvanceID:    a.AdvanceID,
		ClientID:     a.ClientID,
		ProjectID:    a.ProjectID,
		Amount:       a.Amount,
		Consumed:     a.Consumed,
		CurrencyCode: a.CurrencyCode,
		Kind:         string(a.Kind),
		PaidOn:       a.PaidOn,
	}
}
