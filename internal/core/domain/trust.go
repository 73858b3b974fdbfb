package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrustAccountKind distinguishes client trust money from expense floats.
type TrustAccountKind string

const (
	// TrustKind holds client money in trust; must not be driven negative.
	TrustKind TrustAccountKind = "TRUST"
	// ExpenseKind tracks client expense floats; may overdraft (money the
	// firm has laid out ahead of being covered).
	ExpenseKind TrustAccountKind = "EXPENSE"
)

// TrustAccount is a sub-ledger keyed by (client, optional project, currency,
// kind). Created lazily the first time a credit or debit needs to post
// against a not-yet-existing key. Balance is a cached value maintained in the
// same database transaction as every TrustTransaction append; the
// authoritative figure is always the signed sum of the transactions.
type TrustAccount struct {
	TrustAccountID string           `json:"trustAccountID"` // Primary key (UUID)
	CompanyID      string           `json:"companyID"`
	ClientID       string           `json:"clientID"`
	ProjectID      *string          `json:"projectID,omitempty"` // Nil for client-wide accounts
	CurrencyCode   string           `json:"currencyCode"`
	Kind           TrustAccountKind `json:"kind"`
	Balance        decimal.Decimal  `json:"balance"`
	AuditFields
}

// AllowsOverdraft reports whether a debit may drive the account negative.
func (a TrustAccount) AllowsOverdraft() bool {
	return a.Kind == ExpenseKind
}

// TrustTransactionType is the direction of a trust sub-ledger entry.
type TrustTransactionType string

const (
	TrustCredit TrustTransactionType = "CREDIT"
	TrustDebit  TrustTransactionType = "DEBIT"
)

// TrustTransaction is an append-only record under a TrustAccount. Amount is
// always positive; CREDIT adds to the balance, DEBIT subtracts. Never mutated
// or deleted in normal operation.
type TrustTransaction struct {
	TrustTransactionID string               `json:"trustTransactionID"` // Primary key (UUID)
	TrustAccountID     string               `json:"trustAccountID"`
	TxnType            TrustTransactionType `json:"txnType"`
	Amount             decimal.Decimal      `json:"amount"` // Always positive
	Description        string               `json:"description"`
	InvoiceID          *string              `json:"invoiceID,omitempty"`
	ProjectID          *string              `json:"projectID,omitempty"`
	AuditFields
}

// SignedAmount is the transaction's effect on the account balance.
func (t TrustTransaction) SignedAmount() decimal.Decimal {
	if t.TxnType == TrustDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// AdvancePayment is a client/project prepayment credited to a trust or
// expense sub-ledger and consumed against future incurred expenses.
// Consumed is denominated in the advance's own currency and never exceeds
// Amount.
type AdvancePayment struct {
	AdvanceID    string           `json:"advanceID"` // Primary key (UUID)
	CompanyID    string           `json:"companyID"`
	ClientID     string           `json:"clientID"`
	ProjectID    string           `json:"projectID"`
	Amount       decimal.Decimal  `json:"amount"`
	Consumed     decimal.Decimal  `json:"consumed"`
	CurrencyCode string           `json:"currencyCode"`
	Kind         TrustAccountKind `json:"accountType"` // Which sub-ledger the advance was credited to
	PaidOn       time.Time        `json:"paidOn"`
	AuditFields
}

// Unconsumed is the advance balance still available, in the advance currency.
func (a AdvancePayment) Unconsumed() decimal.Decimal {
	return a.Amount.Sub(a.Consumed)
}
