package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus indicates the state of a ledger transaction.
type TransactionStatus string

const (
	Posted   TransactionStatus = "POSTED"
	Reversed TransactionStatus = "REVERSED"
)

// Transaction is a general-ledger journal entry: a dated, balanced set of
// debit/credit lines. For every currency appearing among its lines the debit
// and credit sums are equal.
type Transaction struct {
	TransactionID string            `json:"transactionID"` // Primary key (UUID)
	CompanyID     string            `json:"companyID"`
	Date          time.Time         `json:"date"`
	Memo          string            `json:"memo"`
	Status        TransactionStatus `json:"status"` // Default: POSTED
	// Reversal links. A reversing entry points back at the original via
	// OriginalTransactionID; the original gets ReversingTransactionID set.
	OriginalTransactionID  *string           `json:"originalTransactionID,omitempty"`
	ReversingTransactionID *string           `json:"reversingTransactionID,omitempty"`
	Lines                  []TransactionLine `json:"lines,omitempty"` // Often loaded separately
	AuditFields
}

// TransactionLine is a single debit or credit against one account. Exactly one
// of Debit/Credit is nonzero. Lines are immutable after creation; corrections
// go through reversing entries.
type TransactionLine struct {
	LineID        string          `json:"lineID"` // Primary key (UUID)
	TransactionID string          `json:"transactionID"`
	AccountID     string          `json:"accountID"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	CurrencyCode  string          `json:"currencyCode"`
	Memo          string          `json:"memo"`
	AuditFields
}

// SignedAmount is the line's effect on its account balance under the usual
// double-entry sign convention: debits increase ASSET/EXPENSE accounts,
// credits increase LIABILITY/EQUITY/INCOME accounts.
func (l TransactionLine) SignedAmount(accountType AccountType) decimal.Decimal {
	net := l.Debit.Sub(l.Credit)
	switch accountType {
	case Asset, ExpenseType:
		return net
	default:
		return net.Neg()
	}
}
