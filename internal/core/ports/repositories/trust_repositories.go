package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// TrustAccountKey identifies a trust sub-ledger. ProjectID nil means the
// client-wide account.
type TrustAccountKey struct {
	CompanyID    string
	ClientID     string
	ProjectID    *string
	CurrencyCode string
	Kind         domain.TrustAccountKind
}

// TrustReader defines read operations for trust sub-ledger data.
type TrustReader interface {
	// FindTrustAccountByID retrieves a trust account.
	FindTrustAccountByID(ctx context.Context, trustAccountID string) (*domain.TrustAccount, error)

	// SumTrustTransactions returns the signed sum (credits minus debits) of all
	// transactions under a trust account. This is the authoritative balance.
	SumTrustTransactions(ctx context.Context, trustAccountID string) (decimal.Decimal, error)

	// ListTrustTransactions retrieves the append-only log of a trust account,
	// oldest first.
	ListTrustTransactions(ctx context.Context, trustAccountID string) ([]domain.TrustTransaction, error)
}

// TrustWriter defines write operations for trust sub-ledger data.
type TrustWriter interface {
	// FindTrustAccountForUpdate locks and returns the account for the given key,
	// or apperrors.ErrNotFound when it does not exist yet.
	FindTrustAccountForUpdate(ctx context.Context, tx pgx.Tx, key TrustAccountKey) (*domain.TrustAccount, error)

	// SaveTrustAccountInTx inserts a new trust account.
	SaveTrustAccountInTx(ctx context.Context, tx pgx.Tx, account domain.TrustAccount) error

	// AppendTrustTransactionInTx inserts a trust transaction and atomically
	// adjusts the cached balance of its account in the same statement batch.
	// Returns the balance after the adjustment.
	AppendTrustTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.TrustTransaction) (decimal.Decimal, error)

	// ListForPaymentForUpdate locks and returns the client's TRUST accounts in
	// the given currency, project-scoped accounts first, then client-wide.
	ListForPaymentForUpdate(ctx context.Context, tx pgx.Tx, companyID, clientID, projectID, currencyCode string) ([]domain.TrustAccount, error)
}

// AdvanceReader defines read operations for advance payments.
type AdvanceReader interface {
	// FindAdvanceByID retrieves an advance payment.
	FindAdvanceByID(ctx context.Context, advanceID string) (*domain.AdvancePayment, error)
}

// AdvanceWriter defines write operations for advance payments.
type AdvanceWriter interface {
	// SaveAdvanceInTx inserts a new advance payment.
	SaveAdvanceInTx(ctx context.Context, tx pgx.Tx, advance domain.AdvancePayment) error

	// ListOutstandingByProjectForUpdate locks and returns the project's advances
	// with unconsumed balance, ordered same-currency-first then paidOn ascending.
	ListOutstandingByProjectForUpdate(ctx context.Context, tx pgx.Tx, projectID, preferCurrencyCode string) ([]domain.AdvancePayment, error)

	// AddConsumedInTx bumps consumed by delta with a guarded update so that
	// consumed never exceeds amount; a violated guard surfaces as
	// apperrors.ErrConflict.
	AddConsumedInTx(ctx context.Context, tx pgx.Tx, advanceID string, delta decimal.Decimal, updatedBy string) error
}

// TrustRepositoryFacade combines trust-account and advance repository interfaces;
// they always change together inside one database transaction.
type TrustRepositoryFacade interface {
	TrustReader
	TrustWriter
	AdvanceReader
	AdvanceWriter
}

// TrustRepositoryWithTx extends TrustRepositoryFacade with transaction capabilities.
type TrustRepositoryWithTx interface {
	TrustRepositoryFacade
	TransactionManager
}
