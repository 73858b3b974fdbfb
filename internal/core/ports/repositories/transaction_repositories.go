package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// TransactionReader defines read operations for ledger transaction data.
type TransactionReader interface {
	// FindTransactionByID retrieves a transaction header (no lines).
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// FindLinesByTransactionID retrieves all lines of a transaction.
	FindLinesByTransactionID(ctx context.Context, transactionID string) ([]domain.TransactionLine, error)

	// ListTransactionLinesByAccountID retrieves a paginated list of lines posted
	// against an account, newest first, using token-based pagination.
	ListTransactionLinesByAccountID(ctx context.Context, companyID, accountID string, limit int, nextToken *string) ([]domain.TransactionLine, *string, error)
}

// TransactionWriter defines write operations for ledger transaction data.
type TransactionWriter interface {
	// SaveTransactionInTx persists a transaction header and its lines inside the
	// caller's database transaction. Callers are responsible for balance
	// validation and for the matching cached account-balance updates.
	SaveTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction, lines []domain.TransactionLine) error

	// UpdateStatusAndLinksInTx updates the status and reversal linkage of a transaction.
	UpdateStatusAndLinksInTx(ctx context.Context, tx pgx.Tx, transactionID string, status domain.TransactionStatus, reversingTransactionID *string, updatedBy string, updatedAt time.Time) error
}

// TransactionRepositoryFacade combines all transaction-related repository interfaces.
type TransactionRepositoryFacade interface {
	TransactionReader
	TransactionWriter
}

// TransactionRepositoryWithTx extends TransactionRepositoryFacade with transaction capabilities.
type TransactionRepositoryWithTx interface {
	TransactionRepositoryFacade
	TransactionManager
}
