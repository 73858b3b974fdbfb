package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// AccountReader defines read operations for general-ledger account data.
type AccountReader interface {
	// FindAccountByID retrieves a specific account by its unique identifier.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// FindAccountsByIDs retrieves several accounts at once, keyed by ID.
	FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error)

	// FindAccountByCode retrieves an account by its company-unique code.
	FindAccountByCode(ctx context.Context, companyID, code string) (*domain.Account, error)
}

// AccountWriter defines write operations for general-ledger account data.
type AccountWriter interface {
	// SaveAccountInTx inserts a new account inside the caller's transaction.
	SaveAccountInTx(ctx context.Context, tx pgx.Tx, account domain.Account) error

	// FindAccountByCodeInTx retrieves an account by its company-unique code
	// inside the caller's transaction, so the read sees rows the transaction
	// itself inserted.
	FindAccountByCodeInTx(ctx context.Context, tx pgx.Tx, companyID, code string) (*domain.Account, error)

	// FindAccountsByIDsForUpdate locks the given accounts for the duration of tx
	// and returns them with their current balances.
	FindAccountsByIDsForUpdate(ctx context.Context, tx pgx.Tx, accountIDs []string) (map[string]domain.Account, error)

	// UpdateAccountBalancesInTx applies signed balance deltas atomically
	// (balance = balance + delta) inside the caller's transaction.
	UpdateAccountBalancesInTx(ctx context.Context, tx pgx.Tx, balanceChanges map[string]decimal.Decimal, updatedBy string, updatedAt time.Time) error
}

// AccountRepositoryFacade combines all account-related repository interfaces.
type AccountRepositoryFacade interface {
	AccountReader
	AccountWriter
}

// AccountRepositoryWithTx extends AccountRepositoryFacade with transaction capabilities.
type AccountRepositoryWithTx interface {
	AccountRepositoryFacade
	TransactionManager
}
