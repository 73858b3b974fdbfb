package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"

	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
)

// NewRepositoryProvider wires every pgsql repository onto the shared pool and
// returns them behind their port interfaces.
func NewRepositoryProvider(pool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		AccountRepo:      newPgxAccountRepository(pool),
		TransactionRepo:  newPgxTransactionRepository(pool),
		TrustRepo:        newPgxTrustRepository(pool),
		ExpenseRepo:      newPgxExpenseRepository(pool),
		InvoiceRepo:      newPgxInvoiceRepository(pool),
		PayrollRepo:      newPgxPayrollRepository(pool),
		ExchangeRateRepo: newPgxExchangeRateRepository(pool),
		ClientRepo:       newPgxClientRepository(pool),
		CompanyRepo:      newPgxCompanyRepository(pool),
		UserRepo:         newPgxUserRepository(pool),
	}
}
