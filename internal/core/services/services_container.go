package services

import (
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
	portssvc "github.com/lexpraxis/legal_practice_app/internal/core/ports/services"
	"github.com/lexpraxis/legal_practice_app/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	// The authorizer comes first since every other service depends on it.
	container.Company = NewCompanyService(repos.CompanyRepo)

	container.Conversion = NewConversionService(repos.ExchangeRateRepo)
	container.Ledger = NewLedgerService(repos.AccountRepo, repos.TransactionRepo, container.Company)
	container.Trust = NewTrustService(repos.TrustRepo, repos.ClientRepo, container.Ledger, container.Conversion, container.Company)
	container.Invoice = NewInvoiceService(repos.InvoiceRepo, repos.ClientRepo, repos.TrustRepo, container.Trust, container.Ledger, container.Conversion, container.Company)
	container.Expense = NewExpenseService(repos.ExpenseRepo, repos.ClientRepo, container.Trust, container.Ledger, container.Invoice, container.Company)
	container.Payroll = NewPayrollService(repos.PayrollRepo, container.Ledger, container.Company)
	container.Auth = NewAuthService(repos.UserRepo, cfg)

	return container
}
