// Package services defines the facades the HTTP layer (and other services)
// consume. Implementations live in internal/core/services.
package services

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	"github.com/lexpraxis/legal_practice_app/internal/dto"
)

// LedgerSvcFacade posts and reads balanced general-ledger transactions.
type LedgerSvcFacade interface {
	// PostTransaction validates and atomically persists a balanced transaction.
	PostTransaction(ctx context.Context, companyID string, req dto.CreateTransactionRequest, createdBy string) (*domain.Transaction, error)

	// PostTransactionInTx is PostTransaction running inside the caller's
	// database transaction, for operations that must commit a trust-ledger
	// mutation and its GL entry as one unit.
	PostTransactionInTx(ctx context.Context, tx pgx.Tx, companyID string, req dto.CreateTransactionRequest, createdBy string) (*domain.Transaction, error)

	// GetTransaction retrieves a transaction with its lines.
	GetTransaction(ctx context.Context, companyID, transactionID, requestingUserID string) (*domain.Transaction, error)

	// ReverseTransaction posts a mirror-image entry and marks the original REVERSED.
	ReverseTransaction(ctx context.Context, companyID, transactionID, userID string) (*domain.Transaction, error)

	// ReverseTransactionInTx is ReverseTransaction inside the caller's database transaction.
	ReverseTransactionInTx(ctx context.Context, tx pgx.Tx, companyID, transactionID, userID string) (*domain.Transaction, error)

	// ListTransactionLinesByAccount pages through lines posted against an account.
	ListTransactionLinesByAccount(ctx context.Context, companyID, accountID, userID string, params dto.ListTransactionLinesParams) (*dto.ListTransactionLinesResponse, error)

	// EnsureAccountInTx finds an account by company-unique code, creating it
	// (with the given type/currency) when absent.
	EnsureAccountInTx(ctx context.Context, tx pgx.Tx, companyID, code, name string, accountType domain.AccountType, currencyCode, userID string) (*domain.Account, error)
}

// ConversionSvcFacade converts monetary amounts between currencies.
type ConversionSvcFacade interface {
	// Convert returns amount expressed in the target currency. Returns the
	// amount unchanged when from == to; fails with ErrConversionUnavailable
	// when no stored rate or static fallback covers the pair.
	Convert(ctx context.Context, amount decimal.Decimal, fromCurrencyCode, toCurrencyCode string) (decimal.Decimal, error)
}

// TrustSvcFacade manages trust/expense sub-ledgers and advance consumption.
type TrustSvcFacade interface {
	// AddAdvance records an advance payment, credits the matching sub-ledger
	// and posts the GL entry, all in one database transaction.
	AddAdvance(ctx context.Context, companyID string, req dto.AddAdvanceRequest, userID string) (*domain.AdvancePayment, error)

	// Credit appends a CREDIT trust transaction (account created lazily).
	Credit(ctx context.Context, companyID string, req dto.TrustAdjustmentRequest, userID string) (*domain.TrustAccount, error)

	// Debit appends a DEBIT trust transaction. TRUST-kind accounts must not go
	// negative; EXPENSE-kind accounts may overdraft.
	Debit(ctx context.Context, companyID string, req dto.TrustAdjustmentRequest, userID string) (*domain.TrustAccount, error)

	// Balance returns the authoritative balance, derived from the transaction log.
	Balance(ctx context.Context, companyID, trustAccountID, userID string) (*dto.TrustBalanceResponse, error)

	// ConsumeAdvanceInTx greedily covers expenseAmount from the project's
	// outstanding advances inside the caller's database transaction, returning
	// (covered, residual) in the expense currency.
	ConsumeAdvanceInTx(ctx context.Context, tx pgx.Tx, companyID, projectID, expenseCurrency string, expenseAmount decimal.Decimal, userID string) (covered, residual decimal.Decimal, err error)

	// DebitInTx appends a DEBIT inside the caller's transaction against the
	// sub-ledger for key, creating the account when absent.
	DebitInTx(ctx context.Context, tx pgx.Tx, companyID, clientID string, projectID *string, currencyCode string, kind domain.TrustAccountKind, amount decimal.Decimal, description, userID string, invoiceID *string) (*domain.TrustAccount, error)
}

// ExpenseSvcFacade owns the expense approval state machine.
type ExpenseSvcFacade interface {
	// CreateExpense records an unapproved expense.
	CreateExpense(ctx context.Context, companyID string, req dto.CreateExpenseRequest, userID string) (*domain.Expense, error)

	// ApproveExpense performs the one-way ACTIVE -> APPROVED transition:
	// advance consumption, trust debits, GL posting and draft-invoice linking,
	// atomically.
	ApproveExpense(ctx context.Context, companyID, expenseID, userID string) (*dto.ApproveExpenseResponse, error)

	// GetExpense retrieves an expense.
	GetExpense(ctx context.Context, companyID, expenseID, userID string) (*domain.Expense, error)
}

// InvoiceSvcFacade keeps invoice totals consistent and applies trust payments.
type InvoiceSvcFacade interface {
	// CreateInvoice opens a DRAFT invoice with a fresh sequential number.
	CreateInvoice(ctx context.Context, companyID string, req dto.CreateInvoiceRequest, userID string) (*domain.Invoice, error)

	// GetInvoice retrieves an invoice with items.
	GetInvoice(ctx context.Context, companyID, invoiceID, userID string) (*domain.Invoice, error)

	// UpsertItem adds or updates a line (idempotent per itemType+refID) and
	// recalculates totals.
	UpsertItem(ctx context.Context, companyID, invoiceID string, req dto.UpsertInvoiceItemRequest, userID string) (*domain.Invoice, error)

	// RemoveItem deletes a line and recalculates totals.
	RemoveItem(ctx context.Context, companyID, invoiceID, itemID, userID string) (*domain.Invoice, error)

	// UpdateTerms changes discount/tax and recalculates totals.
	UpdateTerms(ctx context.Context, companyID, invoiceID string, req dto.UpdateInvoiceTermsRequest, userID string) (*domain.Invoice, error)

	// ChangeCurrency converts every item's unit price to the new currency and
	// recalculates totals.
	ChangeCurrency(ctx context.Context, companyID, invoiceID string, req dto.ChangeInvoiceCurrencyRequest, userID string) (*domain.Invoice, error)

	// ApplyTrustPayment debits the client's trust accounts (project-scoped
	// first) up to the requested amount, records a payment and moves the
	// invoice to PAID or SENT.
	ApplyTrustPayment(ctx context.Context, companyID, invoiceID string, req dto.TrustPaymentRequest, userID string) (*dto.TrustPaymentResponse, error)

	// AttachExpenseInTx links an approved expense to the project's draft
	// invoice (created when absent) inside the caller's transaction and
	// returns the invoice ID. Idempotent per expense.
	AttachExpenseInTx(ctx context.Context, tx pgx.Tx, companyID string, expense domain.Expense, userID string) (string, error)
}

// PayrollSvcFacade aggregates monthly payroll and owns the batch state machine.
type PayrollSvcFacade interface {
	// RunPayroll computes payslips for (year, month), posts the aggregated GL
	// entry and notifies employees. Fails with ErrDuplicateRun when a run for
	// the period already exists.
	RunPayroll(ctx context.Context, companyID string, req dto.RunPayrollRequest, userID string) (*dto.PayrollRunResponse, error)

	// ApproveHR moves DRAFT -> HR_APPROVED.
	ApproveHR(ctx context.Context, companyID, runID, userID string) (*domain.PayrollRun, error)

	// ApproveAccounting moves HR_APPROVED -> ACC_APPROVED.
	ApproveAccounting(ctx context.Context, companyID, runID, userID string) (*domain.PayrollRun, error)

	// ReverseRun reverses the GL entry of an ACC_APPROVED run and returns the
	// run to HR_APPROVED.
	ReverseRun(ctx context.Context, companyID, runID, userID string) (*domain.PayrollRun, error)

	// DeleteDraftRun deletes a DRAFT run outright.
	DeleteDraftRun(ctx context.Context, companyID, runID, userID string) error

	// GetRun retrieves a run with its payslips.
	GetRun(ctx context.Context, companyID, runID, userID string) (*dto.PayrollRunResponse, error)
}

// CompanyAuthorizerSvc checks company membership roles.
type CompanyAuthorizerSvc interface {
	// AuthorizeUserAction verifies the user holds at least requiredRole in the
	// company; ErrNotFound for non-members, ErrForbidden for insufficient role.
	AuthorizeUserAction(ctx context.Context, userID, companyID string, requiredRole domain.UserCompanyRole) error
}

// AuthSvcFacade authenticates users and issues bearer tokens.
type AuthSvcFacade interface {
	// Login verifies credentials and returns a signed JWT.
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)

	// Register creates a new user with a bcrypt-hashed password.
	// ErrDuplicate when the email is already registered.
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error)
}
