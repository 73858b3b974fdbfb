package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// ExpenseReader defines read operations for expense data.
type ExpenseReader interface {
	// FindExpenseByID retrieves an expense.
	FindExpenseByID(ctx context.Context, expenseID string) (*domain.Expense, error)

	// ListExpensesByProject retrieves a project's expenses, newest first.
	ListExpensesByProject(ctx context.Context, projectID string) ([]domain.Expense, error)
}

// ExpenseWriter defines write operations for expense data.
type ExpenseWriter interface {
	// SaveExpense inserts a new (unapproved) expense.
	SaveExpense(ctx context.Context, expense domain.Expense) error

	// MarkApprovedInTx flips approved from false to true with a guarded update.
	// A zero-row result means the expense was already approved (or missing) and
	// surfaces as apperrors.ErrConflict / apperrors.ErrNotFound.
	MarkApprovedInTx(ctx context.Context, tx pgx.Tx, expenseID, approvedBy string, approvedAt time.Time) error

	// LinkInvoiceInTx marks the expense invoiced and records the invoice ID.
	LinkInvoiceInTx(ctx context.Context, tx pgx.Tx, expenseID, invoiceID, updatedBy string, updatedAt time.Time) error
}

// ExpenseRepositoryFacade combines all expense-related repository interfaces.
type ExpenseRepositoryFacade interface {
	ExpenseReader
	ExpenseWriter
}

// ExpenseRepositoryWithTx extends ExpenseRepositoryFacade with transaction capabilities.
type ExpenseRepositoryWithTx interface {
	ExpenseRepositoryFacade
	TransactionManager
}
