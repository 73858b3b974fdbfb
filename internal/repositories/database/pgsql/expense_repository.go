package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexpraxis/legal_practice_app/internal/apperrors"
	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
)

const expenseColumns = `expense_id, company_id, project_id, description, amount, currency_code, incurred_on, approved, approved_at, approved_by, invoiced, invoice_id, created_at, created_by, last_updated_at, last_updated_by`

type PgxExpenseRepository struct {
	BaseRepository
}

// newPgxExpenseRepository creates a new repository for expense data.
func newPgxExpenseRepository(pool *pgxpool.Pool) portsrepo.ExpenseRepositoryWithTx {
	return &PgxExpenseRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ExpenseRepositoryWithTx = (*PgxExpenseRepository)(nil)

func scanExpense(row pgx.Row) (*domain.Expense, error) {
	var e domain.Expense
	err := row.Scan(
		&e.ExpenseID,
		&e.CompanyID,
		&e.ProjectID,
		&e.Description,
		&e.Amount,
		&e.CurrencyCode,
		&e.IncurredOn,
		&e.Approved,
		&e.ApprovedAt,
		&e.ApprovedBy,
		&e.Invoiced,
		&e.InvoiceID,
		&e.CreatedAt,
		&e.CreatedBy,
		&e.LastUpdatedAt,
		&e.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan expense row: %w", err)
	}
	return &e, nil
}

// FindExpenseByID retrieves an expense.
func (r *PgxExpenseRepository) FindExpenseByID(ctx context.Context, expenseID string) (*domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE expense_id = $1;`
	return scanExpense(r.Pool.QueryRow(ctx, query, expenseID))
}

// ListExpensesByProject retrieves a project's expenses, newest first.
func (r *PgxExpenseRepository) ListExpensesByProject(ctx context.Context, projectID string) ([]domain.Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses
		WHERE project_id = $1
		ORDER BY incurred_on DESC, created_at DESC;
	`
	rows, err := r.Pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses for project %s: %w", projectID, err)
	}
	defer rows.Close()

	expenses := []domain.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expense rows: %w", err)
	}
	return expenses, nil
}

// SaveExpense inserts a new expense.
func (r *PgxExpenseRepository) SaveExpense(ctx context.Context, expense domain.Expense) error {
	query := `
		INSERT INTO expenses (` + expenseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
	`
	_, err := r.Pool.Exec(ctx, query,
		expense.ExpenseID,
		expense.CompanyID,
		expense.ProjectID,
		expense.Description,
		expense.Amount,
		expense.CurrencyCode,
		expense.IncurredOn,
		expense.Approved,
		expense.ApprovedAt,
		expense.ApprovedBy,
		expense.Invoiced,
		expense.InvoiceID,
		expense.CreatedAt,
		expense.CreatedBy,
		expense.LastUpdatedAt,
		expense.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save expense %s: %w", expense.ExpenseID, err)
	}
	return nil
}

// MarkApprovedInTx flips approved from false to true. The guard in the WHERE
// clause makes a racing second approval lose with zero rows updated.
func (r *PgxExpenseRepository) MarkApprovedInTx(ctx context.Context, tx pgx.Tx, expenseID, approvedBy string, approvedAt time.Time) error {
	query := `
		UPDATE expenses
		SET approved = TRUE, approved_at = $2, approved_by = $3,
		    last_updated_at = $2, last_updated_by = $3
		WHERE expense_id = $1 AND approved = FALSE;
	`
	tag, err := tx.Exec(ctx, query, expenseID, approvedAt, approvedBy)
	if err != nil {
		return fmt.Errorf("failed to mark expense %s approved: %w", expenseID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM expenses WHERE expense_id = $1);`, expenseID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check expense %s existence: %w", expenseID, err)
		}
		if !exists {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("%w: expense %s is already approved", apperrors.ErrConflict, expenseID)
	}
	return nil
}

// LinkInvoiceInTx marks the expense invoiced and records the invoice ID.
func (r *PgxExpenseRepository) LinkInvoiceInTx(ctx context.Context, tx pgx.Tx, expenseID, invoiceID, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE expenses
		SET invoiced = TRUE, invoice_id = $2, last_updated_at = $3, last_updated_by = $4
		WHERE expense_id = $1;
	`
	tag, err := tx.Exec(ctx, query, expenseID, invoiceID, updatedAt, updatedBy)
	if err != nil {
		return fmt.Errorf("failed to link expense %s to invoice %s: %w", expenseID, invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
