package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexpraxis/legal_practice_app/internal/apperrors"
	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
)

const payrollRunColumns = `run_id, company_id, year, month, status, currency_code, total_gross, total_net, transaction_id, created_at, created_by, last_updated_at, last_updated_by`

const payslipColumns = `payslip_id, run_id, employee_id, gross, absence_days, absence_deduction, tax_deduction, insurance_deduction, medical_deduction, net, currency_code, created_at, created_by, last_updated_at, last_updated_by`

type PgxPayrollRepository struct {
	BaseRepository
}

// newPgxPayrollRepository creates a new repository for payroll data.
func newPgxPayrollRepository(pool *pgxpool.Pool) portsrepo.PayrollRepositoryWithTx {
	return &PgxPayrollRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.PayrollRepositoryWithTx = (*PgxPayrollRepository)(nil)

func scanPayrollRun(row pgx.Row) (*domain.PayrollRun, error) {
	var run domain.PayrollRun
	err := row.Scan(
		&run.RunID,
		&run.CompanyID,
		&run.Year,
		&run.Month,
		&run.Status,
		&run.CurrencyCode,
		&run.TotalGross,
		&run.TotalNet,
		&run.TransactionID,
		&run.CreatedAt,
		&run.CreatedBy,
		&run.LastUpdatedAt,
		&run.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan payroll run row: %w", err)
	}
	return &run, nil
}

// FindRunByID retrieves a payroll run.
func (r *PgxPayrollRepository) FindRunByID(ctx context.Context, runID string) (*domain.PayrollRun, error) {
	query := `SELECT ` + payrollRunColumns + ` FROM payroll_runs WHERE run_id = $1;`
	return scanPayrollRun(r.Pool.QueryRow(ctx, query, runID))
}

// FindRunByPeriod retrieves the run for (company, year, month).
func (r *PgxPayrollRepository) FindRunByPeriod(ctx context.Context, companyID string, year, month int) (*domain.PayrollRun, error) {
	query := `SELECT ` + payrollRunColumns + ` FROM payroll_runs WHERE company_id = $1 AND year = $2 AND month = $3;`
	return scanPayrollRun(r.Pool.QueryRow(ctx, query, companyID, year, month))
}

// ListPayslipsByRunID retrieves all payslips of a run.
func (r *PgxPayrollRepository) ListPayslipsByRunID(ctx context.Context, runID string) ([]domain.Payslip, error) {
	query := `
		SELECT ` + payslipColumns + `
		FROM payslips
		WHERE run_id = $1
		ORDER BY created_at, payslip_id;
	`
	rows, err := r.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payslips for run %s: %w", runID, err)
	}
	defer rows.Close()

	payslips := []domain.Payslip{}
	for rows.Next() {
		var p domain.Payslip
		err := rows.Scan(
			&p.PayslipID,
			&p.RunID,
			&p.EmployeeID,
			&p.Gross,
			&p.AbsenceDays,
			&p.AbsenceDeduction,
			&p.TaxDeduction,
			&p.InsuranceDeduction,
			&p.MedicalDeduction,
			&p.Net,
			&p.CurrencyCode,
			&p.CreatedAt,
			&p.CreatedBy,
			&p.LastUpdatedAt,
			&p.LastUpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payslip row: %w", err)
		}
		payslips = append(payslips, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payslip rows: %w", err)
	}
	return payslips, nil
}

// SaveRunInTx inserts a payroll run. The unique constraint on
// (company_id, year, month) is the final arbiter for concurrent runs of the
// same period.
func (r *PgxPayrollRepository) SaveRunInTx(ctx context.Context, tx pgx.Tx, run domain.PayrollRun) error {
	query := `
		INSERT INTO payroll_runs (` + payrollRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`
	_, err := tx.Exec(ctx, query,
		run.RunID,
		run.CompanyID,
		run.Year,
		run.Month,
		run.Status,
		run.CurrencyCode,
		run.TotalGross,
		run.TotalNet,
		run.TransactionID,
		run.CreatedAt,
		run.CreatedBy,
		run.LastUpdatedAt,
		run.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: payroll run for %d-%02d already exists for company %s", apperrors.ErrDuplicate, run.Year, run.Month, run.CompanyID)
		}
		return fmt.Errorf("failed to save payroll run %s: %w", run.RunID, err)
	}
	return nil
}

// SavePayslipsInTx batch-inserts the payslips of a run.
func (r *PgxPayrollRepository) SavePayslipsInTx(ctx context.Context, tx pgx.Tx, payslips []domain.Payslip) error {
	if len(payslips) == 0 {
		return nil
	}
	query := `
		INSERT INTO payslips (` + payslipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
	`
	batch := &pgx.Batch{}
	for _, p := range payslips {
		batch.Queue(query,
			p.PayslipID,
			p.RunID,
			p.EmployeeID,
			p.Gross,
			p.AbsenceDays,
			p.AbsenceDeduction,
			p.TaxDeduction,
			p.InsuranceDeduction,
			p.MedicalDeduction,
			p.Net,
			p.CurrencyCode,
			p.CreatedAt,
			p.CreatedBy,
			p.LastUpdatedAt,
			p.LastUpdatedBy,
		)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := range payslips {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save payslip %s: %w", payslips[i].PayslipID, err)
		}
	}
	return nil
}

// UpdateRunInTx persists status, totals and GL transaction linkage.
func (r *PgxPayrollRepository) UpdateRunInTx(ctx context.Context, tx pgx.Tx, run domain.PayrollRun, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE payroll_runs
		SET status = $2, total_gross = $3, total_net = $4, transaction_id = $5,
		    last_updated_at = $6, last_updated_by = $7
		WHERE run_id = $1;
	`
	tag, err := tx.Exec(ctx, query,
		run.RunID,
		run.Status,
		run.TotalGross,
		run.TotalNet,
		run.TransactionID,
		updatedAt,
		updatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll run %s: %w", run.RunID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteRunInTx removes a run and its payslips.
func (r *PgxPayrollRepository) DeleteRunInTx(ctx context.Context, tx pgx.Tx, runID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM payslips WHERE run_id = $1;`, runID); err != nil {
		return fmt.Errorf("failed to delete payslips for run %s: %w", runID, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM payroll_runs WHERE run_id = $1;`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete payroll run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListActiveEmployees retrieves all active employees of a company.
func (r *PgxPayrollRepository) ListActiveEmployees(ctx context.Context, companyID string) ([]domain.Employee, error) {
	query := `
		SELECT employee_id, company_id, user_id, name, is_active,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM employees
		WHERE company_id = $1 AND is_active = TRUE
		ORDER BY name, employee_id;
	`
	rows, err := r.Pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active employees for company %s: %w", companyID, err)
	}
	defer rows.Close()

	employees := []domain.Employee{}
	for rows.Next() {
		var e domain.Employee
		err := rows.Scan(
			&e.EmployeeID,
			&e.CompanyID,
			&e.UserID,
			&e.Name,
			&e.IsActive,
			&e.CreatedAt,
			&e.CreatedBy,
			&e.LastUpdatedAt,
			&e.LastUpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee row: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employee rows: %w", err)
	}
	return employees, nil
}

// FindLatestSalary retrieves the most recent salary record of an employee.
func (r *PgxPayrollRepository) FindLatestSalary(ctx context.Context, employeeID string) (*domain.SalaryRecord, error) {
	query := `
		SELECT salary_id, employee_id, amount, currency_code, effective_from,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM salary_records
		WHERE employee_id = $1
		ORDER BY effective_from DESC
		LIMIT 1;
	`
	var s domain.SalaryRecord
	err := r.Pool.QueryRow(ctx, query, employeeID).Scan(
		&s.SalaryID,
		&s.EmployeeID,
		&s.Amount,
		&s.CurrencyCode,
		&s.EffectiveFrom,
		&s.CreatedAt,
		&s.CreatedBy,
		&s.LastUpdatedAt,
		&s.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find latest salary for employee %s: %w", employeeID, err)
	}
	return &s, nil
}

// CountAbsenceDays returns the distinct recorded absence days of an employee
// in the given month.
func (r *PgxPayrollRepository) CountAbsenceDays(ctx context.Context, employeeID string, year, month int) (int, error) {
	query := `
		SELECT COUNT(DISTINCT absent_on)
		FROM absences
		WHERE employee_id = $1
		  AND EXTRACT(YEAR FROM absent_on) = $2
		  AND EXTRACT(MONTH FROM absent_on) = $3;
	`
	var count int
	if err := r.Pool.QueryRow(ctx, query, employeeID, year, month).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count absence days for employee %s: %w", employeeID, err)
	}
	return count, nil
}

// SaveNotificationsInTx batch-inserts notifications.
func (r *PgxPayrollRepository) SaveNotificationsInTx(ctx context.Context, tx pgx.Tx, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	query := `
		INSERT INTO notifications (
			notification_id, company_id, employee_id, message, read,
			created_at, created_by, last_updated_at, last_updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	batch := &pgx.Batch{}
	for _, n := range notifications {
		batch.Queue(query,
			n.NotificationID,
			n.CompanyID,
			n.EmployeeID,
			n.Message,
			n.Read,
			n.CreatedAt,
			n.CreatedBy,
			n.LastUpdatedAt,
			n.LastUpdatedBy,
		)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := range notifications {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save notification %s: %w", notifications[i].NotificationID, err)
		}
	}
	return nil
}
