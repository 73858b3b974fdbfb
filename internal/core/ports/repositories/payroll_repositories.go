package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// PayrollReader defines read operations for payroll data.
type PayrollReader interface {
	// FindRunByID retrieves a payroll run.
	FindRunByID(ctx context.Context, runID string) (*domain.PayrollRun, error)

	// FindRunByPeriod retrieves the run for (company, year, month), or
	// apperrors.ErrNotFound.
	FindRunByPeriod(ctx context.Context, companyID string, year, month int) (*domain.PayrollRun, error)

	// ListPayslipsByRunID retrieves all payslips of a run.
	ListPayslipsByRunID(ctx context.Context, runID string) ([]domain.Payslip, error)
}

// PayrollWriter defines write operations for payroll data.
type PayrollWriter interface {
	// SaveRunInTx inserts a payroll run. The (company, year, month) unique
	// constraint is enforced by the store; violations surface as
	// apperrors.ErrDuplicate.
	SaveRunInTx(ctx context.Context, tx pgx.Tx, run domain.PayrollRun) error

	// SavePayslipsInTx batch-inserts the payslips of a run.
	SavePayslipsInTx(ctx context.Context, tx pgx.Tx, payslips []domain.Payslip) error

	// UpdateRunInTx persists status, totals and GL transaction linkage.
	UpdateRunInTx(ctx context.Context, tx pgx.Tx, run domain.PayrollRun, updatedBy string, updatedAt time.Time) error

	// DeleteRunInTx removes a run and its payslips. Only DRAFT runs may be
	// deleted; the service enforces that.
	DeleteRunInTx(ctx context.Context, tx pgx.Tx, runID string) error
}

// EmployeeReader defines the read operations payroll needs about employees.
type EmployeeReader interface {
	// ListActiveEmployees retrieves all active employees of a company.
	ListActiveEmployees(ctx context.Context, companyID string) ([]domain.Employee, error)

	// FindLatestSalary retrieves the most recent salary record of an employee,
	// or apperrors.ErrNotFound when none exists.
	FindLatestSalary(ctx context.Context, employeeID string) (*domain.SalaryRecord, error)

	// CountAbsenceDays returns the number of recorded absence days for an
	// employee in the given month.
	CountAbsenceDays(ctx context.Context, employeeID string, year, month int) (int, error)
}

// NotificationWriter is the sink for persisted user notifications.
type NotificationWriter interface {
	// SaveNotificationsInTx batch-inserts notifications.
	SaveNotificationsInTx(ctx context.Context, tx pgx.Tx, notifications []domain.Notification) error
}

// PayrollRepositoryFacade combines all payroll-related repository interfaces.
type PayrollRepositoryFacade interface {
	PayrollReader
	PayrollWriter
	EmployeeReader
	NotificationWriter
}

// PayrollRepositoryWithTx extends PayrollRepositoryFacade with transaction capabilities.
type PayrollRepositoryWithTx interface {
	PayrollRepositoryFacade
	TransactionManager
}
