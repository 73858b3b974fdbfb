package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/apperrors"
	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
	portssvc "github.com/lexpraxis/legal_practice_app/internal/core/ports/services"
	"github.com/lexpraxis/legal_practice_app/internal/dto"
	"github.com/lexpraxis/legal_practice_app/internal/middleware"
)

var (
	ErrDuplicateRun    = errors.New("a payroll run already exists for this period")
	ErrNoEligibleStaff = errors.New("no active employees with a salary record")
	ErrMixedCurrencies = errors.New("payroll run cannot mix salary currencies")
	ErrWrongRunStatus  = errors.New("payroll run is not in the required status")
)

// Statutory deduction rates applied to gross salary.
var (
	taxRate       = decimal.RequireFromString("0.10")
	insuranceRate = decimal.RequireFromString("0.07")
	medicalRate   = decimal.RequireFromString("0.02")
)

// payrollService aggregates monthly payroll into payslips and one balanced GL
// entry, and owns the DRAFT -> HR_APPROVED -> ACC_APPROVED state machine.
type payrollService struct {
	BaseService
	payrollRepo portsrepo.PayrollRepositoryWithTx
	ledgerSvc   portssvc.LedgerSvcFacade
}

// NewPayrollService creates a new PayrollService.
func NewPayrollService(payrollRepo portsrepo.PayrollRepositoryWithTx, ledgerSvc portssvc.LedgerSvcFacade, authorizer portssvc.CompanyAuthorizerSvc) portssvc.PayrollSvcFacade {
	return &payrollService{
		BaseService: BaseService{CompanyAuthorizer: authorizer},
		payrollRepo: payrollRepo,
		ledgerSvc:   ledgerSvc,
	}
}

var _ portssvc.PayrollSvcFacade = (*payrollService)(nil)

// daysInMonth returns the calendar length of (year, month).
func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// computePayslip derives one employee's pay for the period.
func computePayslip(runID string, employee domain.Employee, salary domain.SalaryRecord, absentDays, year, month int, userID string, now time.Time) domain.Payslip {
	gross := salary.Amount

	daily := gross.Div(decimal.NewFromInt(int64(daysInMonth(year, month))))
	absence := daily.Mul(decimal.NewFromInt(int64(absentDays))).Round(2)
	tax := gross.Mul(taxRate).Round(2)
	insurance := gross.Mul(insuranceRate).Round(2)
	medical := gross.Mul(medicalRate).Round(2)

	// A fully absent month would push net below zero; the absence deduction
	// is capped at what remains after the statutory deductions so net never
	// goes negative and the run's cash credit stays valid.
	maxAbsence := gross.Sub(tax).Sub(insurance).Sub(medical)
	if absence.GreaterThan(maxAbsence) {
		absence = maxAbsence
	}
	net := gross.Sub(absence).Sub(tax).Sub(insurance).Sub(medical)

	return domain.Payslip{
		PayslipID:          uuid.NewString(),
		RunID:              runID,
		EmployeeID:         employee.EmployeeID,
		Gross:              gross,
		AbsenceDays:        absentDays,
		AbsenceDeduction:   absence,
		TaxDeduction:       tax,
		InsuranceDeduction: insurance,
		MedicalDeduction:   medical,
		Net:                net,
		CurrencyCode:       salary.CurrencyCode,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
}

// RunPayroll computes payslips for every active employee, persists the run,
// posts the aggregated GL entry and queues employee notifications, all in one
// database transaction. The (company, year, month) unique constraint closes
// the race between pre-check and insert.
func (s *payrollService) RunPayroll(ctx context.Context, companyID string, req dto.RunPayrollRequest, userID string) (*dto.PayrollRunResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleAdmin); err != nil {
		logger.Warn("Authorization failed for RunPayroll", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	if _, err := s.payrollRepo.FindRunByPeriod(ctx, companyID, req.Year, req.Month); err == nil {
		return nil, fmt.Errorf("%w: %w (%d-%02d)", apperrors.ErrDuplicate, ErrDuplicateRun, req.Year, req.Month)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing payroll run: %w", err)
	}

	employees, err := s.payrollRepo.ListActiveEmployees(ctx, companyID)
	if err != nil {
		logger.Error("Failed to list active employees", slog.String("error", err.Error()), slog.String("company_id", companyID))
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}

	now := time.Now().UTC()
	runID := uuid.NewString()
	payslips := make([]domain.Payslip, 0, len(employees))
	currencyCode := ""

	for _, employee := range employees {
		salary, err := s.payrollRepo.FindLatestSalary(ctx, employee.EmployeeID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				logger.Warn("Employee has no salary record, skipping", slog.String("employee_id", employee.EmployeeID))
				continue
			}
			return nil, fmt.Errorf("failed to find salary for employee %s: %w", employee.EmployeeID, err)
		}
		if currencyCode == "" {
			currencyCode = salary.CurrencyCode
		} else if currencyCode != salary.CurrencyCode {
			return nil, fmt.Errorf("%w: %w (%s vs %s)", apperrors.ErrValidation, ErrMixedCurrencies, currencyCode, salary.CurrencyCode)
		}

		absentDays, err := s.payrollRepo.CountAbsenceDays(ctx, employee.EmployeeID, req.Year, req.Month)
		if err != nil {
			return nil, fmt.Errorf("failed to count absence days for employee %s: %w", employee.EmployeeID, err)
		}

		payslips = append(payslips, computePayslip(runID, employee, *salary, absentDays, req.Year, req.Month, userID, now))
	}

	if len(payslips) == 0 {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrNoEligibleStaff)
	}

	totalGross := decimal.Zero
	totalNet := decimal.Zero
	totalAbsence := decimal.Zero
	totalTax := decimal.Zero
	totalInsurance := decimal.Zero
	totalMedical := decimal.Zero
	for _, p := range payslips {
		totalGross = totalGross.Add(p.Gross)
		totalNet = totalNet.Add(p.Net)
		totalAbsence = totalAbsence.Add(p.AbsenceDeduction)
		totalTax = totalTax.Add(p.TaxDeduction)
		totalInsurance = totalInsurance.Add(p.InsuranceDeduction)
		totalMedical = totalMedical.Add(p.MedicalDeduction)
	}

	tx, err := s.payrollRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.payrollRepo.Rollback(ctx, tx)
	}()

	run := domain.PayrollRun{
		RunID:        runID,
		CompanyID:    companyID,
		Year:         req.Year,
		Month:        req.Month,
		Status:       domain.PayrollDraft,
		CurrencyCode: currencyCode,
		TotalGross:   totalGross,
		TotalNet:     totalNet,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	if err := s.payrollRepo.SaveRunInTx(ctx, tx, run); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %w (%d-%02d)", apperrors.ErrDuplicate, ErrDuplicateRun, req.Year, req.Month)
		}
		logger.Error("Failed to save payroll run", slog.String("error", err.Error()), slog.String("run_id", runID))
		return nil, fmt.Errorf("failed to save payroll run: %w", err)
	}
	if err := s.payrollRepo.SavePayslipsInTx(ctx, tx, payslips); err != nil {
		logger.Error("Failed to save payslips", slog.String("error", err.Error()), slog.String("run_id", runID))
		return nil, fmt.Errorf("failed to save payslips: %w", err)
	}

	txn, err := s.postPayrollEntry(ctx, tx, companyID, run, totalAbsence, totalTax, totalInsurance, totalMedical, userID, now)
	if err != nil {
		return nil, err
	}
	run.TransactionID = &txn.TransactionID
	if err := s.payrollRepo.UpdateRunInTx(ctx, tx, run, userID, now); err != nil {
		return nil, fmt.Errorf("failed to link payroll run to ledger entry: %w", err)
	}

	notifications := make([]domain.Notification, 0, len(payslips))
	for _, p := range payslips {
		notifications = append(notifications, domain.Notification{
			NotificationID: uuid.NewString(),
			CompanyID:      companyID,
			EmployeeID:     p.EmployeeID,
			Message:        fmt.Sprintf("Your payslip for %d-%02d is ready: net %s %s", req.Year, req.Month, p.Net.String(), p.CurrencyCode),
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				CreatedBy:     userID,
				LastUpdatedAt: now,
				LastUpdatedBy: userID,
			},
		})
	}
	if err := s.payrollRepo.SaveNotificationsInTx(ctx, tx, notifications); err != nil {
		logger.Error("Failed to save payroll notifications", slog.String("error", err.Error()), slog.String("run_id", runID))
		return nil, fmt.Errorf("failed to save notifications: %w", err)
	}

	if err := s.payrollRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit payroll run: %w", err)
	}

	logger.Info("Payroll run created",
		slog.String("run_id", runID),
		slog.Int("payslips", len(payslips)),
		slog.String("total_gross", totalGross.String()),
		slog.String("total_net", totalNet.String()))

	resp := dto.ToPayrollRunResponse(&run, payslips)
	return &resp, nil
}

// postPayrollEntry books the aggregated run: debit salary expense for total
// gross; credit cash for total net, the statutory payables for their totals,
// and absence recovery for the withheld absence amount. Every account is
// provisioned on demand so no credit line is ever silently skipped.
func (s *payrollService) postPayrollEntry(ctx context.Context, tx pgx.Tx, companyID string, run domain.PayrollRun, totalAbsence, totalTax, totalInsurance, totalMedical decimal.Decimal, userID string, now time.Time) (*domain.Transaction, error) {
	type creditLine struct {
		code        string
		name        string
		accountType domain.AccountType
		amount      decimal.Decimal
	}
	credits := []creditLine{
		{domain.AccountCodeCash, "Cash", domain.Asset, run.TotalNet},
		{domain.AccountCodeTaxPayable, "Payroll tax payable", domain.Liability, totalTax},
		{domain.AccountCodeInsPayable, "Insurance payable", domain.Liability, totalInsurance},
		{domain.AccountCodeMedicalPayable, "Medical payable", domain.Liability, totalMedical},
		{domain.AccountCodeAbsenceRecovery, "Absence recovery", domain.Income, totalAbsence},
	}

	salaryExp, err := s.ledgerSvc.EnsureAccountInTx(ctx, tx, companyID, domain.AccountCodeSalaryExpense, "Salary expense", domain.ExpenseType, run.CurrencyCode, userID)
	if err != nil {
		return nil, err
	}
	lines := []dto.CreateTransactionLineRequest{
		{AccountID: salaryExp.AccountID, Debit: run.TotalGross, CurrencyCode: run.CurrencyCode},
	}
	for _, c := range credits {
		if !c.amount.IsPositive() {
			continue
		}
		account, err := s.ledgerSvc.EnsureAccountInTx(ctx, tx, companyID, c.code, c.name, c.accountType, run.CurrencyCode, userID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, dto.CreateTransactionLineRequest{AccountID: account.AccountID, Credit: c.amount, CurrencyCode: run.CurrencyCode})
	}

	glReq := dto.CreateTransactionRequest{
		Date:  now,
		Memo:  fmt.Sprintf("Payroll %d-%02d", run.Year, run.Month),
		Lines: lines,
	}
	txn, err := s.ledgerSvc.PostTransactionInTx(ctx, tx, companyID, glReq, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to post payroll ledger entry: %w", err)
	}
	return txn, nil
}

// loadRun fetches a run and verifies the tenant.
func (s *payrollService) loadRun(ctx context.Context, companyID, runID string) (*domain.PayrollRun, error) {
	run, err := s.payrollRepo.FindRunByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to find payroll run %s: %w", runID, err)
	}
	if run.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	return run, nil
}

// transition moves a run from one status to another inside a transaction.
func (s *payrollService) transition(ctx context.Context, companyID, runID, userID string, from, to domain.PayrollStatus) (*domain.PayrollRun, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleAdmin); err != nil {
		logger.Warn("Authorization failed for payroll transition", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	run, err := s.loadRun(ctx, companyID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != from {
		return nil, fmt.Errorf("%w: %w, status is %s, expected %s", apperrors.ErrConflict, ErrWrongRunStatus, run.Status, from)
	}

	tx, err := s.payrollRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.payrollRepo.Rollback(ctx, tx)
	}()

	now := time.Now().UTC()
	run.Status = to
	if err := s.payrollRepo.UpdateRunInTx(ctx, tx, *run, userID, now); err != nil {
		return nil, fmt.Errorf("failed to update payroll run status: %w", err)
	}
	if err := s.payrollRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit payroll status change: %w", err)
	}

	logger.Info("Payroll run transitioned", slog.String("run_id", runID), slog.String("from", string(from)), slog.String("to", string(to)))
	return run, nil
}

// ApproveHR moves DRAFT -> HR_APPROVED.
func (s *payrollService) ApproveHR(ctx context.Context, companyID, runID, userID string) (*domain.PayrollRun, error) {
	return s.transition(ctx, companyID, runID, userID, domain.PayrollDraft, domain.PayrollHRApproved)
}

// ApproveAccounting moves HR_APPROVED -> ACC_APPROVED.
func (s *payrollService) ApproveAccounting(ctx context.Context, companyID, runID, userID string) (*domain.PayrollRun, error) {
	return s.transition(ctx, companyID, runID, userID, domain.PayrollHRApproved, domain.PayrollAccApproved)
}

// ReverseRun reverses the run's GL entry and returns it to HR_APPROVED.
func (s *payrollService) ReverseRun(ctx context.Context, companyID, runID, userID string) (*domain.PayrollRun, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleAdmin); err != nil {
		logger.Warn("Authorization failed for ReverseRun", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	run, err := s.loadRun(ctx, companyID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.PayrollAccApproved {
		return nil, fmt.Errorf("%w: %w, status is %s, expected %s", apperrors.ErrConflict, ErrWrongRunStatus, run.Status, domain.PayrollAccApproved)
	}
	if run.TransactionID == nil {
		return nil, fmt.Errorf("%w: payroll run %s has no ledger entry to reverse", apperrors.ErrConflict, runID)
	}

	tx, err := s.payrollRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.payrollRepo.Rollback(ctx, tx)
	}()

	if _, err := s.ledgerSvc.ReverseTransactionInTx(ctx, tx, companyID, *run.TransactionID, userID); err != nil {
		logger.Error("Failed to reverse payroll ledger entry", slog.String("error", err.Error()), slog.String("run_id", runID))
		return nil, err
	}

	now := time.Now().UTC()
	run.Status = domain.PayrollHRApproved
	run.TransactionID = nil
	if err := s.payrollRepo.UpdateRunInTx(ctx, tx, *run, userID, now); err != nil {
		return nil, fmt.Errorf("failed to update payroll run after reversal: %w", err)
	}
	if err := s.payrollRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit payroll reversal: %w", err)
	}

	logger.Info("Payroll run reversed", slog.String("run_id", runID))
	return run, nil
}

// DeleteDraftRun rejects a DRAFT run: its GL entry is reversed and the run
// and payslips are removed, in one transaction.
func (s *payrollService) DeleteDraftRun(ctx context.Context, companyID, runID, userID string) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleAdmin); err != nil {
		logger.Warn("Authorization failed for DeleteDraftRun", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return err
	}

	run, err := s.loadRun(ctx, companyID, runID)
	if err != nil {
		return err
	}
	if run.Status != domain.PayrollDraft {
		return fmt.Errorf("%w: %w, status is %s, expected %s", apperrors.ErrConflict, ErrWrongRunStatus, run.Status, domain.PayrollDraft)
	}

	tx, err := s.payrollRepo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.payrollRepo.Rollback(ctx, tx)
	}()

	if run.TransactionID != nil {
		if _, err := s.ledgerSvc.ReverseTransactionInTx(ctx, tx, companyID, *run.TransactionID, userID); err != nil {
			logger.Error("Failed to reverse ledger entry of rejected run", slog.String("error", err.Error()), slog.String("run_id", runID))
			return err
		}
	}
	if err := s.payrollRepo.DeleteRunInTx(ctx, tx, runID); err != nil {
		return fmt.Errorf("failed to delete payroll run: %w", err)
	}
	if err := s.payrollRepo.Commit(ctx, tx); err != nil {
		return fmt.Errorf("failed to commit payroll deletion: %w", err)
	}

	logger.Info("Draft payroll run deleted", slog.String("run_id", runID))
	return nil
}

// GetRun retrieves a run with its payslips.
func (s *payrollService) GetRun(ctx context.Context, companyID, runID, userID string) (*dto.PayrollRunResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleReadOnly); err != nil {
		logger.Warn("Authorization failed for GetRun", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	run, err := s.loadRun(ctx, companyID, runID)
	if err != nil {
		return nil, err
	}
	payslips, err := s.payrollRepo.ListPayslipsByRunID(ctx, runID)
	if err != nil {
		logger.Error("Failed to list payslips", slog.String("error", err.Error()), slog.String("run_id", runID))
		return nil, fmt.Errorf("failed to list payslips: %w", err)
	}

	resp := dto.ToPayrollRunResponse(run, payslips)
	return &resp, nil
}
