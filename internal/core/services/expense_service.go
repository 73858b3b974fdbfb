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

// ErrAlreadyApproved means the expense already went through the one-way
// approval transition; approving twice is never allowed.
var ErrAlreadyApproved = errors.New("expense is already approved")

// expenseService owns the expense approval state machine. Approval consumes
// project advances, debits trust sub-ledgers, posts the GL entry and links
// the expense to the project's draft invoice, all in one database transaction.
type expenseService struct {
	BaseService
	expenseRepo portsrepo.ExpenseRepositoryWithTx
	clientRepo  portsrepo.ClientRepositoryFacade
	trustSvc    portssvc.TrustSvcFacade
	ledgerSvc   portssvc.LedgerSvcFacade
	invoiceSvc  portssvc.InvoiceSvcFacade
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(expenseRepo portsrepo.ExpenseRepositoryWithTx, clientRepo portsrepo.ClientRepositoryFacade, trustSvc portssvc.TrustSvcFacade, ledgerSvc portssvc.LedgerSvcFacade, invoiceSvc portssvc.InvoiceSvcFacade, authorizer portssvc.CompanyAuthorizerSvc) portssvc.ExpenseSvcFacade {
	return &expenseService{
		BaseService: BaseService{CompanyAuthorizer: authorizer},
		expenseRepo: expenseRepo,
		clientRepo:  clientRepo,
		trustSvc:    trustSvc,
		ledgerSvc:   ledgerSvc,
		invoiceSvc:  invoiceSvc,
	}
}

var _ portssvc.ExpenseSvcFacade = (*expenseService)(nil)

// CreateExpense records an unapproved expense against a project.
func (s *expenseService) CreateExpense(ctx context.Context, companyID string, req dto.CreateExpenseRequest, userID string) (*domain.Expense, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for CreateExpense", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrAmountNotPositive)
	}

	project, err := s.clientRepo.FindProjectByID(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project %s: %w", req.ProjectID, err)
	}
	if project.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}

	now := time.Now().UTC()
	expense := domain.Expense{
		ExpenseID:    uuid.NewString(),
		CompanyID:    companyID,
		ProjectID:    req.ProjectID,
		Description:  req.Description,
		Amount:       req.Amount,
		CurrencyCode: req.CurrencyCode,
		IncurredOn:   req.IncurredOn,
		Approved:     false,
		Invoiced:     false,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	if err := s.expenseRepo.SaveExpense(ctx, expense); err != nil {
		logger.Error("Failed to save expense", slog.String("error", err.Error()), slog.String("project_id", req.ProjectID))
		return nil, fmt.Errorf("failed to save expense: %w", err)
	}

	logger.Info("Expense recorded", slog.String("expense_id", expense.ExpenseID), slog.String("project_id", req.ProjectID))
	return &expense, nil
}

// GetExpense retrieves an expense.
func (s *expenseService) GetExpense(ctx context.Context, companyID, expenseID, userID string) (*domain.Expense, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleReadOnly); err != nil {
		logger.Warn("Authorization failed for GetExpense", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	expense, err := s.expenseRepo.FindExpenseByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to find expense %s: %w", expenseID, err)
	}
	if expense.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	return expense, nil
}

// ApproveExpense performs the one-way approval transition. The whole
// orchestration commits or rolls back as a unit: guarded flag flip, advance
// consumption, residual trust debit, GL posting and draft-invoice linking.
func (s *expenseService) ApproveExpense(ctx context.Context, companyID, expenseID, userID string) (*dto.ApproveExpenseResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for ApproveExpense", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	expense, err := s.expenseRepo.FindExpenseByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to find expense %s: %w", expenseID, err)
	}
	if expense.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	if expense.Approved {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConflict, ErrAlreadyApproved)
	}

	project, err := s.clientRepo.FindProjectByID(ctx, expense.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project %s: %w", expense.ProjectID, err)
	}

	tx, err := s.expenseRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.expenseRepo.Rollback(ctx, tx)
	}()

	now := time.Now().UTC()

	// The guarded update is the concurrency gate: a racing approval of the
	// same expense loses here with zero rows updated.
	if err := s.expenseRepo.MarkApprovedInTx(ctx, tx, expenseID, userID, now); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrConflict, ErrAlreadyApproved)
		}
		logger.Error("Failed to mark expense approved", slog.String("error", err.Error()), slog.String("expense_id", expenseID))
		return nil, fmt.Errorf("failed to mark expense approved: %w", err)
	}

	covered, residual, err := s.trustSvc.ConsumeAdvanceInTx(ctx, tx, companyID, expense.ProjectID, expense.CurrencyCode, expense.Amount, userID)
	if err != nil {
		logger.Error("Failed to consume advances for expense", slog.String("error", err.Error()), slog.String("expense_id", expenseID))
		return nil, err
	}

	if residual.IsPositive() {
		// The firm fronts the uncovered part; the expense float may overdraft.
		if _, err := s.trustSvc.DebitInTx(ctx, tx, companyID, project.ClientID, &expense.ProjectID, expense.CurrencyCode, domain.ExpenseKind, residual,
			fmt.Sprintf("Residual for expense %s", expenseID), userID, nil); err != nil {
			return nil, err
		}
	}

	if err := s.postApprovalEntry(ctx, tx, companyID, expense, covered, residual, userID, now); err != nil {
		return nil, err
	}

	invoiceID, err := s.invoiceSvc.AttachExpenseInTx(ctx, tx, companyID, *expense, userID)
	if err != nil {
		logger.Error("Failed to attach expense to draft invoice", slog.String("error", err.Error()), slog.String("expense_id", expenseID))
		return nil, err
	}
	if err := s.expenseRepo.LinkInvoiceInTx(ctx, tx, expenseID, invoiceID, userID, now); err != nil {
		logger.Error("Failed to link expense to invoice", slog.String("error", err.Error()), slog.String("expense_id", expenseID))
		return nil, fmt.Errorf("failed to link expense to invoice: %w", err)
	}

	if err := s.expenseRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit expense approval: %w", err)
	}

	logger.Info("Expense approved",
		slog.String("expense_id", expenseID),
		slog.String("covered", covered.String()),
		slog.String("residual", residual.String()),
		slog.String("invoice_id", invoiceID))
	return &dto.ApproveExpenseResponse{
		ExpenseID: expenseID,
		Covered:   covered,
		Residual:  residual,
		InvoiceID: invoiceID,
	}, nil
}

// postApprovalEntry books the expense into the GL: the full amount goes to
// work-in-progress; the advance-covered part releases client funds and the
// residual accrues as payable the firm has fronted.
func (s *expenseService) postApprovalEntry(ctx context.Context, tx pgx.Tx, companyID string, expense *domain.Expense, covered, residual decimal.Decimal, userID string, now time.Time) error {
	wip, err := s.ledgerSvc.EnsureAccountInTx(ctx, tx, companyID, domain.AccountCodeWIP, "Work in progress", domain.Asset, expense.CurrencyCode, userID)
	if err != nil {
		return err
	}

	lines := []dto.CreateTransactionLineRequest{
		{AccountID: wip.AccountID, Debit: expense.Amount, CurrencyCode: expense.CurrencyCode, Memo: expense.Description},
	}
	if covered.IsPositive() {
		clientFunds, err := s.ledgerSvc.EnsureAccountInTx(ctx, tx, companyID, domain.AccountCodeClientFunds, "Client funds held", domain.Liability, expense.CurrencyCode, userID)
		if err != nil {
			return err
		}
		lines = append(lines, dto.CreateTransactionLineRequest{AccountID: clientFunds.AccountID, Credit: covered, CurrencyCode: expense.CurrencyCode})
	}
	if residual.IsPositive() {
		payable, err := s.ledgerSvc.EnsureAccountInTx(ctx, tx, companyID, domain.AccountCodeExpensePayable, "Expenses payable", domain.Liability, expense.CurrencyCode, userID)
		if err != nil {
			return err
		}
		lines = append(lines, dto.CreateTransactionLineRequest{AccountID: payable.AccountID, Credit: residual, CurrencyCode: expense.CurrencyCode})
	}

	glReq := dto.CreateTransactionRequest{
		Date:  now,
		Memo:  fmt.Sprintf("Approval of expense %s", expense.ExpenseID),
		Lines: lines,
	}
	if _, err := s.ledgerSvc.PostTransactionInTx(ctx, tx, companyID, glReq, userID); err != nil {
		return fmt.Errorf("failed to post ledger entry for expense approval: %w", err)
	}
	return nil
}
