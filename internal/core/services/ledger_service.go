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
	"github.com/lexpraxis/legal_practice_app/internal/utils/accounting"
)

var (
	ErrLedgerImbalance   = errors.New("transaction lines do not balance per currency")
	ErrLedgerMinLines    = errors.New("transaction must have at least two lines")
	ErrLedgerMinAccounts = errors.New("transaction must affect at least two different accounts")
	ErrAccountNotFound   = errors.New("account not found")
	ErrMemoMissing       = errors.New("transaction memo is required")
	ErrNotPosted         = errors.New("transaction must be in POSTED status")
)

// ledgerService posts balanced double-entry transactions and maintains the
// cached account balances in the same database transaction.
type ledgerService struct {
	BaseService
	accountRepo     portsrepo.AccountRepositoryWithTx
	transactionRepo portsrepo.TransactionRepositoryWithTx
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(accountRepo portsrepo.AccountRepositoryWithTx, transactionRepo portsrepo.TransactionRepositoryWithTx, authorizer portssvc.CompanyAuthorizerSvc) portssvc.LedgerSvcFacade {
	return &ledgerService{
		BaseService:     BaseService{CompanyAuthorizer: authorizer},
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
	}
}

var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

// buildLines converts request lines to domain lines with fresh IDs and audit fields.
func buildLines(req dto.CreateTransactionRequest, transactionID, userID string, now time.Time) []domain.TransactionLine {
	lines := make([]domain.TransactionLine, len(req.Lines))
	for i, lr := range req.Lines {
		lines[i] = domain.TransactionLine{
			LineID:        uuid.NewString(),
			TransactionID: transactionID,
			AccountID:     lr.AccountID,
			Debit:         lr.Debit,
			Credit:        lr.Credit,
			CurrencyCode:  lr.CurrencyCode,
			Memo:          lr.Memo,
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				CreatedBy:     userID,
				LastUpdatedAt: now,
				LastUpdatedBy: userID,
			},
		}
	}
	return lines
}

// validateLines runs the structural and balance checks on a prepared line set.
func (s *ledgerService) validateLines(lines []domain.TransactionLine) error {
	if len(lines) < 2 {
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrLedgerMinLines)
	}
	accountSet := make(map[string]bool, len(lines))
	for _, line := range lines {
		if err := accounting.ValidateLine(line); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		accountSet[line.AccountID] = true
	}
	if len(accountSet) < 2 {
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrLedgerMinAccounts)
	}
	if imbalance := accounting.FindImbalance(lines); imbalance != nil {
		return fmt.Errorf("%w: %w: currency %s is off by %s (debits %s, credits %s)",
			apperrors.ErrValidation, ErrLedgerImbalance, imbalance.CurrencyCode, imbalance.Delta().String(),
			imbalance.Debits.String(), imbalance.Credits.String())
	}
	return nil
}

// PostTransaction validates and atomically persists a balanced transaction.
func (s *ledgerService) PostTransaction(ctx context.Context, companyID string, req dto.CreateTransactionRequest, createdBy string) (*domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, createdBy, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for PostTransaction", slog.String("user_id", createdBy), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	tx, err := s.transactionRepo.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction for posting", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.transactionRepo.Rollback(ctx, tx)
	}()

	txn, err := s.postInTx(ctx, tx, companyID, req, createdBy)
	if err != nil {
		return nil, err
	}

	if err := s.transactionRepo.Commit(ctx, tx); err != nil {
		logger.Error("Failed to commit posted transaction", slog.String("error", err.Error()), slog.String("transaction_id", txn.TransactionID))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Info("Transaction posted successfully", slog.String("transaction_id", txn.TransactionID), slog.String("company_id", companyID))
	return txn, nil
}

// PostTransactionInTx posts inside the caller's database transaction. The
// caller has already authorized the acting user.
func (s *ledgerService) PostTransactionInTx(ctx context.Context, tx pgx.Tx, companyID string, req dto.CreateTransactionRequest, createdBy string) (*domain.Transaction, error) {
	return s.postInTx(ctx, tx, companyID, req, createdBy)
}

// postInTx is the shared posting path: validate, lock accounts, persist the
// header and lines, and apply cached balance deltas, all on the supplied tx.
func (s *ledgerService) postInTx(ctx context.Context, tx pgx.Tx, companyID string, req dto.CreateTransactionRequest, createdBy string) (*domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if req.Memo == "" {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrMemoMissing)
	}

	now := time.Now().UTC()
	transactionID := uuid.NewString()
	lines := buildLines(req, transactionID, createdBy, now)

	if err := s.validateLines(lines); err != nil {
		return nil, err
	}

	accountIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		accountIDs = append(accountIDs, line.AccountID)
	}
	accountIDs = uniqueStrings(accountIDs)

	accounts, err := s.accountRepo.FindAccountsByIDsForUpdate(ctx, tx, accountIDs)
	if err != nil {
		logger.Error("Failed to lock accounts for posting", slog.String("error", err.Error()), slog.String("company_id", companyID))
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}

	for _, id := range accountIDs {
		acc, found := accounts[id]
		if !found {
			return nil, fmt.Errorf("%w: ID %s", ErrAccountNotFound, id)
		}
		if acc.CompanyID != companyID {
			logger.Warn("Account used in posting belongs to a different company", slog.String("account_id", id), slog.String("account_company", acc.CompanyID), slog.String("posting_company", companyID))
			return nil, fmt.Errorf("%w: account %s does not belong to company %s", ErrAccountNotFound, id, companyID)
		}
		if !acc.IsActive {
			return nil, fmt.Errorf("%w: account %s is inactive", apperrors.ErrValidation, id)
		}
	}

	balanceChanges := make(map[string]decimal.Decimal, len(accountIDs))
	for _, line := range lines {
		acc := accounts[line.AccountID]
		signed := line.SignedAmount(acc.AccountType)
		balanceChanges[line.AccountID] = balanceChanges[line.AccountID].Add(signed)
	}

	txn := domain.Transaction{
		TransactionID: transactionID,
		CompanyID:     companyID,
		Date:          req.Date,
		Memo:          req.Memo,
		Status:        domain.Posted,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     createdBy,
			LastUpdatedAt: now,
			LastUpdatedBy: createdBy,
		},
	}

	if err := s.transactionRepo.SaveTransactionInTx(ctx, tx, txn, lines); err != nil {
		logger.Error("Failed to save transaction", slog.String("error", err.Error()), slog.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	if err := s.accountRepo.UpdateAccountBalancesInTx(ctx, tx, balanceChanges, createdBy, now); err != nil {
		logger.Error("Failed to update account balances", slog.String("error", err.Error()), slog.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to update account balances: %w", err)
	}

	txn.Lines = lines
	return &txn, nil
}

// GetTransaction retrieves a transaction with its lines.
func (s *ledgerService) GetTransaction(ctx context.Context, companyID, transactionID, requestingUserID string) (*domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, requestingUserID, companyID, domain.RoleReadOnly); err != nil {
		logger.Warn("Authorization failed for GetTransaction", slog.String("user_id", requestingUserID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	txn, err := s.transactionRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to find transaction by ID", slog.String("error", err.Error()), slog.String("transaction_id", transactionID))
		}
		return nil, fmt.Errorf("failed to find transaction %s: %w", transactionID, err)
	}

	// Obscure existence across tenants.
	if txn.CompanyID != companyID {
		logger.Warn("Transaction found but belongs to different company", slog.String("transaction_id", transactionID), slog.String("transaction_company", txn.CompanyID), slog.String("requested_company", companyID))
		return nil, apperrors.ErrNotFound
	}

	lines, err := s.transactionRepo.FindLinesByTransactionID(ctx, transactionID)
	if err != nil {
		logger.Error("Failed to fetch lines for transaction", slog.String("error", err.Error()), slog.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to retrieve lines for transaction %s: %w", transactionID, apperrors.ErrInternal)
	}
	txn.Lines = lines

	return txn, nil
}

// ReverseTransaction posts a mirror-image entry and marks the original REVERSED.
func (s *ledgerService) ReverseTransaction(ctx context.Context, companyID, transactionID, userID string) (*domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for ReverseTransaction", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	tx, err := s.transactionRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.transactionRepo.Rollback(ctx, tx)
	}()

	reversal, err := s.reverseInTx(ctx, tx, companyID, transactionID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.transactionRepo.Commit(ctx, tx); err != nil {
		logger.Error("Failed to commit reversal", slog.String("error", err.Error()), slog.String("original_transaction_id", transactionID))
		return nil, fmt.Errorf("failed to commit reversal: %w", err)
	}

	logger.Info("Transaction reversed successfully", slog.String("original_transaction_id", transactionID), slog.String("reversing_transaction_id", reversal.TransactionID))
	return reversal, nil
}

// ReverseTransactionInTx is ReverseTransaction on the caller's database
// transaction; authorization is the caller's responsibility.
func (s *ledgerService) ReverseTransactionInTx(ctx context.Context, tx pgx.Tx, companyID, transactionID, userID string) (*domain.Transaction, error) {
	return s.reverseInTx(ctx, tx, companyID, transactionID, userID)
}

func (s *ledgerService) reverseInTx(ctx context.Context, tx pgx.Tx, companyID, transactionID, userID string) (*domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	original, err := s.transactionRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.Error("Failed to fetch original transaction for reversal", slog.String("error", err.Error()), slog.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to retrieve original transaction: %w", err)
	}
	if original.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	if original.Status != domain.Posted {
		return nil, fmt.Errorf("%w: transaction status is %s, expected POSTED", apperrors.ErrConflict, original.Status)
	}
	if original.OriginalTransactionID != nil {
		return nil, fmt.Errorf("%w: cannot reverse a transaction that is already a reversal", apperrors.ErrConflict)
	}

	originalLines, err := s.transactionRepo.FindLinesByTransactionID(ctx, transactionID)
	if err != nil {
		logger.Error("Failed to fetch lines of original transaction", slog.String("error", err.Error()), slog.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to retrieve original lines: %w", err)
	}

	now := time.Now().UTC()
	reversalID := uuid.NewString()
	reversalLines := make([]domain.TransactionLine, len(originalLines))
	accountIDs := make([]string, 0, len(originalLines))
	for i, line := range originalLines {
		// Swap debit and credit to mirror the original.
		reversalLines[i] = domain.TransactionLine{
			LineID:        uuid.NewString(),
			TransactionID: reversalID,
			AccountID:     line.AccountID,
			Debit:         line.Credit,
			Credit:        line.Debit,
			CurrencyCode:  line.CurrencyCode,
			Memo:          line.Memo,
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				CreatedBy:     userID,
				LastUpdatedAt: now,
				LastUpdatedBy: userID,
			},
		}
		accountIDs = append(accountIDs, line.AccountID)
	}
	accountIDs = uniqueStrings(accountIDs)

	accounts, err := s.accountRepo.FindAccountsByIDsForUpdate(ctx, tx, accountIDs)
	if err != nil {
		logger.Error("Failed to lock accounts for reversal", slog.String("error", err.Error()), slog.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}

	balanceChanges := make(map[string]decimal.Decimal, len(accountIDs))
	for _, line := range reversalLines {
		acc, found := accounts[line.AccountID]
		if !found {
			return nil, fmt.Errorf("%w: ID %s", ErrAccountNotFound, line.AccountID)
		}
		balanceChanges[line.AccountID] = balanceChanges[line.AccountID].Add(line.SignedAmount(acc.AccountType))
	}

	reversal := domain.Transaction{
		TransactionID:         reversalID,
		CompanyID:             companyID,
		Date:                  now,
		Memo:                  fmt.Sprintf("Reversal of %s: %s", original.TransactionID, original.Memo),
		Status:                domain.Posted,
		OriginalTransactionID: &original.TransactionID,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}

	if err := s.transactionRepo.SaveTransactionInTx(ctx, tx, reversal, reversalLines); err != nil {
		logger.Error("Failed to save reversing transaction", slog.String("error", err.Error()), slog.String("original_transaction_id", transactionID))
		return nil, fmt.Errorf("failed to save reversing transaction: %w", err)
	}

	if err := s.transactionRepo.UpdateStatusAndLinksInTx(ctx, tx, original.TransactionID, domain.Reversed, &reversalID, userID, now); err != nil {
		logger.Error("Failed to mark original transaction reversed", slog.String("error", err.Error()), slog.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to mark original transaction reversed: %w", err)
	}

	if err := s.accountRepo.UpdateAccountBalancesInTx(ctx, tx, balanceChanges, userID, now); err != nil {
		logger.Error("Failed to update account balances for reversal", slog.String("error", err.Error()), slog.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to update account balances: %w", err)
	}

	reversal.Lines = reversalLines
	return &reversal, nil
}

// ListTransactionLinesByAccount pages through lines posted against an account.
func (s *ledgerService) ListTransactionLinesByAccount(ctx context.Context, companyID, accountID, userID string, params dto.ListTransactionLinesParams) (*dto.ListTransactionLinesResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleReadOnly); err != nil {
		logger.Warn("Authorization failed for ListTransactionLinesByAccount", "error", err)
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20 // Default limit
	}

	lines, nextToken, err := s.transactionRepo.ListTransactionLinesByAccountID(ctx, companyID, accountID, limit, params.NextToken)
	if err != nil {
		logger.Error("Failed to list transaction lines by account", "error", err)
		return nil, fmt.Errorf("failed to retrieve transaction lines: %w", err)
	}

	resp := &dto.ListTransactionLinesResponse{
		NextToken: nextToken,
	}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, dto.ToTransactionLineResponse(line))
	}

	logger.Info("Transaction lines listed successfully", "count", len(lines))
	return resp, nil
}

// EnsureAccountInTx finds an account by its company-unique code, creating it
// when absent. Payroll and trust postings provision their control accounts
// through this path.
func (s *ledgerService) EnsureAccountInTx(ctx context.Context, tx pgx.Tx, companyID, code, name string, accountType domain.AccountType, currencyCode, userID string) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	account, err := s.accountRepo.FindAccountByCodeInTx(ctx, tx, companyID, code)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		logger.Error("Failed to look up account by code", slog.String("error", err.Error()), slog.String("code", code), slog.String("company_id", companyID))
		return nil, fmt.Errorf("failed to look up account %s: %w", code, err)
	}

	now := time.Now().UTC()
	created := domain.Account{
		AccountID:    uuid.NewString(),
		CompanyID:    companyID,
		Code:         code,
		Name:         name,
		AccountType:  accountType,
		CurrencyCode: currencyCode,
		IsActive:     true,
		Balance:      decimal.Zero,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	if err := s.accountRepo.SaveAccountInTx(ctx, tx, created); err != nil {
		// A concurrent provision of the same code loses the unique-constraint
		// race; re-read and use the winner.
		if errors.Is(err, apperrors.ErrDuplicate) {
			return s.accountRepo.FindAccountByCodeInTx(ctx, tx, companyID, code)
		}
		logger.Error("Failed to create account", slog.String("error", err.Error()), slog.String("code", code), slog.String("company_id", companyID))
		return nil, fmt.Errorf("failed to create account %s: %w", code, err)
	}

	logger.Info("Account provisioned on demand", slog.String("account_id", created.AccountID), slog.String("code", code), slog.String("company_id", companyID))
	return &created, nil
}

// uniqueStrings returns a slice containing only the unique strings from the input.
func uniqueStrings(input []string) []string {
	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, str := range input {
		if _, ok := seen[str]; !ok {
			seen[str] = struct{}{}
			result = append(result, str)
		}
	}
	return result
}
