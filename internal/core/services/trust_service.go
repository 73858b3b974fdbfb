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
	ErrAmountNotPositive     = errors.New("amount must be positive")
	ErrProjectClientMismatch = errors.New("project does not belong to the given client")
)

// trustService manages trust/expense sub-ledgers and advance consumption.
// Sub-ledger accounts are created lazily on first use; the transaction log is
// the authoritative balance and the cached column is maintained in the same
// database transaction as every append.
type trustService struct {
	BaseService
	trustRepo     portsrepo.TrustRepositoryWithTx
	clientRepo    portsrepo.ClientRepositoryFacade
	ledgerSvc     portssvc.LedgerSvcFacade
	conversionSvc portssvc.ConversionSvcFacade
}

// NewTrustService creates a new TrustService.
func NewTrustService(trustRepo portsrepo.TrustRepositoryWithTx, clientRepo portsrepo.ClientRepositoryFacade, ledgerSvc portssvc.LedgerSvcFacade, conversionSvc portssvc.ConversionSvcFacade, authorizer portssvc.CompanyAuthorizerSvc) portssvc.TrustSvcFacade {
	return &trustService{
		BaseService:   BaseService{CompanyAuthorizer: authorizer},
		trustRepo:     trustRepo,
		clientRepo:    clientRepo,
		ledgerSvc:     ledgerSvc,
		conversionSvc: conversionSvc,
	}
}

var _ portssvc.TrustSvcFacade = (*trustService)(nil)

// findOrCreateForUpdate locks the sub-ledger account for the key, creating it
// when it does not exist yet.
func (s *trustService) findOrCreateForUpdate(ctx context.Context, tx pgx.Tx, key portsrepo.TrustAccountKey, userID string) (*domain.TrustAccount, error) {
	account, err := s.trustRepo.FindTrustAccountForUpdate(ctx, tx, key)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up trust account: %w", err)
	}

	now := time.Now().UTC()
	created := domain.TrustAccount{
		TrustAccountID: uuid.NewString(),
		CompanyID:      key.CompanyID,
		ClientID:       key.ClientID,
		ProjectID:      key.ProjectID,
		CurrencyCode:   key.CurrencyCode,
		Kind:           key.Kind,
		Balance:        decimal.Zero,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	if err := s.trustRepo.SaveTrustAccountInTx(ctx, tx, created); err != nil {
		// Concurrent first use of the same key: take the winner.
		if errors.Is(err, apperrors.ErrDuplicate) {
			return s.trustRepo.FindTrustAccountForUpdate(ctx, tx, key)
		}
		return nil, fmt.Errorf("failed to create trust account: %w", err)
	}
	return &created, nil
}

// appendInTx appends one trust transaction and enforces the non-negative
// policy for TRUST-kind accounts against the resulting balance.
func (s *trustService) appendInTx(ctx context.Context, tx pgx.Tx, account *domain.TrustAccount, txnType domain.TrustTransactionType, amount decimal.Decimal, description, userID string, invoiceID *string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrAmountNotPositive, amount.String())
	}

	now := time.Now().UTC()
	txn := domain.TrustTransaction{
		TrustTransactionID: uuid.NewString(),
		TrustAccountID:     account.TrustAccountID,
		TxnType:            txnType,
		Amount:             amount,
		Description:        description,
		InvoiceID:          invoiceID,
		ProjectID:          account.ProjectID,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}

	newBalance, err := s.trustRepo.AppendTrustTransactionInTx(ctx, tx, txn)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to append trust transaction: %w", err)
	}

	if newBalance.IsNegative() && !account.AllowsOverdraft() {
		return decimal.Zero, fmt.Errorf("%w: %s account %s would end at %s",
			apperrors.ErrValidation, account.Kind, account.TrustAccountID, newBalance.String())
	}

	account.Balance = newBalance
	return newBalance, nil
}

// resolveProject loads the project and checks it belongs to this company and client.
func (s *trustService) resolveProject(ctx context.Context, companyID, clientID, projectID string) (*domain.Project, error) {
	project, err := s.clientRepo.FindProjectByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project %s: %w", projectID, err)
	}
	if project.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	if project.ClientID != clientID {
		return nil, fmt.Errorf("%w: project %s belongs to client %s", ErrProjectClientMismatch, projectID, project.ClientID)
	}
	return project, nil
}

// AddAdvance records the prepayment, credits the sub-ledger and posts the
// cash-in GL entry, all in one database transaction.
func (s *trustService) AddAdvance(ctx context.Context, companyID string, req dto.AddAdvanceRequest, userID string) (*domain.AdvancePayment, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for AddAdvance", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrAmountNotPositive)
	}
	if _, err := s.resolveProject(ctx, companyID, req.ClientID, req.ProjectID); err != nil {
		return nil, err
	}

	tx, err := s.trustRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.trustRepo.Rollback(ctx, tx)
	}()

	kind := domain.TrustAccountKind(req.Kind)
	key := portsrepo.TrustAccountKey{
		CompanyID:    companyID,
		ClientID:     req.ClientID,
		ProjectID:    &req.ProjectID,
		CurrencyCode: req.CurrencyCode,
		Kind:         kind,
	}
	account, err := s.findOrCreateForUpdate(ctx, tx, key, userID)
	if err != nil {
		logger.Error("Failed to resolve trust account for advance", slog.String("error", err.Error()), slog.String("project_id", req.ProjectID))
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Advance payment received"
	}
	if _, err := s.appendInTx(ctx, tx, account, domain.TrustCredit, req.Amount, description, userID, nil); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	advance := domain.AdvancePayment{
		AdvanceID:    uuid.NewString(),
		CompanyID:    companyID,
		ClientID:     req.ClientID,
		ProjectID:    req.ProjectID,
		Amount:       req.Amount,
		Consumed:     decimal.Zero,
		CurrencyCode: req.CurrencyCode,
		Kind:         kind,
		PaidOn:       req.PaidOn,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	if err := s.trustRepo.SaveAdvanceInTx(ctx, tx, advance); err != nil {
		logger.Error("Failed to save advance", slog.String("error", err.Error()), slog.String("project_id", req.ProjectID))
		return nil, fmt.Errorf("failed to save advance: %w", err)
	}

	// Cash received on behalf of the client: debit cash, credit the
	// client-funds liability.
	cash, err := s.ledgerSvc.EnsureAccountInTx(ctx, tx, companyID, domain.AccountCodeCash, "Cash", domain.Asset, req.CurrencyCode, userID)
	if err != nil {
		return nil, err
	}
	clientFunds, err := s.ledgerSvc.EnsureAccountInTx(ctx, tx, companyID, domain.AccountCodeClientFunds, "Client funds held", domain.Liability, req.CurrencyCode, userID)
	if err != nil {
		return nil, err
	}
	glReq := dto.CreateTransactionRequest{
		Date: req.PaidOn,
		Memo: fmt.Sprintf("Advance from client %s for project %s", req.ClientID, req.ProjectID),
		Lines: []dto.CreateTransactionLineRequest{
			{AccountID: cash.AccountID, Debit: req.Amount, CurrencyCode: req.CurrencyCode},
			{AccountID: clientFunds.AccountID, Credit: req.Amount, CurrencyCode: req.CurrencyCode},
		},
	}
	if _, err := s.ledgerSvc.PostTransactionInTx(ctx, tx, companyID, glReq, userID); err != nil {
		logger.Error("Failed to post GL entry for advance", slog.String("error", err.Error()), slog.String("advance_id", advance.AdvanceID))
		return nil, fmt.Errorf("failed to post ledger entry for advance: %w", err)
	}

	if err := s.trustRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit advance: %w", err)
	}

	logger.Info("Advance recorded", slog.String("advance_id", advance.AdvanceID), slog.String("project_id", req.ProjectID), slog.String("amount", req.Amount.String()), slog.String("currency", req.CurrencyCode))
	return &advance, nil
}

// Credit appends a CREDIT trust transaction, creating the account lazily.
func (s *trustService) Credit(ctx context.Context, companyID string, req dto.TrustAdjustmentRequest, userID string) (*domain.TrustAccount, error) {
	return s.adjust(ctx, companyID, req, domain.TrustCredit, userID)
}

// Debit appends a DEBIT trust transaction. TRUST-kind accounts must not go negative.
func (s *trustService) Debit(ctx context.Context, companyID string, req dto.TrustAdjustmentRequest, userID string) (*domain.TrustAccount, error) {
	return s.adjust(ctx, companyID, req, domain.TrustDebit, userID)
}

func (s *trustService) adjust(ctx context.Context, companyID string, req dto.TrustAdjustmentRequest, txnType domain.TrustTransactionType, userID string) (*domain.TrustAccount, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for trust adjustment", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrAmountNotPositive)
	}
	if req.ProjectID != nil {
		if _, err := s.resolveProject(ctx, companyID, req.ClientID, *req.ProjectID); err != nil {
			return nil, err
		}
	} else {
		client, err := s.clientRepo.FindClientByID(ctx, req.ClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to find client %s: %w", req.ClientID, err)
		}
		if client.CompanyID != companyID {
			return nil, apperrors.ErrNotFound
		}
	}

	tx, err := s.trustRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.trustRepo.Rollback(ctx, tx)
	}()

	key := portsrepo.TrustAccountKey{
		CompanyID:    companyID,
		ClientID:     req.ClientID,
		ProjectID:    req.ProjectID,
		CurrencyCode: req.CurrencyCode,
		Kind:         domain.TrustAccountKind(req.Kind),
	}
	account, err := s.findOrCreateForUpdate(ctx, tx, key, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.appendInTx(ctx, tx, account, txnType, req.Amount, req.Description, userID, nil); err != nil {
		return nil, err
	}

	if err := s.trustRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit trust adjustment: %w", err)
	}

	logger.Info("Trust adjustment applied", slog.String("trust_account_id", account.TrustAccountID), slog.String("type", string(txnType)), slog.String("amount", req.Amount.String()))
	return account, nil
}

// Balance returns the authoritative balance, derived from the transaction log.
// The cached column serves reads that can tolerate staleness; this endpoint
// always recomputes.
func (s *trustService) Balance(ctx context.Context, companyID, trustAccountID, userID string) (*dto.TrustBalanceResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleReadOnly); err != nil {
		logger.Warn("Authorization failed for trust Balance", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	account, err := s.trustRepo.FindTrustAccountByID(ctx, trustAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find trust account %s: %w", trustAccountID, err)
	}
	if account.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}

	balance, err := s.trustRepo.SumTrustTransactions(ctx, trustAccountID)
	if err != nil {
		logger.Error("Failed to sum trust transactions", slog.String("error", err.Error()), slog.String("trust_account_id", trustAccountID))
		return nil, fmt.Errorf("failed to derive trust balance: %w", err)
	}

	if !balance.Equal(account.Balance) {
		logger.Warn("Cached trust balance differs from derived balance",
			slog.String("trust_account_id", trustAccountID),
			slog.String("cached", account.Balance.String()),
			slog.String("derived", balance.String()))
	}

	return &dto.TrustBalanceResponse{
		TrustAccountID: trustAccountID,
		Balance:        balance,
		CurrencyCode:   account.CurrencyCode,
	}, nil
}

// ConsumeAdvanceInTx greedily covers expenseAmount from the project's
// outstanding advances. Advances in the expense currency go first, then the
// rest by paidOn ascending. Each application bumps consumed in the advance's
// own currency and debits the matching sub-ledger. Returns (covered, residual)
// in the expense currency.
func (s *trustService) ConsumeAdvanceInTx(ctx context.Context, tx pgx.Tx, companyID, projectID, expenseCurrency string, expenseAmount decimal.Decimal, userID string) (decimal.Decimal, decimal.Decimal, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !expenseAmount.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrAmountNotPositive)
	}

	advances, err := s.trustRepo.ListOutstandingByProjectForUpdate(ctx, tx, projectID, expenseCurrency)
	if err != nil {
		logger.Error("Failed to list outstanding advances", slog.String("error", err.Error()), slog.String("project_id", projectID))
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to list outstanding advances: %w", err)
	}

	covered := decimal.Zero
	remaining := expenseAmount

	for _, adv := range advances {
		if !remaining.IsPositive() {
			break
		}
		unconsumed := adv.Unconsumed()
		if !unconsumed.IsPositive() {
			continue
		}

		coverable, err := s.conversionSvc.Convert(ctx, unconsumed, adv.CurrencyCode, expenseCurrency)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to value advance %s in %s: %w", adv.AdvanceID, expenseCurrency, err)
		}

		var appliedExpense, appliedNative decimal.Decimal
		if coverable.LessThanOrEqual(remaining) {
			// Consume the advance in full.
			appliedExpense = coverable
			appliedNative = unconsumed
		} else {
			appliedExpense = remaining
			appliedNative, err = s.conversionSvc.Convert(ctx, remaining, expenseCurrency, adv.CurrencyCode)
			if err != nil {
				return decimal.Zero, decimal.Zero, fmt.Errorf("failed to convert remainder into %s: %w", adv.CurrencyCode, err)
			}
		}
		if !appliedNative.IsPositive() {
			continue
		}

		if err := s.trustRepo.AddConsumedInTx(ctx, tx, adv.AdvanceID, appliedNative, userID); err != nil {
			logger.Error("Failed to bump advance consumption", slog.String("error", err.Error()), slog.String("advance_id", adv.AdvanceID))
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to consume advance %s: %w", adv.AdvanceID, err)
		}

		projectIDCopy := adv.ProjectID
		if _, err := s.DebitInTx(ctx, tx, companyID, adv.ClientID, &projectIDCopy, adv.CurrencyCode, adv.Kind, appliedNative,
			fmt.Sprintf("Consumed against project %s expense", projectID), userID, nil); err != nil {
			return decimal.Zero, decimal.Zero, err
		}

		covered = covered.Add(appliedExpense)
		remaining = remaining.Sub(appliedExpense)

		logger.Debug("Advance applied",
			slog.String("advance_id", adv.AdvanceID),
			slog.String("applied_native", appliedNative.String()),
			slog.String("applied_expense", appliedExpense.String()))
	}

	return covered, remaining, nil
}

// DebitInTx appends a DEBIT inside the caller's transaction, creating the
// sub-ledger account when absent.
func (s *trustService) DebitInTx(ctx context.Context, tx pgx.Tx, companyID, clientID string, projectID *string, currencyCode string, kind domain.TrustAccountKind, amount decimal.Decimal, description, userID string, invoiceID *string) (*domain.TrustAccount, error) {
	key := portsrepo.TrustAccountKey{
		CompanyID:    companyID,
		ClientID:     clientID,
		ProjectID:    projectID,
		CurrencyCode: currencyCode,
		Kind:         kind,
	}
	account, err := s.findOrCreateForUpdate(ctx, tx, key, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.appendInTx(ctx, tx, account, domain.TrustDebit, amount, description, userID, invoiceID); err != nil {
		return nil, err
	}
	return account, nil
}
