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
	ErrInvoiceNotDraft    = errors.New("invoice is not in DRAFT status")
	ErrInvoiceAlreadyPaid = errors.New("invoice is already paid")
	ErrNoTrustFunds       = errors.New("no trust funds available to apply")
	ErrItemNotOnInvoice   = errors.New("item does not belong to this invoice")
)

// invoiceService keeps invoice totals consistent with their items and applies
// client trust money as payments.
type invoiceService struct {
	BaseService
	invoiceRepo   portsrepo.InvoiceRepositoryWithTx
	clientRepo    portsrepo.ClientRepositoryFacade
	trustRepo     portsrepo.TrustRepositoryFacade
	trustSvc      portssvc.TrustSvcFacade
	ledgerSvc     portssvc.LedgerSvcFacade
	conversionSvc portssvc.ConversionSvcFacade
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(invoiceRepo portsrepo.InvoiceRepositoryWithTx, clientRepo portsrepo.ClientRepositoryFacade, trustRepo portsrepo.TrustRepositoryFacade, trustSvc portssvc.TrustSvcFacade, ledgerSvc portssvc.LedgerSvcFacade, conversionSvc portssvc.ConversionSvcFacade, authorizer portssvc.CompanyAuthorizerSvc) portssvc.InvoiceSvcFacade {
	return &invoiceService{
		BaseService:   BaseService{CompanyAuthorizer: authorizer},
		invoiceRepo:   invoiceRepo,
		clientRepo:    clientRepo,
		trustRepo:     trustRepo,
		trustSvc:      trustSvc,
		ledgerSvc:     ledgerSvc,
		conversionSvc: conversionSvc,
	}
}

var _ portssvc.InvoiceSvcFacade = (*invoiceService)(nil)

// formatInvoiceNumber renders the company-sequential number, "INV-00001" style.
func formatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("INV-%05d", seq)
}

// CreateInvoice opens a DRAFT invoice with a fresh sequential number.
func (s *invoiceService) CreateInvoice(ctx context.Context, companyID string, req dto.CreateInvoiceRequest, userID string) (*domain.Invoice, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for CreateInvoice", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	project, err := s.clientRepo.FindProjectByID(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project %s: %w", req.ProjectID, err)
	}
	if project.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	if project.ClientID != req.ClientID {
		return nil, fmt.Errorf("%w: project %s belongs to client %s", ErrProjectClientMismatch, req.ProjectID, project.ClientID)
	}
	if req.Discount.IsNegative() || req.Tax.IsNegative() {
		return nil, fmt.Errorf("%w: discount and tax percentages must not be negative", apperrors.ErrValidation)
	}

	tx, err := s.invoiceRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.invoiceRepo.Rollback(ctx, tx)
	}()

	invoice, err := s.newDraftInTx(ctx, tx, companyID, req.ClientID, req.ProjectID, req.CurrencyCode, req.IssueDate, req.Discount, req.Tax, userID)
	if err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}

	logger.Info("Invoice created", slog.String("invoice_id", invoice.InvoiceID), slog.String("invoice_number", invoice.InvoiceNumber))
	return invoice, nil
}

// newDraftInTx allocates the next number and inserts an empty DRAFT invoice.
func (s *invoiceService) newDraftInTx(ctx context.Context, tx pgx.Tx, companyID, clientID, projectID, currencyCode string, issueDate time.Time, discount, tax decimal.Decimal, userID string) (*domain.Invoice, error) {
	seq, err := s.invoiceRepo.NextInvoiceNumberInTx(ctx, tx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate invoice number: %w", err)
	}

	now := time.Now().UTC()
	invoice := domain.Invoice{
		InvoiceID:     uuid.NewString(),
		CompanyID:     companyID,
		ClientID:      clientID,
		ProjectID:     projectID,
		InvoiceNumber: formatInvoiceNumber(seq),
		CurrencyCode:  currencyCode,
		Status:        domain.InvoiceDraft,
		IssueDate:     issueDate,
		Discount:      discount,
		Tax:           tax,
		TrustDeducted: decimal.Zero,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	invoice.RecalculateTotals()

	if err := s.invoiceRepo.SaveInvoiceInTx(ctx, tx, invoice); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	return &invoice, nil
}

// GetInvoice retrieves an invoice with items.
func (s *invoiceService) GetInvoice(ctx context.Context, companyID, invoiceID, userID string) (*domain.Invoice, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleReadOnly); err != nil {
		logger.Warn("Authorization failed for GetInvoice", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	invoice, err := s.invoiceRepo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice %s: %w", invoiceID, err)
	}
	if invoice.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	return invoice, nil
}

// lockDraft loads the invoice with a row lock and verifies tenant and status.
func (s *invoiceService) lockDraft(ctx context.Context, tx pgx.Tx, companyID, invoiceID string) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice %s: %w", invoiceID, err)
	}
	if invoice.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	if invoice.Status != domain.InvoiceDraft {
		return nil, fmt.Errorf("%w: %w, status is %s", apperrors.ErrConflict, ErrInvoiceNotDraft, invoice.Status)
	}
	return invoice, nil
}

// UpsertItem adds or updates a line and recalculates totals. When RefID is
// set the operation is idempotent per (itemType, refID): the existing line is
// updated in place instead of duplicated.
func (s *invoiceService) UpsertItem(ctx context.Context, companyID, invoiceID string, req dto.UpsertInvoiceItemRequest, userID string) (*domain.Invoice, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for UpsertItem", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}
	if req.Quantity.IsNegative() || req.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: quantity and unit price must not be negative", apperrors.ErrValidation)
	}

	tx, err := s.invoiceRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.invoiceRepo.Rollback(ctx, tx)
	}()

	invoice, err := s.lockDraft(ctx, tx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	itemType := domain.InvoiceItemType(req.ItemType)

	var existing *domain.InvoiceItem
	if req.RefID != nil {
		existing, err = s.invoiceRepo.FindItemByRefInTx(ctx, tx, invoiceID, itemType, *req.RefID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up invoice item by ref: %w", err)
		}
	}

	if existing != nil {
		existing.Details = req.Details
		existing.Quantity = req.Quantity
		existing.UnitPrice = req.UnitPrice
		existing.Recalculate()
		existing.LastUpdatedAt = now
		existing.LastUpdatedBy = userID
		if err := s.invoiceRepo.UpdateItemInTx(ctx, tx, *existing); err != nil {
			return nil, fmt.Errorf("failed to update invoice item: %w", err)
		}
		for i := range invoice.Items {
			if invoice.Items[i].ItemID == existing.ItemID {
				invoice.Items[i] = *existing
			}
		}
	} else {
		item := domain.InvoiceItem{
			ItemID:    uuid.NewString(),
			InvoiceID: invoiceID,
			ItemType:  itemType,
			RefID:     req.RefID,
			Details:   req.Details,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				CreatedBy:     userID,
				LastUpdatedAt: now,
				LastUpdatedBy: userID,
			},
		}
		item.Recalculate()
		if err := s.invoiceRepo.SaveItemInTx(ctx, tx, item); err != nil {
			return nil, fmt.Errorf("failed to save invoice item: %w", err)
		}
		invoice.Items = append(invoice.Items, item)
	}

	invoice.RecalculateTotals()
	if err := s.invoiceRepo.UpdateInvoiceInTx(ctx, tx, *invoice, userID, now); err != nil {
		return nil, fmt.Errorf("failed to update invoice totals: %w", err)
	}

	if err := s.invoiceRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit item upsert: %w", err)
	}

	logger.Info("Invoice item upserted", slog.String("invoice_id", invoiceID), slog.String("total", invoice.Total.String()))
	return invoice, nil
}

// RemoveItem deletes a line and recalculates totals.
func (s *invoiceService) RemoveItem(ctx context.Context, companyID, invoiceID, itemID, userID string) (*domain.Invoice, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for RemoveItem", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	tx, err := s.invoiceRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.invoiceRepo.Rollback(ctx, tx)
	}()

	invoice, err := s.lockDraft(ctx, tx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}

	found := false
	remaining := invoice.Items[:0]
	for _, item := range invoice.Items {
		if item.ItemID == itemID {
			found = true
			continue
		}
		remaining = append(remaining, item)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrItemNotOnInvoice, itemID)
	}
	invoice.Items = remaining

	if err := s.invoiceRepo.DeleteItemInTx(ctx, tx, itemID); err != nil {
		return nil, fmt.Errorf("failed to delete invoice item: %w", err)
	}

	now := time.Now().UTC()
	invoice.RecalculateTotals()
	if err := s.invoiceRepo.UpdateInvoiceInTx(ctx, tx, *invoice, userID, now); err != nil {
		return nil, fmt.Errorf("failed to update invoice totals: %w", err)
	}

	if err := s.invoiceRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit item removal: %w", err)
	}

	logger.Info("Invoice item removed", slog.String("invoice_id", invoiceID), slog.String("item_id", itemID))
	return invoice, nil
}

// UpdateTerms changes discount/tax percentages and recalculates totals.
func (s *invoiceService) UpdateTerms(ctx context.Context, companyID, invoiceID string, req dto.UpdateInvoiceTermsRequest, userID string) (*domain.Invoice, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for UpdateTerms", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}
	if req.Discount == nil && req.Tax == nil {
		return nil, fmt.Errorf("%w: nothing to update", apperrors.ErrValidation)
	}
	if (req.Discount != nil && req.Discount.IsNegative()) || (req.Tax != nil && req.Tax.IsNegative()) {
		return nil, fmt.Errorf("%w: discount and tax percentages must not be negative", apperrors.ErrValidation)
	}

	tx, err := s.invoiceRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.invoiceRepo.Rollback(ctx, tx)
	}()

	invoice, err := s.lockDraft(ctx, tx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}

	if req.Discount != nil {
		invoice.Discount = *req.Discount
	}
	if req.Tax != nil {
		invoice.Tax = *req.Tax
	}

	now := time.Now().UTC()
	invoice.RecalculateTotals()
	if err := s.invoiceRepo.UpdateInvoiceInTx(ctx, tx, *invoice, userID, now); err != nil {
		return nil, fmt.Errorf("failed to update invoice terms: %w", err)
	}

	if err := s.invoiceRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit terms update: %w", err)
	}

	logger.Info("Invoice terms updated", slog.String("invoice_id", invoiceID), slog.String("total", invoice.Total.String()))
	return invoice, nil
}

// ChangeCurrency converts every item's unit price into the new currency and
// recalculates totals. A no-op when the invoice is already in that currency.
func (s *invoiceService) ChangeCurrency(ctx context.Context, companyID, invoiceID string, req dto.ChangeInvoiceCurrencyRequest, userID string) (*domain.Invoice, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for ChangeCurrency", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}

	tx, err := s.invoiceRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.invoiceRepo.Rollback(ctx, tx)
	}()

	invoice, err := s.lockDraft(ctx, tx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}

	if invoice.CurrencyCode == req.CurrencyCode {
		return invoice, nil
	}

	now := time.Now().UTC()
	for i := range invoice.Items {
		converted, err := s.conversionSvc.Convert(ctx, invoice.Items[i].UnitPrice, invoice.CurrencyCode, req.CurrencyCode)
		if err != nil {
			logger.Error("Failed to convert invoice item price", slog.String("error", err.Error()), slog.String("item_id", invoice.Items[i].ItemID))
			return nil, err
		}
		invoice.Items[i].UnitPrice = converted
		invoice.Items[i].Recalculate()
		invoice.Items[i].LastUpdatedAt = now
		invoice.Items[i].LastUpdatedBy = userID
		if err := s.invoiceRepo.UpdateItemInTx(ctx, tx, invoice.Items[i]); err != nil {
			return nil, fmt.Errorf("failed to update converted item: %w", err)
		}
	}

	oldCurrency := invoice.CurrencyCode
	invoice.CurrencyCode = req.CurrencyCode
	invoice.RecalculateTotals()
	if err := s.invoiceRepo.UpdateInvoiceInTx(ctx, tx, *invoice, userID, now); err != nil {
		return nil, fmt.Errorf("failed to update invoice currency: %w", err)
	}

	if err := s.invoiceRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit currency change: %w", err)
	}

	logger.Info("Invoice currency changed", slog.String("invoice_id", invoiceID), slog.String("from", oldCurrency), slog.String("to", req.CurrencyCode))
	return invoice, nil
}

// ApplyTrustPayment debits the client's TRUST sub-ledgers in the invoice
// currency (project-scoped accounts first, then client-wide) up to the
// requested amount, records one payment and moves the invoice to PAID when
// fully covered, SENT otherwise.
func (s *invoiceService) ApplyTrustPayment(ctx context.Context, companyID, invoiceID string, req dto.TrustPaymentRequest, userID string) (*dto.TrustPaymentResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.AuthorizeUser(ctx, userID, companyID, domain.RoleMember); err != nil {
		logger.Warn("Authorization failed for ApplyTrustPayment", slog.String("user_id", userID), slog.String("company_id", companyID), slog.String("error", err.Error()))
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrAmountNotPositive)
	}

	tx, err := s.invoiceRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer func() {
		_ = s.invoiceRepo.Rollback(ctx, tx)
	}()

	invoice, err := s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice %s: %w", invoiceID, err)
	}
	if invoice.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	if invoice.Status == domain.InvoicePaid {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConflict, ErrInvoiceAlreadyPaid)
	}

	outstanding := invoice.Total.Sub(invoice.TrustDeducted)
	requested := decimal.Min(req.Amount, outstanding)
	if !requested.IsPositive() {
		return nil, fmt.Errorf("%w: invoice has no outstanding amount", apperrors.ErrValidation)
	}

	accounts, err := s.trustRepo.ListForPaymentForUpdate(ctx, tx, companyID, invoice.ClientID, invoice.ProjectID, invoice.CurrencyCode)
	if err != nil {
		logger.Error("Failed to list trust accounts for payment", slog.String("error", err.Error()), slog.String("invoice_id", invoiceID))
		return nil, fmt.Errorf("failed to list trust accounts: %w", err)
	}

	applied := decimal.Zero
	remaining := requested
	for _, account := range accounts {
		if !remaining.IsPositive() {
			break
		}
		available := account.Balance
		if !available.IsPositive() {
			continue
		}
		take := decimal.Min(available, remaining)
		if _, err := s.trustSvc.DebitInTx(ctx, tx, companyID, account.ClientID, account.ProjectID, account.CurrencyCode, account.Kind, take,
			fmt.Sprintf("Payment of invoice %s", invoice.InvoiceNumber), userID, &invoice.InvoiceID); err != nil {
			return nil, err
		}
		applied = applied.Add(take)
		remaining = remaining.Sub(take)
	}

	if !applied.IsPositive() {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrNoTrustFunds)
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		PaymentID:    uuid.NewString(),
		CompanyID:    companyID,
		InvoiceID:    invoiceID,
		Amount:       applied,
		CurrencyCode: invoice.CurrencyCode,
		Method:       "TRUST",
		PaidOn:       now,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	if err := s.invoiceRepo.SavePaymentInTx(ctx, tx, payment); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	invoice.TrustDeducted = invoice.TrustDeducted.Add(applied)
	if invoice.TrustDeducted.GreaterThanOrEqual(invoice.Total) {
		invoice.Status = domain.InvoicePaid
	} else {
		invoice.Status = domain.InvoiceSent
	}
	if err := s.invoiceRepo.UpdateInvoiceInTx(ctx, tx, *invoice, userID, now); err != nil {
		return nil, fmt.Errorf("failed to update invoice after payment: %w", err)
	}

	// Releasing held client funds to settle the bill: debit the liability,
	// credit fee income.
	clientFunds, err := s.ledgerSvc.EnsureAccountInTx(ctx, tx, companyID, domain.AccountCodeClientFunds, "Client funds held", domain.Liability, invoice.CurrencyCode, userID)
	if err != nil {
		return nil, err
	}
	feeIncome, err := s.ledgerSvc.EnsureAccountInTx(ctx, tx, companyID, domain.AccountCodeFeeIncome, "Fee income", domain.Income, invoice.CurrencyCode, userID)
	if err != nil {
		return nil, err
	}
	glReq := dto.CreateTransactionRequest{
		Date: now,
		Memo: fmt.Sprintf("Trust payment of invoice %s", invoice.InvoiceNumber),
		Lines: []dto.CreateTransactionLineRequest{
			{AccountID: clientFunds.AccountID, Debit: applied, CurrencyCode: invoice.CurrencyCode},
			{AccountID: feeIncome.AccountID, Credit: applied, CurrencyCode: invoice.CurrencyCode},
		},
	}
	if _, err := s.ledgerSvc.PostTransactionInTx(ctx, tx, companyID, glReq, userID); err != nil {
		logger.Error("Failed to post GL entry for trust payment", slog.String("error", err.Error()), slog.String("invoice_id", invoiceID))
		return nil, fmt.Errorf("failed to post ledger entry for trust payment: %w", err)
	}

	if err := s.invoiceRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit trust payment: %w", err)
	}

	logger.Info("Trust payment applied",
		slog.String("invoice_id", invoiceID),
		slog.String("applied", applied.String()),
		slog.String("status", string(invoice.Status)))
	return &dto.TrustPaymentResponse{
		InvoiceID: invoiceID,
		PaymentID: payment.PaymentID,
		Applied:   applied,
		Status:    string(invoice.Status),
	}, nil
}

// AttachExpenseInTx links an approved expense to the project's draft invoice,
// creating the draft when absent. Idempotent per expense: re-running finds
// the existing EXPENSE line by ref and leaves it untouched.
func (s *invoiceService) AttachExpenseInTx(ctx context.Context, tx pgx.Tx, companyID string, expense domain.Expense, userID string) (string, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	invoice, err := s.invoiceRepo.FindDraftByProjectForUpdate(ctx, tx, expense.ProjectID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return "", fmt.Errorf("failed to find draft invoice for project %s: %w", expense.ProjectID, err)
		}
		project, perr := s.clientRepo.FindProjectByID(ctx, expense.ProjectID)
		if perr != nil {
			return "", fmt.Errorf("failed to find project %s: %w", expense.ProjectID, perr)
		}
		invoice, err = s.newDraftInTx(ctx, tx, companyID, project.ClientID, expense.ProjectID, project.CurrencyCode, time.Now().UTC(), decimal.Zero, decimal.Zero, userID)
		if err != nil {
			return "", err
		}
		logger.Info("Draft invoice opened for expense", slog.String("invoice_id", invoice.InvoiceID), slog.String("project_id", expense.ProjectID))
	}

	existing, err := s.invoiceRepo.FindItemByRefInTx(ctx, tx, invoice.InvoiceID, domain.ItemExpense, expense.ExpenseID)
	if err == nil && existing != nil {
		return invoice.InvoiceID, nil
	}
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return "", fmt.Errorf("failed to look up expense line: %w", err)
	}

	unitPrice, err := s.conversionSvc.Convert(ctx, expense.Amount, expense.CurrencyCode, invoice.CurrencyCode)
	if err != nil {
		return "", fmt.Errorf("failed to convert expense into invoice currency: %w", err)
	}

	now := time.Now().UTC()
	item := domain.InvoiceItem{
		ItemID:    uuid.NewString(),
		InvoiceID: invoice.InvoiceID,
		ItemType:  domain.ItemExpense,
		RefID:     &expense.ExpenseID,
		Details:   expense.Description,
		Quantity:  decimal.NewFromInt(1),
		UnitPrice: unitPrice,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	item.Recalculate()
	if err := s.invoiceRepo.SaveItemInTx(ctx, tx, item); err != nil {
		return "", fmt.Errorf("failed to save expense line: %w", err)
	}

	invoice.Items = append(invoice.Items, item)
	invoice.RecalculateTotals()
	if err := s.invoiceRepo.UpdateInvoiceInTx(ctx, tx, *invoice, userID, now); err != nil {
		return "", fmt.Errorf("failed to update invoice totals: %w", err)
	}

	return invoice.InvoiceID, nil
}
