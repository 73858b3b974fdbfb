package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// InvoiceReader defines read operations for invoice data.
type InvoiceReader interface {
	// FindInvoiceByID retrieves an invoice together with its items.
	FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error)

	// ListInvoicesByProject retrieves all invoices for a project, newest first.
	ListInvoicesByProject(ctx context.Context, projectID string) ([]domain.Invoice, error)
}

// InvoiceWriter defines write operations for invoice data.
type InvoiceWriter interface {
	// SaveInvoiceInTx inserts a new invoice header.
	SaveInvoiceInTx(ctx context.Context, tx pgx.Tx, invoice domain.Invoice) error

	// FindInvoiceByIDForUpdate locks and returns an invoice with its items.
	FindInvoiceByIDForUpdate(ctx context.Context, tx pgx.Tx, invoiceID string) (*domain.Invoice, error)

	// FindDraftByProjectForUpdate locks and returns the project's DRAFT invoice,
	// or apperrors.ErrNotFound when none exists.
	FindDraftByProjectForUpdate(ctx context.Context, tx pgx.Tx, projectID string) (*domain.Invoice, error)

	// NextInvoiceNumberInTx atomically advances and returns the company's
	// invoice sequence value.
	NextInvoiceNumberInTx(ctx context.Context, tx pgx.Tx, companyID string) (int64, error)

	// FindItemByRefInTx returns the invoice line created for a source record,
	// or apperrors.ErrNotFound. Used for idempotent line creation.
	FindItemByRefInTx(ctx context.Context, tx pgx.Tx, invoiceID string, itemType domain.InvoiceItemType, refID string) (*domain.InvoiceItem, error)

	// SaveItemInTx inserts an invoice line.
	SaveItemInTx(ctx context.Context, tx pgx.Tx, item domain.InvoiceItem) error

	// UpdateItemInTx updates quantity, unit price and line total of a line.
	UpdateItemInTx(ctx context.Context, tx pgx.Tx, item domain.InvoiceItem) error

	// DeleteItemInTx removes an invoice line.
	DeleteItemInTx(ctx context.Context, tx pgx.Tx, itemID string) error

	// UpdateInvoiceInTx persists header-level fields that the recalculator and
	// payment application touch: currency, totals, status, trustDeducted.
	UpdateInvoiceInTx(ctx context.Context, tx pgx.Tx, invoice domain.Invoice, updatedBy string, updatedAt time.Time) error

	// SavePaymentInTx records a payment against an invoice.
	SavePaymentInTx(ctx context.Context, tx pgx.Tx, payment domain.Payment) error
}

// InvoiceRepositoryFacade combines all invoice-related repository interfaces.
type InvoiceRepositoryFacade interface {
	InvoiceReader
	InvoiceWriter
}

// InvoiceRepositoryWithTx extends InvoiceRepositoryFacade with transaction capabilities.
type InvoiceRepositoryWithTx interface {
	InvoiceRepositoryFacade
	TransactionManager
}
