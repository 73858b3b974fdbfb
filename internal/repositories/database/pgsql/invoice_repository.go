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

const invoiceColumns = `invoice_id, company_id, client_id, project_id, invoice_number, currency_code, status, issue_date, subtotal, discount, tax, total, trust_deducted, created_at, created_by, last_updated_at, last_updated_by`

const invoiceItemColumns = `item_id, invoice_id, item_type, ref_id, details, quantity, unit_price, line_total, created_at, created_by, last_updated_at, last_updated_by`

type PgxInvoiceRepository struct {
	BaseRepository
}

// newPgxInvoiceRepository creates a new repository for invoice data.
func newPgxInvoiceRepository(pool *pgxpool.Pool) portsrepo.InvoiceRepositoryWithTx {
	return &PgxInvoiceRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.InvoiceRepositoryWithTx = (*PgxInvoiceRepository)(nil)

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.InvoiceID,
		&inv.CompanyID,
		&inv.ClientID,
		&inv.ProjectID,
		&inv.InvoiceNumber,
		&inv.CurrencyCode,
		&inv.Status,
		&inv.IssueDate,
		&inv.Subtotal,
		&inv.Discount,
		&inv.Tax,
		&inv.Total,
		&inv.TrustDeducted,
		&inv.CreatedAt,
		&inv.CreatedBy,
		&inv.LastUpdatedAt,
		&inv.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan invoice row: %w", err)
	}
	return &inv, nil
}

func scanInvoiceItem(row pgx.Row) (*domain.InvoiceItem, error) {
	var item domain.InvoiceItem
	err := row.Scan(
		&item.ItemID,
		&item.InvoiceID,
		&item.ItemType,
		&item.RefID,
		&item.Details,
		&item.Quantity,
		&item.UnitPrice,
		&item.LineTotal,
		&item.CreatedAt,
		&item.CreatedBy,
		&item.LastUpdatedAt,
		&item.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan invoice item row: %w", err)
	}
	return &item, nil
}

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PgxInvoiceRepository) loadItems(ctx context.Context, q pgxQuerier, invoiceID string) ([]domain.InvoiceItem, error) {
	query := `
		SELECT ` + invoiceItemColumns + `
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY created_at, item_id;
	`
	rows, err := q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items for invoice %s: %w", invoiceID, err)
	}
	defer rows.Close()

	items := []domain.InvoiceItem{}
	for rows.Next() {
		item, err := scanInvoiceItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice item rows: %w", err)
	}
	return items, nil
}

// FindInvoiceByID retrieves an invoice together with its items.
func (r *PgxInvoiceRepository) FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_id = $1;`
	inv, err := scanInvoice(r.Pool.QueryRow(ctx, query, invoiceID))
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, r.Pool, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

// ListInvoicesByProject retrieves all invoices for a project, newest first.
// Items are not loaded.
func (r *PgxInvoiceRepository) ListInvoicesByProject(ctx context.Context, projectID string) ([]domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE project_id = $1
		ORDER BY created_at DESC;
	`
	rows, err := r.Pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices for project %s: %w", projectID, err)
	}
	defer rows.Close()

	invoices := []domain.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice rows: %w", err)
	}
	return invoices, nil
}

// SaveInvoiceInTx inserts a new invoice header.
func (r *PgxInvoiceRepository) SaveInvoiceInTx(ctx context.Context, tx pgx.Tx, invoice domain.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17);
	`
	_, err := tx.Exec(ctx, query,
		invoice.InvoiceID,
		invoice.CompanyID,
		invoice.ClientID,
		invoice.ProjectID,
		invoice.InvoiceNumber,
		invoice.CurrencyCode,
		invoice.Status,
		invoice.IssueDate,
		invoice.Subtotal,
		invoice.Discount,
		invoice.Tax,
		invoice.Total,
		invoice.TrustDeducted,
		invoice.CreatedAt,
		invoice.CreatedBy,
		invoice.LastUpdatedAt,
		invoice.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: invoice number %s already exists for company %s", apperrors.ErrDuplicate, invoice.InvoiceNumber, invoice.CompanyID)
		}
		return fmt.Errorf("failed to save invoice %s: %w", invoice.InvoiceID, err)
	}
	return nil
}

// FindInvoiceByIDForUpdate locks and returns an invoice with its items.
func (r *PgxInvoiceRepository) FindInvoiceByIDForUpdate(ctx context.Context, tx pgx.Tx, invoiceID string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_id = $1 FOR UPDATE;`
	inv, err := scanInvoice(tx.QueryRow(ctx, query, invoiceID))
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

// FindDraftByProjectForUpdate locks and returns the project's DRAFT invoice.
// A project has at most one draft at a time; the oldest wins if data drift
// ever produces more.
func (r *PgxInvoiceRepository) FindDraftByProjectForUpdate(ctx context.Context, tx pgx.Tx, projectID string) (*domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE project_id = $1 AND status = 'DRAFT'
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE;
	`
	inv, err := scanInvoice(tx.QueryRow(ctx, query, projectID))
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, tx, inv.InvoiceID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

// NextInvoiceNumberInTx atomically advances and returns the company's invoice
// sequence. The upsert serializes concurrent callers on the company row.
func (r *PgxInvoiceRepository) NextInvoiceNumberInTx(ctx context.Context, tx pgx.Tx, companyID string) (int64, error) {
	query := `
		INSERT INTO invoice_sequences (company_id, last_value)
		VALUES ($1, 1)
		ON CONFLICT (company_id)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value;
	`
	var next int64
	if err := tx.QueryRow(ctx, query, companyID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to advance invoice sequence for company %s: %w", companyID, err)
	}
	return next, nil
}

// FindItemByRefInTx returns the invoice line created for a source record.
func (r *PgxInvoiceRepository) FindItemByRefInTx(ctx context.Context, tx pgx.Tx, invoiceID string, itemType domain.InvoiceItemType, refID string) (*domain.InvoiceItem, error) {
	query := `
		SELECT ` + invoiceItemColumns + `
		FROM invoice_items
		WHERE invoice_id = $1 AND item_type = $2 AND ref_id = $3;
	`
	return scanInvoiceItem(tx.QueryRow(ctx, query, invoiceID, itemType, refID))
}

// SaveItemInTx inserts an invoice line.
func (r *PgxInvoiceRepository) SaveItemInTx(ctx context.Context, tx pgx.Tx, item domain.InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (` + invoiceItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err := tx.Exec(ctx, query,
		item.ItemID,
		item.InvoiceID,
		item.ItemType,
		item.RefID,
		item.Details,
		item.Quantity,
		item.UnitPrice,
		item.LineTotal,
		item.CreatedAt,
		item.CreatedBy,
		item.LastUpdatedAt,
		item.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: line for this source record already exists on invoice %s", apperrors.ErrDuplicate, item.InvoiceID)
		}
		return fmt.Errorf("failed to save invoice item %s: %w", item.ItemID, err)
	}
	return nil
}

// UpdateItemInTx updates the billable fields of a line.
func (r *PgxInvoiceRepository) UpdateItemInTx(ctx context.Context, tx pgx.Tx, item domain.InvoiceItem) error {
	query := `
		UPDATE invoice_items
		SET details = $2, quantity = $3, unit_price = $4, line_total = $5,
		    last_updated_at = $6, last_updated_by = $7
		WHERE item_id = $1;
	`
	tag, err := tx.Exec(ctx, query,
		item.ItemID,
		item.Details,
		item.Quantity,
		item.UnitPrice,
		item.LineTotal,
		item.LastUpdatedAt,
		item.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice item %s: %w", item.ItemID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteItemInTx removes an invoice line.
func (r *PgxInvoiceRepository) DeleteItemInTx(ctx context.Context, tx pgx.Tx, itemID string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE item_id = $1;`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete invoice item %s: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateInvoiceInTx persists the header fields that recalculation, currency
// changes and payment application touch.
func (r *PgxInvoiceRepository) UpdateInvoiceInTx(ctx context.Context, tx pgx.Tx, invoice domain.Invoice, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE invoices
		SET currency_code = $2, status = $3, subtotal = $4, discount = $5, tax = $6,
		    total = $7, trust_deducted = $8, last_updated_at = $9, last_updated_by = $10
		WHERE invoice_id = $1;
	`
	tag, err := tx.Exec(ctx, query,
		invoice.InvoiceID,
		invoice.CurrencyCode,
		invoice.Status,
		invoice.Subtotal,
		invoice.Discount,
		invoice.Tax,
		invoice.Total,
		invoice.TrustDeducted,
		updatedAt,
		updatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice %s: %w", invoice.InvoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SavePaymentInTx records a payment against an invoice.
func (r *PgxInvoiceRepository) SavePaymentInTx(ctx context.Context, tx pgx.Tx, payment domain.Payment) error {
	query := `
		INSERT INTO payments (
			payment_id, company_id, invoice_id, amount, currency_code, method, paid_on,
			created_at, created_by, last_updated_at, last_updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := tx.Exec(ctx, query,
		payment.PaymentID,
		payment.CompanyID,
		payment.InvoiceID,
		payment.Amount,
		payment.CurrencyCode,
		payment.Method,
		payment.PaidOn,
		payment.CreatedAt,
		payment.CreatedBy,
		payment.LastUpdatedAt,
		payment.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save payment %s: %w", payment.PaymentID, err)
	}
	return nil
}
