package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexpraxis/legal_practice_app/internal/apperrors"
	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
	"github.com/lexpraxis/legal_practice_app/internal/utils/pagination"
)

type PgxTransactionRepository struct {
	BaseRepository
}

// newPgxTransactionRepository creates a new repository for ledger transaction data.
func newPgxTransactionRepository(pool *pgxpool.Pool) portsrepo.TransactionRepositoryWithTx {
	return &PgxTransactionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.TransactionRepositoryWithTx = (*PgxTransactionRepository)(nil)

// SaveTransactionInTx persists a transaction header and its lines inside the
// caller's database transaction.
func (r *PgxTransactionRepository) SaveTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction, lines []domain.TransactionLine) error {
	headerQuery := `
		INSERT INTO transactions (
			transaction_id, company_id, date, memo, status,
			original_transaction_id, reversing_transaction_id,
			created_at, created_by, last_updated_at, last_updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := tx.Exec(ctx, headerQuery,
		txn.TransactionID,
		txn.CompanyID,
		txn.Date,
		txn.Memo,
		txn.Status,
		txn.OriginalTransactionID,
		txn.ReversingTransactionID,
		txn.CreatedAt,
		txn.CreatedBy,
		txn.LastUpdatedAt,
		txn.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.TransactionID, err)
	}

	lineQuery := `
		INSERT INTO transaction_lines (
			line_id, transaction_id, account_id, debit, credit, currency_code, memo,
			created_at, created_by, last_updated_at, last_updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(lineQuery,
			line.LineID,
			line.TransactionID,
			line.AccountID,
			line.Debit,
			line.Credit,
			line.CurrencyCode,
			line.Memo,
			line.CreatedAt,
			line.CreatedBy,
			line.LastUpdatedAt,
			line.LastUpdatedBy,
		)
	}
	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to execute line batch for transaction %s: %w", txn.TransactionID, err)
	}
	return nil
}

// FindTransactionByID retrieves a transaction header (no lines).
func (r *PgxTransactionRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `
		SELECT transaction_id, company_id, date, memo, status,
		       original_transaction_id, reversing_transaction_id,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM transactions
		WHERE transaction_id = $1;
	`
	var txn domain.Transaction
	err := r.Pool.QueryRow(ctx, query, transactionID).Scan(
		&txn.TransactionID,
		&txn.CompanyID,
		&txn.Date,
		&txn.Memo,
		&txn.Status,
		&txn.OriginalTransactionID,
		&txn.ReversingTransactionID,
		&txn.CreatedAt,
		&txn.CreatedBy,
		&txn.LastUpdatedAt,
		&txn.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transaction %s: %w", transactionID, err)
	}
	return &txn, nil
}

// FindLinesByTransactionID retrieves all lines of a transaction.
func (r *PgxTransactionRepository) FindLinesByTransactionID(ctx context.Context, transactionID string) ([]domain.TransactionLine, error) {
	query := `
		SELECT line_id, transaction_id, account_id, debit, credit, currency_code, memo,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM transaction_lines
		WHERE transaction_id = $1
		ORDER BY created_at, line_id;
	`
	rows, err := r.Pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines for transaction %s: %w", transactionID, err)
	}
	defer rows.Close()

	return collectLines(rows)
}

func collectLines(rows pgx.Rows) ([]domain.TransactionLine, error) {
	lines := []domain.TransactionLine{}
	for rows.Next() {
		var l domain.TransactionLine
		err := rows.Scan(
			&l.LineID,
			&l.TransactionID,
			&l.AccountID,
			&l.Debit,
			&l.Credit,
			&l.CurrencyCode,
			&l.Memo,
			&l.CreatedAt,
			&l.CreatedBy,
			&l.LastUpdatedAt,
			&l.LastUpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction line row: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction line rows: %w", err)
	}
	return lines, nil
}

// ListTransactionLinesByAccountID retrieves a paginated list of lines posted
// against an account using token-based (keyset) pagination, newest first.
func (r *PgxTransactionRepository) ListTransactionLinesByAccountID(ctx context.Context, companyID, accountID string, limit int, nextToken *string) ([]domain.TransactionLine, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	// Fetch one extra row to know whether a next page exists.
	fetchLimit := limit + 1

	baseQuery := `
		SELECT l.line_id, l.transaction_id, l.account_id, l.debit, l.credit, l.currency_code, l.memo,
		       l.created_at, l.created_by, l.last_updated_at, l.last_updated_by, t.date
		FROM transaction_lines l
		JOIN transactions t ON l.transaction_id = t.transaction_id
		WHERE l.account_id = $1 AND t.company_id = $2
	`
	orderByClause := `ORDER BY t.date DESC, l.created_at DESC`

	args := []interface{}{accountID, companyID}
	query := baseQuery
	if nextToken != nil && *nextToken != "" {
		lastDate, lastCreatedAt, decodeErr := pagination.DecodeToken(*nextToken)
		if decodeErr != nil {
			return nil, nil, apperrors.NewAppError(400, "invalid nextToken", decodeErr)
		}
		query += ` AND (t.date, l.created_at) < ($3, $4) `
		args = append(args, lastDate, lastCreatedAt)
	}
	query += " " + orderByClause + " LIMIT $" + strconv.Itoa(len(args)+1) + ";"
	args = append(args, fetchLimit)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query transaction lines for account %s: %w", accountID, err)
	}
	defer rows.Close()

	type pageRow struct {
		line domain.TransactionLine
		date time.Time
	}
	page := make([]pageRow, 0, fetchLimit)
	for rows.Next() {
		var pr pageRow
		err := rows.Scan(
			&pr.line.LineID,
			&pr.line.TransactionID,
			&pr.line.AccountID,
			&pr.line.Debit,
			&pr.line.Credit,
			&pr.line.CurrencyCode,
			&pr.line.Memo,
			&pr.line.CreatedAt,
			&pr.line.CreatedBy,
			&pr.line.LastUpdatedAt,
			&pr.line.LastUpdatedBy,
			&pr.date,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan transaction line row: %w", err)
		}
		page = append(page, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating transaction line rows: %w", err)
	}

	var nextTokenVal *string
	count := len(page)
	if count > limit {
		last := page[limit-1]
		token := pagination.EncodeToken(last.date, last.line.CreatedAt)
		nextTokenVal = &token
		count = limit
	}
	lines := make([]domain.TransactionLine, count)
	for i := 0; i < count; i++ {
		lines[i] = page[i].line
	}
	return lines, nextTokenVal, nil
}

// UpdateStatusAndLinksInTx updates the status and reversal linkage of a transaction.
func (r *PgxTransactionRepository) UpdateStatusAndLinksInTx(ctx context.Context, tx pgx.Tx, transactionID string, status domain.TransactionStatus, reversingTransactionID *string, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE transactions
		SET status = $2, reversing_transaction_id = $3, last_updated_at = $4, last_updated_by = $5
		WHERE transaction_id = $1;
	`
	tag, err := tx.Exec(ctx, query, transactionID, status, reversingTransactionID, updatedAt, updatedBy)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", transactionID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
