package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/apperrors"
	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
)

const trustAccountColumns = `trust_account_id, company_id, client_id, project_id, currency_code, kind, balance, created_at, created_by, last_updated_at, last_updated_by`

const advanceColumns = `advance_id, company_id, client_id, project_id, amount, consumed, currency_code, kind, paid_on, created_at, created_by, last_updated_at, last_updated_by`

type PgxTrustRepository struct {
	BaseRepository
}

// newPgxTrustRepository creates a new repository for trust sub-ledger and advance data.
func newPgxTrustRepository(pool *pgxpool.Pool) portsrepo.TrustRepositoryWithTx {
	return &PgxTrustRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.TrustRepositoryWithTx = (*PgxTrustRepository)(nil)

func scanTrustAccount(row pgx.Row) (*domain.TrustAccount, error) {
	var acc domain.TrustAccount
	err := row.Scan(
		&acc.TrustAccountID,
		&acc.CompanyID,
		&acc.ClientID,
		&acc.ProjectID,
		&acc.CurrencyCode,
		&acc.Kind,
		&acc.Balance,
		&acc.CreatedAt,
		&acc.CreatedBy,
		&acc.LastUpdatedAt,
		&acc.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan trust account row: %w", err)
	}
	return &acc, nil
}

// FindTrustAccountByID retrieves a trust account.
func (r *PgxTrustRepository) FindTrustAccountByID(ctx context.Context, trustAccountID string) (*domain.TrustAccount, error) {
	query := `SELECT ` + trustAccountColumns + ` FROM trust_accounts WHERE trust_account_id = $1;`
	return scanTrustAccount(r.Pool.QueryRow(ctx, query, trustAccountID))
}

// FindTrustAccountForUpdate locks and returns the account for the given key.
// The partial unique indexes treat NULL project_id as the client-wide slot.
func (r *PgxTrustRepository) FindTrustAccountForUpdate(ctx context.Context, tx pgx.Tx, key portsrepo.TrustAccountKey) (*domain.TrustAccount, error) {
	query := `
		SELECT ` + trustAccountColumns + `
		FROM trust_accounts
		WHERE company_id = $1 AND client_id = $2
		  AND project_id IS NOT DISTINCT FROM $3
		  AND currency_code = $4 AND kind = $5
		FOR UPDATE;
	`
	return scanTrustAccount(tx.QueryRow(ctx, query, key.CompanyID, key.ClientID, key.ProjectID, key.CurrencyCode, key.Kind))
}

// SaveTrustAccountInTx inserts a new trust account.
func (r *PgxTrustRepository) SaveTrustAccountInTx(ctx context.Context, tx pgx.Tx, account domain.TrustAccount) error {
	query := `
		INSERT INTO trust_accounts (` + trustAccountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := tx.Exec(ctx, query,
		account.TrustAccountID,
		account.CompanyID,
		account.ClientID,
		account.ProjectID,
		account.CurrencyCode,
		account.Kind,
		account.Balance,
		account.CreatedAt,
		account.CreatedBy,
		account.LastUpdatedAt,
		account.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: trust account for this key already exists", apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to save trust account %s: %w", account.TrustAccountID, err)
	}
	return nil
}

// AppendTrustTransactionInTx inserts the transaction and atomically adjusts
// the cached account balance, returning the balance after the adjustment.
func (r *PgxTrustRepository) AppendTrustTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.TrustTransaction) (decimal.Decimal, error) {
	insertQuery := `
		INSERT INTO trust_transactions (
			trust_transaction_id, trust_account_id, txn_type, amount, description,
			invoice_id, project_id, created_at, created_by, last_updated_at, last_updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := tx.Exec(ctx, insertQuery,
		txn.TrustTransactionID,
		txn.TrustAccountID,
		txn.TxnType,
		txn.Amount,
		txn.Description,
		txn.InvoiceID,
		txn.ProjectID,
		txn.CreatedAt,
		txn.CreatedBy,
		txn.LastUpdatedAt,
		txn.LastUpdatedBy,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to insert trust transaction %s: %w", txn.TrustTransactionID, err)
	}

	updateQuery := `
		UPDATE trust_accounts
		SET balance = balance + $2, last_updated_at = $3, last_updated_by = $4
		WHERE trust_account_id = $1
		RETURNING balance;
	`
	var newBalance decimal.Decimal
	err = tx.QueryRow(ctx, updateQuery, txn.TrustAccountID, txn.SignedAmount(), txn.LastUpdatedAt, txn.LastUpdatedBy).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, apperrors.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to adjust trust account balance for %s: %w", txn.TrustAccountID, err)
	}
	return newBalance, nil
}

// SumTrustTransactions returns the signed sum (credits minus debits) of all
// transactions under a trust account.
func (r *PgxTrustRepository) SumTrustTransactions(ctx context.Context, trustAccountID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN txn_type = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM trust_transactions
		WHERE trust_account_id = $1;
	`
	var sum decimal.Decimal
	if err := r.Pool.QueryRow(ctx, query, trustAccountID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum trust transactions for %s: %w", trustAccountID, err)
	}
	return sum, nil
}

// ListTrustTransactions retrieves the append-only log of a trust account, oldest first.
func (r *PgxTrustRepository) ListTrustTransactions(ctx context.Context, trustAccountID string) ([]domain.TrustTransaction, error) {
	query := `
		SELECT trust_transaction_id, trust_account_id, txn_type, amount, description,
		       invoice_id, project_id, created_at, created_by, last_updated_at, last_updated_by
		FROM trust_transactions
		WHERE trust_account_id = $1
		ORDER BY created_at, trust_transaction_id;
	`
	rows, err := r.Pool.Query(ctx, query, trustAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trust transactions for %s: %w", trustAccountID, err)
	}
	defer rows.Close()

	txns := []domain.TrustTransaction{}
	for rows.Next() {
		var t domain.TrustTransaction
		err := rows.Scan(
			&t.TrustTransactionID,
			&t.TrustAccountID,
			&t.TxnType,
			&t.Amount,
			&t.Description,
			&t.InvoiceID,
			&t.ProjectID,
			&t.CreatedAt,
			&t.CreatedBy,
			&t.LastUpdatedAt,
			&t.LastUpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trust transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trust transaction rows: %w", err)
	}
	return txns, nil
}

// ListForPaymentForUpdate locks and returns the client's TRUST accounts in the
// given currency, project-scoped accounts first, then client-wide.
func (r *PgxTrustRepository) ListForPaymentForUpdate(ctx context.Context, tx pgx.Tx, companyID, clientID, projectID, currencyCode string) ([]domain.TrustAccount, error) {
	query := `
		SELECT ` + trustAccountColumns + `
		FROM trust_accounts
		WHERE company_id = $1 AND client_id = $2 AND currency_code = $3 AND kind = 'TRUST'
		  AND (project_id = $4 OR project_id IS NULL)
		ORDER BY project_id NULLS LAST, created_at
		FOR UPDATE;
	`
	rows, err := tx.Query(ctx, query, companyID, clientID, currencyCode, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trust accounts for payment: %w", err)
	}
	defer rows.Close()

	accounts := []domain.TrustAccount{}
	for rows.Next() {
		var acc domain.TrustAccount
		err := rows.Scan(
			&acc.TrustAccountID,
			&acc.CompanyID,
			&acc.ClientID,
			&acc.ProjectID,
			&acc.CurrencyCode,
			&acc.Kind,
			&acc.Balance,
			&acc.CreatedAt,
			&acc.CreatedBy,
			&acc.LastUpdatedAt,
			&acc.LastUpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trust account row: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trust account rows: %w", err)
	}
	return accounts, nil
}

// FindAdvanceByID retrieves an advance payment.
func (r *PgxTrustRepository) FindAdvanceByID(ctx context.Context, advanceID string) (*domain.AdvancePayment, error) {
	query := `SELECT ` + advanceColumns + ` FROM advance_payments WHERE advance_id = $1;`
	var a domain.AdvancePayment
	err := r.Pool.QueryRow(ctx, query, advanceID).Scan(
		&a.AdvanceID,
		&a.CompanyID,
		&a.ClientID,
		&a.ProjectID,
		&a.Amount,
		&a.Consumed,
		&a.CurrencyCode,
		&a.Kind,
		&a.PaidOn,
		&a.CreatedAt,
		&a.CreatedBy,
		&a.LastUpdatedAt,
		&a.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find advance %s: %w", advanceID, err)
	}
	return &a, nil
}

// SaveAdvanceInTx inserts a new advance payment.
func (r *PgxTrustRepository) SaveAdvanceInTx(ctx context.Context, tx pgx.Tx, advance domain.AdvancePayment) error {
	query := `
		INSERT INTO advance_payments (` + advanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`
	_, err := tx.Exec(ctx, query,
		advance.AdvanceID,
		advance.CompanyID,
		advance.ClientID,
		advance.ProjectID,
		advance.Amount,
		advance.Consumed,
		advance.CurrencyCode,
		advance.Kind,
		advance.PaidOn,
		advance.CreatedAt,
		advance.CreatedBy,
		advance.LastUpdatedAt,
		advance.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save advance %s: %w", advance.AdvanceID, err)
	}
	return nil
}

// ListOutstandingByProjectForUpdate locks and returns the project's advances
// with unconsumed balance, same-currency advances first, then paid_on ascending.
func (r *PgxTrustRepository) ListOutstandingByProjectForUpdate(ctx context.Context, tx pgx.Tx, projectID, preferCurrencyCode string) ([]domain.AdvancePayment, error) {
	query := `
		SELECT ` + advanceColumns + `
		FROM advance_payments
		WHERE project_id = $1 AND consumed < amount
		ORDER BY (currency_code = $2) DESC, paid_on ASC, advance_id
		FOR UPDATE;
	`
	rows, err := tx.Query(ctx, query, projectID, preferCurrencyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query outstanding advances for project %s: %w", projectID, err)
	}
	defer rows.Close()

	advances := []domain.AdvancePayment{}
	for rows.Next() {
		var a domain.AdvancePayment
		err := rows.Scan(
			&a.AdvanceID,
			&a.CompanyID,
			&a.ClientID,
			&a.ProjectID,
			&a.Amount,
			&a.Consumed,
			&a.CurrencyCode,
			&a.Kind,
			&a.PaidOn,
			&a.CreatedAt,
			&a.CreatedBy,
			&a.LastUpdatedAt,
			&a.LastUpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan advance row: %w", err)
		}
		advances = append(advances, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating advance rows: %w", err)
	}
	return advances, nil
}

// AddConsumedInTx bumps consumed by delta with a guard so consumed never
// exceeds amount; a violated guard surfaces as apperrors.ErrConflict.
func (r *PgxTrustRepository) AddConsumedInTx(ctx context.Context, tx pgx.Tx, advanceID string, delta decimal.Decimal, updatedBy string) error {
	query := `
		UPDATE advance_payments
		SET consumed = consumed + $2, last_updated_at = NOW(), last_updated_by = $3
		WHERE advance_id = $1 AND consumed + $2 <= amount;
	`
	tag, err := tx.Exec(ctx, query, advanceID, delta, updatedBy)
	if err != nil {
		return fmt.Errorf("failed to update consumed for advance %s: %w", advanceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: consuming %s would exceed advance %s", apperrors.ErrConflict, delta.String(), advanceID)
	}
	return nil
}
