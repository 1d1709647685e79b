package bankrecon

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quillbooks/quillbooks/internal/platform/db"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// Repository persists reconciliation sessions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements that must run inside one transaction.
type TxRepository interface {
	InsertReconciliation(ctx context.Context, r Reconciliation) (int64, error)
	GetReconciliationForUpdate(ctx context.Context, orgID, id int64) (Reconciliation, error)
	InsertTransaction(ctx context.Context, t Transaction) (int64, error)
	RecomputeTotals(ctx context.Context, reconciliationID int64) error
	GetTransaction(ctx context.Context, orgID, id int64) (Transaction, ReconciliationStatus, error)
	GetPaymentAmount(ctx context.Context, orgID, paymentID int64) (decimal.Decimal, error)
	MarkMatched(ctx context.Context, txnID, paymentID int64) error
	CountUnmatched(ctx context.Context, reconciliationID int64) (int, error)
	UpdateStatus(ctx context.Context, reconciliationID int64, status ReconciliationStatus) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const reconColumns = `id, org_id, bank_account, statement_date, opening_balance, closing_balance,
	total_deposits, total_withdrawals, status, created_at`

func scanReconciliation(row pgx.Row) (Reconciliation, error) {
	var rec Reconciliation
	err := row.Scan(&rec.ID, &rec.OrgID, &rec.BankAccount, &rec.StatementDate, &rec.OpeningBalance,
		&rec.ClosingBalance, &rec.TotalDeposits, &rec.TotalWithdrawals, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reconciliation{}, fmt.Errorf("bankrecon: %w: reconciliation not found", shared.ErrNotFound)
	}
	if err != nil {
		return Reconciliation{}, fmt.Errorf("bankrecon: get reconciliation: %w", err)
	}
	return rec, nil
}

// GetReconciliation loads one session without its statement lines.
func (r *Repository) GetReconciliation(ctx context.Context, orgID, id int64) (Reconciliation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reconColumns+` FROM bank_reconciliations WHERE org_id = $1 AND id = $2`, orgID, id)
	return scanReconciliation(row)
}

// ListTransactions returns the lines of a session ordered by date then id.
func (r *Repository) ListTransactions(ctx context.Context, orgID, reconciliationID int64) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.reconciliation_id, t.txn_date, t.description, t.amount, t.txn_type,
		       COALESCE(t.reference_no, ''), t.matched, t.matched_payment_id
		FROM bank_transactions t
		JOIN bank_reconciliations r ON r.id = t.reconciliation_id
		WHERE r.org_id = $1 AND t.reconciliation_id = $2
		ORDER BY t.txn_date, t.id`, orgID, reconciliationID)
	if err != nil {
		return nil, fmt.Errorf("bankrecon: list transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.ReconciliationID, &t.Date, &t.Description, &t.Amount,
			&t.Type, &t.ReferenceNo, &t.Matched, &t.MatchedPaymentID); err != nil {
			return nil, fmt.Errorf("bankrecon: scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ListReconciliations returns sessions newest statement first.
func (r *Repository) ListReconciliations(ctx context.Context, orgID int64, limit, offset int) ([]Reconciliation, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bank_reconciliations WHERE org_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("bankrecon: count reconciliations: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+reconColumns+`
		FROM bank_reconciliations
		WHERE org_id = $1
		ORDER BY statement_date DESC, id DESC
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("bankrecon: list reconciliations: %w", err)
	}
	defer rows.Close()

	var sessions []Reconciliation
	for rows.Next() {
		var rec Reconciliation
		if err := rows.Scan(&rec.ID, &rec.OrgID, &rec.BankAccount, &rec.StatementDate, &rec.OpeningBalance,
			&rec.ClosingBalance, &rec.TotalDeposits, &rec.TotalWithdrawals, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("bankrecon: scan reconciliation: %w", err)
		}
		sessions = append(sessions, rec)
	}
	return sessions, total, rows.Err()
}

func (r *txRepository) InsertReconciliation(ctx context.Context, rec Reconciliation) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO bank_reconciliations
			(org_id, bank_account, statement_date, opening_balance, closing_balance,
			 total_deposits, total_withdrawals, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		rec.OrgID, rec.BankAccount, rec.StatementDate, rec.OpeningBalance, rec.ClosingBalance,
		rec.TotalDeposits, rec.TotalWithdrawals, rec.Status, rec.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("bankrecon: insert reconciliation: %w", err)
	}
	return id, nil
}

func (r *txRepository) GetReconciliationForUpdate(ctx context.Context, orgID, id int64) (Reconciliation, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+reconColumns+` FROM bank_reconciliations WHERE org_id = $1 AND id = $2 FOR UPDATE`, orgID, id)
	return scanReconciliation(row)
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO bank_transactions
			(reconciliation_id, txn_date, description, amount, txn_type, reference_no, matched)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), FALSE)
		RETURNING id`,
		t.ReconciliationID, t.Date, t.Description, t.Amount, t.Type, t.ReferenceNo).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("bankrecon: insert transaction: %w", err)
	}
	return id, nil
}

// RecomputeTotals rebuilds the parent's deposit and withdrawal sums from all
// child rows. Runs while the parent row is locked.
func (r *txRepository) RecomputeTotals(ctx context.Context, reconciliationID int64) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE bank_reconciliations SET
			total_deposits = (
				SELECT COALESCE(SUM(amount), 0) FROM bank_transactions
				WHERE reconciliation_id = $1 AND txn_type IN ('DEPOSIT', 'TRANSFER', 'INTEREST')),
			total_withdrawals = (
				SELECT COALESCE(SUM(amount), 0) FROM bank_transactions
				WHERE reconciliation_id = $1 AND txn_type NOT IN ('DEPOSIT', 'TRANSFER', 'INTEREST'))
		WHERE id = $1`, reconciliationID)
	if err != nil {
		return fmt.Errorf("bankrecon: recompute totals: %w", err)
	}
	return nil
}

func (r *txRepository) GetTransaction(ctx context.Context, orgID, id int64) (Transaction, ReconciliationStatus, error) {
	var (
		t      Transaction
		status ReconciliationStatus
	)
	err := r.tx.QueryRow(ctx, `
		SELECT t.id, t.reconciliation_id, t.txn_date, t.description, t.amount, t.txn_type,
		       COALESCE(t.reference_no, ''), t.matched, t.matched_payment_id, r.status
		FROM bank_transactions t
		JOIN bank_reconciliations r ON r.id = t.reconciliation_id
		WHERE r.org_id = $1 AND t.id = $2
		FOR UPDATE OF t`, orgID, id).
		Scan(&t.ID, &t.ReconciliationID, &t.Date, &t.Description, &t.Amount, &t.Type,
			&t.ReferenceNo, &t.Matched, &t.MatchedPaymentID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, "", fmt.Errorf("bankrecon: %w: transaction not found", shared.ErrNotFound)
	}
	if err != nil {
		return Transaction{}, "", fmt.Errorf("bankrecon: get transaction: %w", err)
	}
	return t, status, nil
}

func (r *txRepository) GetPaymentAmount(ctx context.Context, orgID, paymentID int64) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT amount FROM payments WHERE org_id = $1 AND id = $2`, orgID, paymentID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("bankrecon: %w: payment not found", shared.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("bankrecon: get payment amount: %w", err)
	}
	return amount, nil
}

func (r *txRepository) MarkMatched(ctx context.Context, txnID, paymentID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_transactions SET matched = TRUE, matched_payment_id = $2 WHERE id = $1`, txnID, paymentID)
	if err != nil {
		return fmt.Errorf("bankrecon: mark matched: %w", err)
	}
	return nil
}

func (r *txRepository) CountUnmatched(ctx context.Context, reconciliationID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM bank_transactions WHERE reconciliation_id = $1 AND NOT matched`, reconciliationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("bankrecon: count unmatched: %w", err)
	}
	return count, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, reconciliationID int64, status ReconciliationStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_reconciliations SET status = $2 WHERE id = $1`, reconciliationID, status)
	if err != nil {
		return fmt.Errorf("bankrecon: update status: %w", err)
	}
	return nil
}
