package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brokerage/commission/internal/domain"
)

const transactionColumns = `id, agent_id, property_address, client_name, market_type,
	transaction_type, commission_amount, commission_type, status, reviewer_id,
	approver_id, rejection_reason, created_at, updated_at`

// ErrStaleStatus is returned by UpdateStatus when the stored status no
// longer matches the expected one.
var ErrStaleStatus = errors.New("transaction status changed concurrently")

type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) Insert(ctx context.Context, tx *domain.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		tx.ID, tx.AgentID, tx.PropertyAddress, tx.ClientName, string(tx.MarketType),
		string(tx.TransactionType), tx.CommissionAmount.String(), string(tx.CommissionType),
		string(tx.Status), tx.ReviewerID, tx.ApproverID, tx.RejectionReason,
		formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID returns a *domain.NotFoundError when no transaction has the id.
func (r *TransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "transaction", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (r *TransactionRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count)
	return count, err
}

// StatusUpdate describes a compare-and-set status change. Empty actor and
// reason fields leave the stored values untouched.
type StatusUpdate struct {
	ID              string
	From            domain.TransactionStatus
	To              domain.TransactionStatus
	ReviewerID      string
	ApproverID      string
	RejectionReason string
	At              time.Time
}

// UpdateStatus moves a transaction from u.From to u.To. It returns
// ErrStaleStatus if the transaction is no longer in u.From.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, u StatusUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			status = ?,
			reviewer_id = CASE WHEN ? = '' THEN reviewer_id ELSE ? END,
			approver_id = CASE WHEN ? = '' THEN approver_id ELSE ? END,
			rejection_reason = CASE WHEN ? = '' THEN rejection_reason ELSE ? END,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(u.To),
		u.ReviewerID, u.ReviewerID,
		u.ApproverID, u.ApproverID,
		u.RejectionReason, u.RejectionReason,
		formatTime(u.At), u.ID, string(u.From),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s -> %s: %w", u.ID, u.From, u.To, ErrStaleStatus)
	}
	return nil
}

type TransactionFilter struct {
	Status  string
	AgentID string
	From    *time.Time
	To      *time.Time
	Page    int
	Limit   int
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int, error) {
	where, args := buildTransactionWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	_, limit, offset := pageBounds(f.Page, f.Limit)
	args = append(args, limit, offset)

	// Oldest first so the approval queue is worked in arrival order.
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions"+where+" ORDER BY created_at, id LIMIT ? OFFSET ?", args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		txns = append(txns, *tx)
	}
	return txns, total, rows.Err()
}

// StatusCounts returns the number of transactions per status.
func (r *TransactionRepo) StatusCounts(ctx context.Context) (map[domain.TransactionStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM transactions GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TransactionStatus]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[domain.TransactionStatus(s)] = n
	}
	return counts, rows.Err()
}

// --- helpers ---

func buildTransactionWhere(f TransactionFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.AgentID != "" {
		clauses = append(clauses, "agent_id = ?")
		args = append(args, f.AgentID)
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(*f.To))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var market, txnType, commType, status, createdAt, updatedAt string

	err := row.Scan(
		&tx.ID, &tx.AgentID, &tx.PropertyAddress, &tx.ClientName, &market,
		&txnType, &tx.CommissionAmount, &commType, &status, &tx.ReviewerID,
		&tx.ApproverID, &tx.RejectionReason, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.MarketType = domain.MarketType(market)
	tx.TransactionType = domain.TransactionType(txnType)
	tx.CommissionType = domain.CommissionType(commType)
	tx.Status = domain.TransactionStatus(status)
	tx.CreatedAt = parseTime(createdAt)
	tx.UpdatedAt = parseTime(updatedAt)
	return &tx, nil
}
