package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/brokerage/commission/internal/domain"
)

const ledgerColumns = "id, transaction_id, recipient_agent_id, role, amount, rate_percent, depth, created_at"

// LedgerRepo is append-only: there are no update or delete methods, and
// the schema rejects both with triggers.
type LedgerRepo struct {
	db DBTX
}

func NewLedgerRepo(db DBTX) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// InsertEntries writes all entries. A duplicate (transaction, recipient,
// role) violates the unique index and fails the call.
func (r *LedgerRepo) InsertEntries(ctx context.Context, entries []domain.LedgerEntry) error {
	for i := range entries {
		e := &entries[i]
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO ledger_entries (`+ledgerColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
			e.ID, e.TransactionID, e.RecipientAgentID, string(e.Role),
			e.Amount.String(), e.RatePercent.String(), e.Depth, formatTime(e.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert ledger entry %d: %w", i, err)
		}
	}
	return nil
}

// ExistsForTransaction reports whether any entry references txnID.
func (r *LedgerRepo) ExistsForTransaction(ctx context.Context, txnID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE transaction_id = ?", txnID,
	).Scan(&count)
	return count > 0, err
}

// ListByTransaction returns the entries for a transaction, own commission
// first and then bonuses from nearest to farthest hop.
func (r *LedgerRepo) ListByTransaction(ctx context.Context, txnID string) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledger_entries WHERE transaction_id = ? ORDER BY depth, id", txnID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

type LedgerFilter struct {
	RecipientAgentID string
	Role             string
	Page             int
	Limit            int
}

func (r *LedgerRepo) ListByRecipient(ctx context.Context, f LedgerFilter) ([]domain.LedgerEntry, error) {
	_, limit, offset := pageBounds(f.Page, f.Limit)
	q := "SELECT " + ledgerColumns + " FROM ledger_entries WHERE recipient_agent_id = ?"
	args := []any{f.RecipientAgentID}
	if f.Role != "" {
		q += " AND role = ?"
		args = append(args, f.Role)
	}
	q += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

// Totals sums amounts per role. Sums are done in Go because amounts are
// stored as exact decimal strings.
func (r *LedgerRepo) Totals(ctx context.Context) (map[domain.LedgerRole]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT role, amount FROM ledger_entries")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := map[domain.LedgerRole]decimal.Decimal{
		domain.RoleOwnCommission:   decimal.Zero,
		domain.RoleLeadershipBonus: decimal.Zero,
	}
	for rows.Next() {
		var role string
		var amount decimal.Decimal
		if err := rows.Scan(&role, &amount); err != nil {
			return nil, err
		}
		totals[domain.LedgerRole(role)] = totals[domain.LedgerRole(role)].Add(amount)
	}
	return totals, rows.Err()
}

func scanLedgerEntries(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var role, createdAt string
		if err := rows.Scan(
			&e.ID, &e.TransactionID, &e.RecipientAgentID, &role,
			&e.Amount, &e.RatePercent, &e.Depth, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Role = domain.LedgerRole(role)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
