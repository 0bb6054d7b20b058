package repository

import (
	"context"
	"fmt"

	"github.com/brokerage/commission/internal/domain"
)

type EventRepo struct {
	db DBTX
}

func NewEventRepo(db DBTX) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Append(ctx context.Context, e *domain.TransactionEvent) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transaction_events
		(transaction_id, from_status, to_status, actor_id, note, occurred_at)
		VALUES (?,?,?,?,?,?)`,
		e.TransactionID, string(e.FromStatus), string(e.ToStatus), e.ActorID, e.Note,
		formatTime(e.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

func (r *EventRepo) ListByTransaction(ctx context.Context, txnID string) ([]domain.TransactionEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, from_status, to_status, actor_id, note, occurred_at
		FROM transaction_events WHERE transaction_id = ? ORDER BY id`, txnID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.TransactionEvent
	for rows.Next() {
		var e domain.TransactionEvent
		var from, to, at string
		if err := rows.Scan(&e.ID, &e.TransactionID, &from, &to, &e.ActorID, &e.Note, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.FromStatus = domain.TransactionStatus(from)
		e.ToStatus = domain.TransactionStatus(to)
		e.OccurredAt = parseTime(at)
		events = append(events, e)
	}
	return events, rows.Err()
}
