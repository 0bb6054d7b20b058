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

const agentColumns = "id, name, email, tier, recruiter_id, created_at, updated_at"

type AgentRepo struct {
	db DBTX
}

func NewAgentRepo(db DBTX) *AgentRepo {
	return &AgentRepo{db: db}
}

func (r *AgentRepo) Insert(ctx context.Context, a *domain.Agent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO agents (`+agentColumns+`) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Email, string(a.Tier), nullableString(a.RecruiterID),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// GetByID returns a *domain.NotFoundError when no agent has the id.
func (r *AgentRepo) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+agentColumns+" FROM agents WHERE id = ?", id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "agent", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return a, nil
}

// Exists reports whether an agent with the id is stored.
func (r *AgentRepo) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM agents WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

// GetRecruits returns the direct recruits of recruiterID.
func (r *AgentRepo) GetRecruits(ctx context.Context, recruiterID string) ([]domain.Agent, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE recruiter_id = ? ORDER BY created_at, id", recruiterID,
	)
	if err != nil {
		return nil, fmt.Errorf("query recruits: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (r *AgentRepo) CountRecruits(ctx context.Context, recruiterID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM agents WHERE recruiter_id = ?", recruiterID,
	).Scan(&count)
	return count, err
}

func (r *AgentRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM agents").Scan(&count)
	return count, err
}

// UpdateTier changes an agent's tier. Recruiter links are never updated.
func (r *AgentRepo) UpdateTier(ctx context.Context, id string, t domain.AgentTier, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE agents SET tier = ?, updated_at = ? WHERE id = ?",
		string(t), formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "agent", ID: id}
	}
	return nil
}

type AgentFilter struct {
	Tier        string
	RecruiterID string
	Page        int
	Limit       int
}

func (r *AgentRepo) List(ctx context.Context, f AgentFilter) ([]domain.Agent, int, error) {
	var clauses []string
	var args []any
	if f.Tier != "" {
		clauses = append(clauses, "tier = ?")
		args = append(args, f.Tier)
	}
	if f.RecruiterID != "" {
		clauses = append(clauses, "recruiter_id = ?")
		args = append(args, f.RecruiterID)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM agents"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	_, limit, offset := pageBounds(f.Page, f.Limit)
	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+agentColumns+" FROM agents"+where+" ORDER BY created_at, id LIMIT ? OFFSET ?", args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	agents, err := scanAgents(rows)
	return agents, total, err
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var a domain.Agent
	var t, createdAt, updatedAt string
	var recruiter sql.NullString

	if err := row.Scan(&a.ID, &a.Name, &a.Email, &t, &recruiter, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Tier = domain.AgentTier(t)
	a.RecruiterID = recruiter.String
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func scanAgents(rows *sql.Rows) ([]domain.Agent, error) {
	var agents []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
