// Package approval drives a transaction through its review lifecycle and
// writes the commission ledger when it is approved.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/brokerage/commission/internal/bonus"
	"github.com/brokerage/commission/internal/commission"
	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/metrics"
	"github.com/brokerage/commission/internal/recruiter"
	"github.com/brokerage/commission/internal/repository"
)

const DefaultApprovalTimeout = 5 * time.Second

type Config struct {
	ApprovalTimeout time.Duration
	MaxChainDepth   int
}

type Service struct {
	store     *repository.Store
	log       *slog.Logger
	clock     clockwork.Clock
	cfg       Config
	approvals singleflight.Group
}

func NewService(store *repository.Store, log *slog.Logger, clock clockwork.Clock, cfg Config) *Service {
	if cfg.ApprovalTimeout <= 0 {
		cfg.ApprovalTimeout = DefaultApprovalTimeout
	}
	if cfg.MaxChainDepth <= 0 {
		cfg.MaxChainDepth = bonus.DefaultMaxDepth
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, log: log, clock: clock, cfg: cfg}
}

// NewTransaction is the input for Create. Fields other than AgentID may be
// left empty while the transaction is a draft.
type NewTransaction struct {
	AgentID          string
	PropertyAddress  string
	ClientName       string
	MarketType       domain.MarketType
	TransactionType  domain.TransactionType
	CommissionAmount decimal.Decimal
	CommissionType   domain.CommissionType
}

// ApprovalResult is the outcome of ApproveTransaction. When
// AlreadyProcessed is set, nothing was written and the fields describe the
// ledger recorded by the earlier approval.
type ApprovalResult struct {
	Transaction      domain.Transaction   `json:"transaction"`
	Split            commission.Split     `json:"split"`
	Entries          []domain.LedgerEntry `json:"entries"`
	TotalPaid        decimal.Decimal      `json:"total_paid"`
	CompanyNet       decimal.Decimal      `json:"company_net"`
	AlreadyProcessed bool                 `json:"already_processed"`
}

func (s *Service) Create(ctx context.Context, in NewTransaction) (*domain.Transaction, error) {
	if strings.TrimSpace(in.AgentID) == "" {
		return nil, &domain.ValidationError{Field: "agent_id", Reason: "is required"}
	}
	if in.CommissionAmount.IsNegative() {
		return nil, &domain.ValidationError{Field: "commission_amount", Reason: "must not be negative"}
	}

	now := s.clock.Now().UTC()
	tx := &domain.Transaction{
		ID:               uuid.NewString(),
		AgentID:          in.AgentID,
		PropertyAddress:  strings.TrimSpace(in.PropertyAddress),
		ClientName:       strings.TrimSpace(in.ClientName),
		MarketType:       in.MarketType,
		TransactionType:  in.TransactionType,
		CommissionAmount: in.CommissionAmount,
		CommissionType:   in.CommissionType,
		Status:           domain.StatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		if _, err := r.Agents.GetByID(ctx, in.AgentID); err != nil {
			return err
		}
		if err := r.Transactions.Insert(ctx, tx); err != nil {
			return err
		}
		return r.Events.Append(ctx, &domain.TransactionEvent{
			TransactionID: tx.ID,
			ToStatus:      domain.StatusDraft,
			ActorID:       in.AgentID,
			OccurredAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction created", "transaction_id", tx.ID, "agent_id", tx.AgentID)
	return tx, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.store.Transactions.GetByID(ctx, id)
}

// Queue lists transactions oldest first. An empty status lists all.
func (s *Service) Queue(ctx context.Context, f repository.TransactionFilter) ([]domain.Transaction, int, error) {
	if f.Status != "" && !IsValidStatus(domain.TransactionStatus(f.Status)) {
		return nil, 0, &domain.ValidationError{Field: "status", Reason: "unknown status " + f.Status}
	}
	return s.store.Transactions.List(ctx, f)
}

func (s *Service) Ledger(ctx context.Context, id string) ([]domain.LedgerEntry, error) {
	if _, err := s.store.Transactions.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Ledger.ListByTransaction(ctx, id)
}

func (s *Service) Events(ctx context.Context, id string) ([]domain.TransactionEvent, error) {
	if _, err := s.store.Transactions.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Events.ListByTransaction(ctx, id)
}

// Submit moves a draft to submitted after checking mandatory fields.
func (s *Service) Submit(ctx context.Context, id, actorID string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		tx, err := r.Transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := Transition(tx.Status, domain.StatusSubmitted); err != nil {
			return err
		}
		if err := ValidateForSubmission(tx); err != nil {
			return err
		}
		if err := s.move(ctx, r, tx, repository.StatusUpdate{To: domain.StatusSubmitted}, actorID, ""); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StartReview claims a submitted transaction for review.
func (s *Service) StartReview(ctx context.Context, id, reviewerID string) (*domain.Transaction, error) {
	if reviewerID == "" {
		return nil, &domain.ValidationError{Field: "reviewer_id", Reason: "is required"}
	}
	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		tx, err := r.Transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.review(ctx, r, tx, reviewerID); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reject closes a transaction under review. A submitted transaction is
// taken into review first. No ledger entries are written.
func (s *Service) Reject(ctx context.Context, id, reviewerID, reason string) (*domain.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Reason: "is required"}
	}
	if reviewerID == "" {
		return nil, &domain.ValidationError{Field: "reviewer_id", Reason: "is required"}
	}

	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		tx, err := r.Transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if tx.Status == domain.StatusSubmitted {
			if err := s.review(ctx, r, tx, reviewerID); err != nil {
				return err
			}
		}
		if err := Transition(tx.Status, domain.StatusRejected); err != nil {
			return err
		}
		update := repository.StatusUpdate{To: domain.StatusRejected, RejectionReason: reason}
		if err := s.move(ctx, r, tx, update, reviewerID, reason); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction rejected", "transaction_id", id, "reviewer_id", reviewerID)
	return out, nil
}

// Complete marks an approved transaction as paid out.
func (s *Service) Complete(ctx context.Context, id, actorID string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		tx, err := r.Transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := Transition(tx.Status, domain.StatusCompleted); err != nil {
			return err
		}
		if err := s.move(ctx, r, tx, repository.StatusUpdate{To: domain.StatusCompleted}, actorID, ""); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApproveTransaction approves a transaction and writes its ledger in one
// atomic unit: the submitting agent's own commission plus one leadership
// bonus per eligible upline hop. If any step fails nothing is written and
// the transaction keeps its status.
//
// Approving an already approved or completed transaction writes nothing
// and returns the recorded ledger with AlreadyProcessed set. Concurrent
// calls for the same id share one execution and one result.
//
// The shared execution is detached from any single caller's cancellation
// and bounded only by ApprovalTimeout. A caller whose ctx ends while it
// waits gets its own ctx error; the approval carries on for the others.
func (s *Service) ApproveTransaction(ctx context.Context, id, approverID string) (*ApprovalResult, error) {
	if approverID == "" {
		return nil, &domain.ValidationError{Field: "approver_id", Reason: "is required"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	work := context.WithoutCancel(ctx)
	ch := s.approvals.DoChan(id, func() (any, error) {
		start := time.Now()
		res, err := s.approve(work, id, approverID)
		metrics.RecordApproval(approvalOutcome(res, err), time.Since(start))
		return res, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			if domain.IsDataIntegrity(r.Err) {
				s.log.Error("approval blocked by data integrity failure", "transaction_id", id, "error", r.Err)
			}
			return nil, r.Err
		}
		return r.Val.(*ApprovalResult), nil
	}
}

func (s *Service) approve(ctx context.Context, id, approverID string) (*ApprovalResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ApprovalTimeout)
	defer cancel()

	var res *ApprovalResult
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		tx, err := r.Transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if tx.Status == domain.StatusApproved || tx.Status == domain.StatusCompleted {
			res, err = replay(ctx, r, tx)
			return err
		}
		if tx.Status == domain.StatusSubmitted {
			if err := s.review(ctx, r, tx, approverID); err != nil {
				return err
			}
		}
		if err := Transition(tx.Status, domain.StatusApproved); err != nil {
			return err
		}
		paid, err := r.Ledger.ExistsForTransaction(ctx, id)
		if err != nil {
			return err
		}
		if paid {
			return &domain.AlreadyProcessedError{TransactionID: id}
		}

		agent, err := r.Agents.GetByID(ctx, tx.AgentID)
		if err != nil {
			return err
		}
		split, entries, err := s.compute(ctx, r, tx, agent)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		for i := range entries {
			entries[i].CreatedAt = now
		}
		if err := r.Ledger.InsertEntries(ctx, entries); err != nil {
			return err
		}
		update := repository.StatusUpdate{To: domain.StatusApproved, ApproverID: approverID}
		if err := s.move(ctx, r, tx, update, approverID, ""); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				return &domain.AlreadyProcessedError{TransactionID: id}
			}
			return err
		}

		res = newResult(*tx, split, entries)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.AlreadyProcessed {
		metrics.RecordPayout(res.Entries)
		s.log.Info("transaction approved",
			"transaction_id", id,
			"approver_id", approverID,
			"entries", len(res.Entries),
			"total_paid", res.TotalPaid.StringFixed(commission.MinorUnits),
		)
	}
	return res, nil
}

// Preview computes the ledger an approval would write without persisting
// anything or changing status.
func (s *Service) Preview(ctx context.Context, id string) (*ApprovalResult, error) {
	tx, err := s.store.Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status == domain.StatusApproved || tx.Status == domain.StatusCompleted {
		return replay(ctx, s.store.Repos, tx)
	}
	if IsTerminal(tx.Status) {
		return nil, &domain.InvalidTransitionError{From: tx.Status, To: domain.StatusApproved}
	}
	agent, err := s.store.Agents.GetByID(ctx, tx.AgentID)
	if err != nil {
		return nil, err
	}
	split, entries, err := s.compute(ctx, s.store.Repos, tx, agent)
	if err != nil {
		return nil, err
	}
	return newResult(*tx, split, entries), nil
}

// compute returns the split and ledger lines for tx, own commission first.
func (s *Service) compute(ctx context.Context, r *repository.Repos, tx *domain.Transaction, agent *domain.Agent) (commission.Split, []domain.LedgerEntry, error) {
	split, err := commission.ComputeSplit(tx.CommissionAmount, agent.Tier)
	if err != nil {
		return commission.Split{}, nil, err
	}

	dist := bonus.NewDistributor(recruiter.NewResolver(r.Agents), s.cfg.MaxChainDepth)
	bonuses, err := dist.Distribute(ctx, tx.ID, agent.ID, split.CompanyShare)
	if err != nil {
		return commission.Split{}, nil, err
	}

	entries := make([]domain.LedgerEntry, 0, len(bonuses)+1)
	entries = append(entries, domain.LedgerEntry{
		ID:               uuid.NewString(),
		TransactionID:    tx.ID,
		RecipientAgentID: agent.ID,
		Role:             domain.RoleOwnCommission,
		Amount:           split.AgentShare,
		RatePercent:      split.SplitPercent,
		Depth:            0,
	})
	entries = append(entries, bonuses...)
	return split, entries, nil
}

// review performs submitted -> under_review on tx in place.
func (s *Service) review(ctx context.Context, r *repository.Repos, tx *domain.Transaction, reviewerID string) error {
	if err := Transition(tx.Status, domain.StatusUnderReview); err != nil {
		return err
	}
	return s.move(ctx, r, tx, repository.StatusUpdate{To: domain.StatusUnderReview, ReviewerID: reviewerID}, reviewerID, "")
}

// move persists a status change from tx.Status, appends the matching event
// and updates tx in place.
func (s *Service) move(ctx context.Context, r *repository.Repos, tx *domain.Transaction, u repository.StatusUpdate, actorID, note string) error {
	now := s.clock.Now().UTC()
	u.ID = tx.ID
	u.From = tx.Status
	u.At = now
	if err := r.Transactions.UpdateStatus(ctx, u); err != nil {
		return err
	}
	if err := r.Events.Append(ctx, &domain.TransactionEvent{
		TransactionID: tx.ID,
		FromStatus:    u.From,
		ToStatus:      u.To,
		ActorID:       actorID,
		Note:          note,
		OccurredAt:    now,
	}); err != nil {
		return err
	}

	tx.Status = u.To
	tx.UpdatedAt = now
	if u.ReviewerID != "" {
		tx.ReviewerID = u.ReviewerID
	}
	if u.ApproverID != "" {
		tx.ApproverID = u.ApproverID
	}
	if u.RejectionReason != "" {
		tx.RejectionReason = u.RejectionReason
	}
	metrics.RecordTransition(u.To)
	return nil
}

// replay rebuilds the result of an earlier approval from the stored ledger.
func replay(ctx context.Context, r *repository.Repos, tx *domain.Transaction) (*ApprovalResult, error) {
	entries, err := r.Ledger.ListByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("transaction %s is %s but has no ledger entries", tx.ID, tx.Status)
	}

	split := commission.Split{}
	for _, e := range entries {
		if e.Role == domain.RoleOwnCommission {
			split.AgentShare = e.Amount
			split.SplitPercent = e.RatePercent
		}
	}
	split.CompanyShare = tx.CommissionAmount.Sub(split.AgentShare)

	res := newResult(*tx, split, entries)
	res.AlreadyProcessed = true
	return res, nil
}

func newResult(tx domain.Transaction, split commission.Split, entries []domain.LedgerEntry) *ApprovalResult {
	bonuses := domain.SumLedger(entries, domain.RoleLeadershipBonus)
	return &ApprovalResult{
		Transaction: tx,
		Split:       split,
		Entries:     entries,
		TotalPaid:   domain.SumLedger(entries, ""),
		CompanyNet:  split.CompanyShare.Sub(bonuses),
	}
}

func approvalOutcome(res *ApprovalResult, err error) string {
	switch {
	case err == nil && res.AlreadyProcessed:
		return "duplicate"
	case err == nil:
		return "approved"
	case domain.IsDataIntegrity(err):
		return "data_integrity"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyProcessed):
		return "rejected_input"
	default:
		return "error"
	}
}
