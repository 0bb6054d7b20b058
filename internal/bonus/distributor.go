// Package bonus computes leadership-bonus overrides for the upline of an
// approved transaction.
package bonus

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brokerage/commission/internal/commission"
	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/tier"
)

// DefaultMaxDepth bounds the upline walk independently of cycle detection.
const DefaultMaxDepth = 10

// ChainWalker yields an agent's upline, nearest first.
type ChainWalker interface {
	Walk(ctx context.Context, agentID string, maxDepth int) iter.Seq2[domain.Agent, error]
}

type Distributor struct {
	walker   ChainWalker
	maxDepth int
}

func NewDistributor(walker ChainWalker, maxDepth int) *Distributor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Distributor{walker: walker, maxDepth: maxDepth}
}

// Distribute walks the submitting agent's upline and returns one
// leadership_bonus entry per bonus-eligible hop. Every bonus is a
// percentage of the same companyShare; ineligible hops are skipped without
// ending the walk. Entries carry no CreatedAt; the caller stamps them when
// persisting. Any walk error, including a cycle, fails the whole call.
func (d *Distributor) Distribute(ctx context.Context, transactionID, submittingAgentID string, companyShare decimal.Decimal) ([]domain.LedgerEntry, error) {
	if companyShare.IsNegative() {
		return nil, &domain.ValidationError{Field: "company_share", Reason: "must not be negative"}
	}

	var entries []domain.LedgerEntry
	depth := 0
	for up, err := range d.walker.Walk(ctx, submittingAgentID, d.maxDepth) {
		if err != nil {
			return nil, fmt.Errorf("walk upline of %s: %w", submittingAgentID, err)
		}
		depth++

		cfg, err := tier.Lookup(up.Tier)
		if err != nil {
			return nil, fmt.Errorf("upline agent %s: %w", up.ID, err)
		}
		if !tier.IsEligibleForBonus(up.Tier) {
			continue
		}

		entries = append(entries, domain.LedgerEntry{
			ID:               uuid.NewString(),
			TransactionID:    transactionID,
			RecipientAgentID: up.ID,
			Role:             domain.RoleLeadershipBonus,
			Amount:           commission.Percent(companyShare, cfg.LeadershipBonusRatePercent),
			RatePercent:      cfg.LeadershipBonusRatePercent,
			Depth:            depth,
		})
	}
	return entries, nil
}
