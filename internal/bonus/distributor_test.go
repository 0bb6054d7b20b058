package bonus

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/recruiter"
	"github.com/brokerage/commission/internal/tier"
)

type mapAgents map[string]domain.Agent

func (m mapAgents) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	a, ok := m[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "agent", ID: id}
	}
	return &a, nil
}

func (m mapAgents) GetRecruits(context.Context, string) ([]domain.Agent, error) {
	return nil, nil
}

func (m mapAgents) add(id string, t domain.AgentTier, recruiter string) {
	m[id] = domain.Agent{ID: id, Tier: t, RecruiterID: recruiter}
}

func newDistributor(m mapAgents, depth int) *Distributor {
	return NewDistributor(recruiter.NewResolver(m), depth)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDistribute_SingleEligibleUpline(t *testing.T) {
	t.Parallel()
	m := mapAgents{}
	m.add("lead", domain.TierTeamLeader, "")
	m.add("agent", domain.TierSalesLeader, "lead")

	entries, err := newDistributor(m, 10).Distribute(context.Background(), "txn-1", "agent", dec("2500.00"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "txn-1", e.TransactionID)
	assert.Equal(t, "lead", e.RecipientAgentID)
	assert.Equal(t, domain.RoleLeadershipBonus, e.Role)
	assert.Equal(t, 1, e.Depth)
	assert.True(t, e.Amount.Equal(dec("125.00")), e.Amount.String())
	assert.True(t, e.RatePercent.Equal(dec("5")))
	assert.NotEmpty(t, e.ID)
}

func TestDistribute_SubmitterTierIsIrrelevant(t *testing.T) {
	t.Parallel()
	m := mapAgents{}
	m.add("boss", domain.TierSupremeLeader, "")
	m.add("rookie", domain.TierAdvisor, "boss")

	entries, err := newDistributor(m, 10).Distribute(context.Background(), "txn-2", "rookie", dec("1500.00"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(dec("90.00")))
}

func TestDistribute_SkipsIneligibleHopsWithoutStopping(t *testing.T) {
	t.Parallel()
	m := mapAgents{}
	m.add("top", domain.TierGroupLeader, "")
	m.add("mid", domain.TierAdvisor, "top")
	m.add("agent", domain.TierAdvisor, "mid")

	entries, err := newDistributor(m, 10).Distribute(context.Background(), "txn", "agent", dec("1000.00"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "top", entries[0].RecipientAgentID)
	assert.Equal(t, 2, entries[0].Depth)
	assert.True(t, entries[0].Amount.Equal(dec("40.00")))
}

func TestDistribute_RecipientsMatchTierEligibility(t *testing.T) {
	t.Parallel()
	m := mapAgents{}
	parent := ""
	all := tier.All()
	for i := len(all) - 1; i >= 0; i-- {
		id := string(all[i].Tier)
		m.add(id, all[i].Tier, parent)
		parent = id
	}
	m.add("agent", domain.TierAdvisor, parent)

	entries, err := newDistributor(m, 10).Distribute(context.Background(), "txn", "agent", dec("1000.00"))
	require.NoError(t, err)

	var want []string
	for i := range all {
		if tier.IsEligibleForBonus(all[i].Tier) {
			want = append(want, string(all[i].Tier))
		}
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.RecipientAgentID)
	}
	assert.Equal(t, want, got)
}

func TestDistribute_BonusesAreIndependent(t *testing.T) {
	t.Parallel()
	m := mapAgents{}
	m.add("u4", domain.TierSupremeLeader, "")
	m.add("u3", domain.TierGroupLeader, "u4")
	m.add("u2", domain.TierTeamLeader, "u3")
	m.add("u1", domain.TierSalesLeader, "u2")
	m.add("agent", domain.TierAdvisor, "u1")

	share := dec("2000.00")
	entries, err := newDistributor(m, 10).Distribute(context.Background(), "txn", "agent", share)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// 7% + 5% + 4% + 6% of the full share, not of a shrinking pool.
	want := []string{"140.00", "100.00", "80.00", "120.00"}
	for i, e := range entries {
		assert.Equal(t, i+1, e.Depth)
		assert.True(t, e.Amount.Equal(dec(want[i])), "hop %d got %s", i+1, e.Amount)
	}
	total := domain.SumLedger(entries, domain.RoleLeadershipBonus)
	assert.True(t, total.Equal(share.Mul(dec("22")).Div(dec("100"))))
}

func TestDistribute_RespectsMaxDepth(t *testing.T) {
	t.Parallel()
	m := mapAgents{}
	m.add("u3", domain.TierSalesLeader, "")
	m.add("u2", domain.TierSalesLeader, "u3")
	m.add("u1", domain.TierSalesLeader, "u2")
	m.add("agent", domain.TierAdvisor, "u1")

	entries, err := newDistributor(m, 2).Distribute(context.Background(), "txn", "agent", dec("100"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "u2", entries[1].RecipientAgentID)
}

func TestDistribute_RootAgentHasNoBonuses(t *testing.T) {
	t.Parallel()
	m := mapAgents{}
	m.add("solo", domain.TierSupremeLeader, "")

	entries, err := newDistributor(m, 10).Distribute(context.Background(), "txn", "solo", dec("100"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDistribute_CycleFailsWholeDistribution(t *testing.T) {
	t.Parallel()
	m := mapAgents{}
	m.add("a", domain.TierSalesLeader, "b")
	m.add("b", domain.TierSalesLeader, "a")
	m.add("agent", domain.TierAdvisor, "a")

	entries, err := newDistributor(m, 10).Distribute(context.Background(), "txn", "agent", dec("100"))
	require.Error(t, err)
	assert.Nil(t, entries)
	assert.True(t, errors.Is(err, domain.ErrCycleDetected))
	assert.True(t, domain.IsDataIntegrity(err))
}

func TestDistribute_UnknownUplineTier(t *testing.T) {
	t.Parallel()
	m := mapAgents{}
	m.add("weird", "platinum", "")
	m.add("agent", domain.TierAdvisor, "weird")

	_, err := newDistributor(m, 10).Distribute(context.Background(), "txn", "agent", dec("100"))
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestNewDistributor_DefaultsDepth(t *testing.T) {
	t.Parallel()
	d := NewDistributor(recruiter.NewResolver(mapAgents{}), 0)
	assert.Equal(t, DefaultMaxDepth, d.maxDepth)
}
