package agents_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerage/commission/internal/agents"
	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/repository"
	"github.com/brokerage/commission/internal/testutil"
)

func newService(t *testing.T) (*agents.Service, *repository.Store) {
	t.Helper()
	store := testutil.NewStore(t)
	return agents.NewService(store, testutil.NewLogger(), testutil.NewClock(), 10), store
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	root, err := svc.Create(ctx, agents.NewAgent{ID: "root", Name: "Root", Email: "root@example.com", Tier: domain.TierTeamLeader})
	require.NoError(t, err)
	assert.Equal(t, testutil.Epoch, root.CreatedAt)

	child, err := svc.Create(ctx, agents.NewAgent{Name: "Child", Email: "child@example.com", RecruiterID: "root"})
	require.NoError(t, err)
	assert.NotEmpty(t, child.ID)
	assert.Equal(t, domain.TierAdvisor, child.Tier)

	got, err := svc.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", got.RecruiterID)
}

func TestCreate_Rejects(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	testutil.AddAgent(t, store, "a", domain.TierAdvisor, "")

	tests := []struct {
		name string
		in   agents.NewAgent
		want error
	}{
		{"missing name", agents.NewAgent{Email: "x@example.com"}, domain.ErrValidation},
		{"bad email", agents.NewAgent{Name: "X", Email: "nope"}, domain.ErrValidation},
		{"unknown tier", agents.NewAgent{Name: "X", Email: "x@example.com", Tier: "emperor"}, domain.ErrValidation},
		{"duplicate id", agents.NewAgent{ID: "a", Name: "X", Email: "x@example.com"}, domain.ErrValidation},
		{"self recruit", agents.NewAgent{ID: "b", Name: "X", Email: "x@example.com", RecruiterID: "b"}, domain.ErrValidation},
		{"unknown recruiter", agents.NewAgent{Name: "X", Email: "x@example.com", RecruiterID: "ghost"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUplineAndDownline(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	testutil.AddAgent(t, store, "sup", domain.TierSupremeLeader, "")
	testutil.AddAgent(t, store, "gl", domain.TierGroupLeader, "sup")
	testutil.AddAgent(t, store, "adv1", domain.TierAdvisor, "gl")
	testutil.AddAgent(t, store, "adv2", domain.TierAdvisor, "gl")

	up, err := svc.Upline(ctx, "adv1")
	require.NoError(t, err)
	require.Len(t, up, 2)
	assert.Equal(t, "gl", up[0].ID)
	assert.Equal(t, "sup", up[1].ID)

	down, err := svc.Downline(ctx, "gl")
	require.NoError(t, err)
	assert.Len(t, down, 2)

	_, err = svc.Downline(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	testutil.SetRecruiter(t, store, "sup", "adv1")
	_, err = svc.Upline(ctx, "adv1")
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
}

func TestEvaluatePromotion(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	testutil.AddAgent(t, store, "lead", domain.TierAdvisor, "")
	for i := range 5 {
		testutil.AddAgent(t, store, fmt.Sprintf("r%d", i), domain.TierAdvisor, "lead")
	}

	res, err := svc.EvaluatePromotion(ctx, "lead", 2)
	require.NoError(t, err)
	assert.False(t, res.Promoted)
	assert.Equal(t, 5, res.DirectRecruits)

	res, err = svc.EvaluatePromotion(ctx, "lead", 6)
	require.NoError(t, err)
	assert.True(t, res.Promoted)
	assert.Equal(t, domain.TierAdvisor, res.From)
	assert.Equal(t, domain.TierTeamLeader, res.To)

	stored, err := store.Agents.GetByID(ctx, "lead")
	require.NoError(t, err)
	assert.Equal(t, domain.TierTeamLeader, stored.Tier)

	// A quiet month never demotes.
	res, err = svc.EvaluatePromotion(ctx, "lead", 0)
	require.NoError(t, err)
	assert.False(t, res.Promoted)
	assert.Equal(t, domain.TierTeamLeader, res.To)
	assert.Equal(t, domain.TierTeamLeader, res.Agent.Tier)

	_, err = svc.EvaluatePromotion(ctx, "lead", -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.EvaluatePromotion(ctx, "ghost", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	testutil.AddAgent(t, store, "a", domain.TierAdvisor, "")
	testutil.AddAgent(t, store, "b", domain.TierSalesLeader, "a")

	list, total, err := svc.List(ctx, repository.AgentFilter{Tier: string(domain.TierSalesLeader)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "b", list[0].ID)

	_, _, err = svc.List(ctx, repository.AgentFilter{Tier: "emperor"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
