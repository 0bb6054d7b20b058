// Package recruiter resolves the recruiter tree: one upline per agent and
// any number of direct recruits. Storage does not prevent cycles, so every
// walk carries its own visited set and hop bound.
package recruiter

import (
	"context"
	"fmt"
	"iter"

	"github.com/brokerage/commission/internal/domain"
)

// assignmentCheckDepth bounds the walk done when validating a new
// recruiter link. It is deliberately much larger than any payout depth.
const assignmentCheckDepth = 1000

// AgentReader is the read side of agent storage the resolver needs.
// GetByID must return a *domain.NotFoundError for unknown ids.
type AgentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetRecruits(ctx context.Context, recruiterID string) ([]domain.Agent, error)
}

type Resolver struct {
	agents AgentReader
}

func NewResolver(agents AgentReader) *Resolver {
	return &Resolver{agents: agents}
}

// Upline returns the agent's recruiter, or nil for a root agent.
func (r *Resolver) Upline(ctx context.Context, agentID string) (*domain.Agent, error) {
	agent, err := r.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.HasRecruiter() {
		return nil, nil
	}
	up, err := r.agents.GetByID(ctx, agent.RecruiterID)
	if err != nil {
		return nil, fmt.Errorf("recruiter of %s: %w", agentID, err)
	}
	return up, nil
}

// Downline returns the agent's direct recruits in no particular order.
func (r *Resolver) Downline(ctx context.Context, agentID string) ([]domain.Agent, error) {
	if _, err := r.agents.GetByID(ctx, agentID); err != nil {
		return nil, err
	}
	return r.agents.GetRecruits(ctx, agentID)
}

// Walk lazily yields the upline chain of agentID, nearest recruiter first,
// until the root is reached or maxDepth hops have been taken. If an agent
// id repeats, Walk yields a *domain.CycleDetectedError and stops. Any error
// ends the sequence.
func (r *Resolver) Walk(ctx context.Context, agentID string, maxDepth int) iter.Seq2[domain.Agent, error] {
	return func(yield func(domain.Agent, error) bool) {
		if maxDepth <= 0 {
			yield(domain.Agent{}, &domain.ValidationError{Field: "max_depth", Reason: "must be positive"})
			return
		}

		cur, err := r.agents.GetByID(ctx, agentID)
		if err != nil {
			yield(domain.Agent{}, err)
			return
		}

		visited := map[string]struct{}{cur.ID: {}}
		path := []string{cur.ID}

		for hop := 0; hop < maxDepth && cur.HasRecruiter(); hop++ {
			if err := ctx.Err(); err != nil {
				yield(domain.Agent{}, err)
				return
			}

			nextID := cur.RecruiterID
			path = append(path, nextID)
			if _, seen := visited[nextID]; seen {
				yield(domain.Agent{}, &domain.CycleDetectedError{AgentID: nextID, Path: path})
				return
			}

			next, err := r.agents.GetByID(ctx, nextID)
			if err != nil {
				yield(domain.Agent{}, fmt.Errorf("recruiter of %s: %w", cur.ID, err))
				return
			}
			visited[nextID] = struct{}{}

			if !yield(*next, nil) {
				return
			}
			cur = next
		}
	}
}

// UplineChain collects Walk into a slice.
func (r *Resolver) UplineChain(ctx context.Context, agentID string, maxDepth int) ([]domain.Agent, error) {
	var chain []domain.Agent
	for agent, err := range r.Walk(ctx, agentID, maxDepth) {
		if err != nil {
			return nil, err
		}
		chain = append(chain, agent)
	}
	return chain, nil
}

// CheckAssignment validates that recruiterID may become the recruiter of
// agentID: the recruiter must exist, must not be the agent itself, and the
// agent must not already appear in the recruiter's upline.
func (r *Resolver) CheckAssignment(ctx context.Context, agentID, recruiterID string) error {
	if recruiterID == "" {
		return nil
	}
	if recruiterID == agentID {
		return &domain.ValidationError{Field: "recruiter_id", Reason: "agent cannot recruit themselves"}
	}

	path := []string{agentID, recruiterID}
	for up, err := range r.Walk(ctx, recruiterID, assignmentCheckDepth) {
		if err != nil {
			return err
		}
		path = append(path, up.ID)
		if up.ID == agentID {
			return &domain.CycleDetectedError{AgentID: agentID, Path: path}
		}
	}
	return nil
}
