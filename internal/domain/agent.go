package domain

import "time"

type AgentTier string

const (
	TierAdvisor       AgentTier = "advisor"
	TierSalesLeader   AgentTier = "sales_leader"
	TierTeamLeader    AgentTier = "team_leader"
	TierGroupLeader   AgentTier = "group_leader"
	TierSupremeLeader AgentTier = "supreme_leader"
)

// Agent is a licensed agent. RecruiterID is empty for agents at the root of
// the recruiter tree.
type Agent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Tier        AgentTier `json:"tier"`
	RecruiterID string    `json:"recruiter_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a *Agent) HasRecruiter() bool {
	return a.RecruiterID != ""
}
