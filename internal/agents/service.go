// Package agents manages the agent roster: onboarding, recruiter links,
// promotions and bulk roster imports.
package agents

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/brokerage/commission/internal/bonus"
	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/recruiter"
	"github.com/brokerage/commission/internal/repository"
	"github.com/brokerage/commission/internal/tier"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

// NewAgent is the input for Create. An empty ID is replaced by a UUID and
// an empty Tier defaults to advisor.
type NewAgent struct {
	ID          string           `json:"id"`
	Name        string           `json:"name" validate:"required"`
	Email       string           `json:"email" validate:"required,email"`
	Tier        domain.AgentTier `json:"tier"`
	RecruiterID string           `json:"recruiter_id"`
}

type Service struct {
	store    *repository.Store
	resolver *recruiter.Resolver
	log      *slog.Logger
	clock    clockwork.Clock
	maxDepth int
}

func NewService(store *repository.Store, log *slog.Logger, clock clockwork.Clock, maxDepth int) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxDepth <= 0 {
		maxDepth = bonus.DefaultMaxDepth
	}
	return &Service{
		store:    store,
		resolver: recruiter.NewResolver(store.Agents),
		log:      log,
		clock:    clock,
		maxDepth: maxDepth,
	}
}

func (s *Service) Create(ctx context.Context, in NewAgent) (*domain.Agent, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.RecruiterID = strings.TrimSpace(in.RecruiterID)
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Tier == "" {
		in.Tier = domain.TierAdvisor
	}
	if err := validateAgent(in); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	agent := &domain.Agent{
		ID:          in.ID,
		Name:        in.Name,
		Email:       in.Email,
		Tier:        in.Tier,
		RecruiterID: in.RecruiterID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		return insertAgent(ctx, r, agent)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("agent created", "agent_id", agent.ID, "tier", agent.Tier, "recruiter_id", agent.RecruiterID)
	return agent, nil
}

// insertAgent rejects duplicate ids, unknown recruiters and links that
// would close a cycle before writing.
func insertAgent(ctx context.Context, r *repository.Repos, a *domain.Agent) error {
	exists, err := r.Agents.Exists(ctx, a.ID)
	if err != nil {
		return err
	}
	if exists {
		return &domain.ValidationError{Field: "id", Reason: "agent " + a.ID + " already exists"}
	}
	if err := recruiter.NewResolver(r.Agents).CheckAssignment(ctx, a.ID, a.RecruiterID); err != nil {
		return err
	}
	return r.Agents.Insert(ctx, a)
}

func validateAgent(in NewAgent) error {
	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			reason := "is required"
			if fe.Tag() == "email" {
				reason = "must be a valid email address"
			}
			return &domain.ValidationError{Field: fe.Field(), Reason: reason}
		}
		return &domain.ValidationError{Reason: err.Error()}
	}
	if !tier.IsValid(in.Tier) {
		return &domain.ValidationError{Field: "tier", Reason: "unknown tier " + string(in.Tier)}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Agent, error) {
	return s.store.Agents.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f repository.AgentFilter) ([]domain.Agent, int, error) {
	if f.Tier != "" && !tier.IsValid(domain.AgentTier(f.Tier)) {
		return nil, 0, &domain.ValidationError{Field: "tier", Reason: "unknown tier " + f.Tier}
	}
	return s.store.Agents.List(ctx, f)
}

// Upline returns the agent's recruiter chain, nearest first, bounded by
// the configured chain depth.
func (s *Service) Upline(ctx context.Context, id string) ([]domain.Agent, error) {
	return s.resolver.UplineChain(ctx, id, s.maxDepth)
}

func (s *Service) Downline(ctx context.Context, id string) ([]domain.Agent, error) {
	return s.resolver.Downline(ctx, id)
}

type PromotionResult struct {
	Agent          domain.Agent     `json:"agent"`
	From           domain.AgentTier `json:"from"`
	To             domain.AgentTier `json:"to"`
	Promoted       bool             `json:"promoted"`
	MonthlySales   int              `json:"monthly_sales"`
	DirectRecruits int              `json:"direct_recruits"`
}

// EvaluatePromotion moves the agent to the highest tier whose requirements
// are met by monthlySales and the current number of direct recruits.
// Agents are never demoted.
func (s *Service) EvaluatePromotion(ctx context.Context, id string, monthlySales int) (*PromotionResult, error) {
	if monthlySales < 0 {
		return nil, &domain.ValidationError{Field: "monthly_sales", Reason: "must not be negative"}
	}

	var res *PromotionResult
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		agent, err := r.Agents.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tier.Lookup(agent.Tier); err != nil {
			return err
		}
		recruits, err := r.Agents.CountRecruits(ctx, id)
		if err != nil {
			return err
		}

		target := tier.HighestQualifying(agent.Tier, monthlySales, recruits)
		res = &PromotionResult{
			From:           agent.Tier,
			To:             target,
			MonthlySales:   monthlySales,
			DirectRecruits: recruits,
		}
		if tier.Compare(target, agent.Tier) <= 0 {
			res.To = agent.Tier
		} else {
			now := s.clock.Now().UTC()
			if err := r.Agents.UpdateTier(ctx, id, target, now); err != nil {
				return err
			}
			agent.Tier = target
			agent.UpdatedAt = now
			res.Promoted = true
		}
		res.Agent = *agent
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Promoted {
		s.log.Info("agent promoted", "agent_id", id, "from", res.From, "to", res.To)
	}
	return res, nil
}
