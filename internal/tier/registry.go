package tier

import (
	"github.com/shopspring/decimal"

	"github.com/brokerage/commission/internal/domain"
)

// Promotion is the minimum activity an agent needs to hold a tier.
type Promotion struct {
	MinMonthlySales   int `json:"min_monthly_sales"`
	MinDirectRecruits int `json:"min_direct_recruits"`
}

// Config is the immutable commission plan for one tier.
// LeadershipBonusRatePercent applies to the company's retained share, not
// to the gross commission.
type Config struct {
	Tier                       domain.AgentTier `json:"tier"`
	Rank                       int              `json:"rank"`
	CommissionSplitPercent     decimal.Decimal  `json:"commission_split_percent"`
	LeadershipBonusRatePercent decimal.Decimal  `json:"leadership_bonus_rate_percent"`
	Promotion                  Promotion        `json:"promotion"`
}

// ordered lists the tiers lowest first. Rank is the index into this slice.
var ordered = []Config{
	newConfig(domain.TierAdvisor, 70, 0, 0, 0),
	newConfig(domain.TierSalesLeader, 80, 7, 3, 2),
	newConfig(domain.TierTeamLeader, 83, 5, 5, 5),
	newConfig(domain.TierGroupLeader, 85, 4, 8, 10),
	newConfig(domain.TierSupremeLeader, 88, 6, 12, 20),
}

var byTier = func() map[domain.AgentTier]int {
	m := make(map[domain.AgentTier]int, len(ordered))
	for i := range ordered {
		ordered[i].Rank = i
		m[ordered[i].Tier] = i
	}
	return m
}()

func newConfig(t domain.AgentTier, split, bonus int64, sales, recruits int) Config {
	return Config{
		Tier:                       t,
		CommissionSplitPercent:     decimal.NewFromInt(split),
		LeadershipBonusRatePercent: decimal.NewFromInt(bonus),
		Promotion:                  Promotion{MinMonthlySales: sales, MinDirectRecruits: recruits},
	}
}

// Lookup returns the plan for a tier.
func Lookup(t domain.AgentTier) (Config, error) {
	i, ok := byTier[t]
	if !ok {
		return Config{}, &domain.ConfigurationError{Tier: t}
	}
	return ordered[i], nil
}

// Next returns the tier directly above t, if any.
func Next(t domain.AgentTier) (Config, bool) {
	i, ok := byTier[t]
	if !ok || i+1 >= len(ordered) {
		return Config{}, false
	}
	return ordered[i+1], true
}

// Previous returns the tier directly below t, if any.
func Previous(t domain.AgentTier) (Config, bool) {
	i, ok := byTier[t]
	if !ok || i == 0 {
		return Config{}, false
	}
	return ordered[i-1], true
}

// IsEligibleForBonus reports whether t earns leadership bonuses on its
// downline's sales. Unknown tiers are never eligible.
func IsEligibleForBonus(t domain.AgentTier) bool {
	cfg, err := Lookup(t)
	if err != nil {
		return false
	}
	return cfg.LeadershipBonusRatePercent.IsPositive()
}

// IsValid reports whether t is a registered tier.
func IsValid(t domain.AgentTier) bool {
	_, ok := byTier[t]
	return ok
}

// Compare orders two tiers: -1 if a < b, 0 if equal, 1 if a > b.
// Unknown tiers sort below every known tier.
func Compare(a, b domain.AgentTier) int {
	ra, okA := byTier[a]
	rb, okB := byTier[b]
	if !okA {
		ra = -1
	}
	if !okB {
		rb = -1
	}
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// All returns a copy of the registry, lowest tier first.
func All() []Config {
	out := make([]Config, len(ordered))
	copy(out, ordered)
	return out
}
