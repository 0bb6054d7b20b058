package tier

import "github.com/brokerage/commission/internal/domain"

// Qualifies reports whether the given activity meets t's requirements.
func Qualifies(t domain.AgentTier, monthlySales, directRecruits int) bool {
	cfg, err := Lookup(t)
	if err != nil {
		return false
	}
	return monthlySales >= cfg.Promotion.MinMonthlySales &&
		directRecruits >= cfg.Promotion.MinDirectRecruits
}

// HighestQualifying climbs from current while each next tier's requirements
// are met. It never returns a tier below current.
func HighestQualifying(current domain.AgentTier, monthlySales, directRecruits int) domain.AgentTier {
	best := current
	for {
		next, ok := Next(best)
		if !ok || !Qualifies(next.Tier, monthlySales, directRecruits) {
			return best
		}
		best = next.Tier
	}
}
