// Package commission splits a transaction's commission between the
// submitting agent and the company.
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/tier"
)

// MinorUnits is the number of decimal places money is rounded to.
const MinorUnits int32 = 2

var hundred = decimal.NewFromInt(100)

type Split struct {
	AgentShare   decimal.Decimal `json:"agent_share"`
	CompanyShare decimal.Decimal `json:"company_share"`
	SplitPercent decimal.Decimal `json:"split_percent"`
}

// ComputeSplit applies the tier's split to amount. The agent share is
// rounded half-even to the minor unit; the company share is the exact
// remainder, so the two always sum to amount.
func ComputeSplit(amount decimal.Decimal, t domain.AgentTier) (Split, error) {
	if !amount.IsPositive() {
		return Split{}, &domain.ValidationError{Field: "commission_amount", Reason: "must be greater than zero"}
	}
	cfg, err := tier.Lookup(t)
	if err != nil {
		return Split{}, err
	}

	agentShare := Percent(amount, cfg.CommissionSplitPercent)
	return Split{
		AgentShare:   agentShare,
		CompanyShare: amount.Sub(agentShare),
		SplitPercent: cfg.CommissionSplitPercent,
	}, nil
}

// Percent returns amount * pct / 100 rounded half-even to the minor unit.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).RoundBank(MinorUnits)
}
