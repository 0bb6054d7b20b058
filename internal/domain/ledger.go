package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerRole string

const (
	RoleOwnCommission   LedgerRole = "own_commission"
	RoleLeadershipBonus LedgerRole = "leadership_bonus"
)

// LedgerEntry is an immutable payout line created when a transaction is
// approved. Depth is 0 for the submitting agent and the hop number for
// upline recipients.
type LedgerEntry struct {
	ID               string          `json:"id"`
	TransactionID    string          `json:"transaction_id"`
	RecipientAgentID string          `json:"recipient_agent_id"`
	Role             LedgerRole      `json:"role"`
	Amount           decimal.Decimal `json:"amount"`
	RatePercent      decimal.Decimal `json:"rate_percent"`
	Depth            int             `json:"depth"`
	CreatedAt        time.Time       `json:"created_at"`
}

// SumLedger totals entry amounts, optionally restricted to one role.
func SumLedger(entries []LedgerEntry, role LedgerRole) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if role == "" || e.Role == role {
			total = total.Add(e.Amount)
		}
	}
	return total
}
