package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusDraft       TransactionStatus = "draft"
	StatusSubmitted   TransactionStatus = "submitted"
	StatusUnderReview TransactionStatus = "under_review"
	StatusApproved    TransactionStatus = "approved"
	StatusRejected    TransactionStatus = "rejected"
	StatusCompleted   TransactionStatus = "completed"
)

type MarketType string

const (
	MarketPrimary   MarketType = "primary"
	MarketSecondary MarketType = "secondary"
)

type TransactionType string

const (
	TransactionSale  TransactionType = "sale"
	TransactionLease TransactionType = "lease"
)

// CommissionType is informational; it does not change the split math.
type CommissionType string

const (
	CommissionPercentage CommissionType = "percentage"
	CommissionFixed      CommissionType = "fixed"
)

type Transaction struct {
	ID               string            `json:"id"`
	AgentID          string            `json:"agent_id"`
	PropertyAddress  string            `json:"property_address"`
	ClientName       string            `json:"client_name"`
	MarketType       MarketType        `json:"market_type"`
	TransactionType  TransactionType   `json:"transaction_type"`
	CommissionAmount decimal.Decimal   `json:"commission_amount"`
	CommissionType   CommissionType    `json:"commission_type"`
	Status           TransactionStatus `json:"status"`
	ReviewerID       string            `json:"reviewer_id,omitempty"`
	ApproverID       string            `json:"approver_id,omitempty"`
	RejectionReason  string            `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TransactionEvent records a single status change. Events are append-only.
type TransactionEvent struct {
	ID            int64             `json:"id"`
	TransactionID string            `json:"transaction_id"`
	FromStatus    TransactionStatus `json:"from_status,omitempty"`
	ToStatus      TransactionStatus `json:"to_status"`
	ActorID       string            `json:"actor_id"`
	Note          string            `json:"note,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
