package approval

import "github.com/brokerage/commission/internal/domain"

// transitions lists every legal move. draft is the initial state;
// rejected and completed are terminal.
var transitions = map[domain.TransactionStatus][]domain.TransactionStatus{
	domain.StatusDraft:       {domain.StatusSubmitted},
	domain.StatusSubmitted:   {domain.StatusUnderReview},
	domain.StatusUnderReview: {domain.StatusApproved, domain.StatusRejected},
	domain.StatusApproved:    {domain.StatusCompleted},
}

// Statuses returns every status in lifecycle order.
func Statuses() []domain.TransactionStatus {
	return []domain.TransactionStatus{
		domain.StatusDraft,
		domain.StatusSubmitted,
		domain.StatusUnderReview,
		domain.StatusApproved,
		domain.StatusRejected,
		domain.StatusCompleted,
	}
}

func IsValidStatus(s domain.TransactionStatus) bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

func IsTerminal(s domain.TransactionStatus) bool {
	return s == domain.StatusRejected || s == domain.StatusCompleted
}

func CanTransition(from, to domain.TransactionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns a *domain.InvalidTransitionError unless from -> to is
// a legal move.
func Transition(from, to domain.TransactionStatus) error {
	if !CanTransition(from, to) {
		return &domain.InvalidTransitionError{From: from, To: to}
	}
	return nil
}
