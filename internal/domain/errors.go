package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrCycleDetected     = errors.New("recruiter cycle detected")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyProcessed  = errors.New("transaction already processed")
	ErrConfiguration     = errors.New("configuration error")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q %v", e.Entity, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// CycleDetectedError carries the walk that led back to an already visited
// agent, starting from the agent whose chain was requested.
type CycleDetectedError struct {
	AgentID string
	Path    []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("%v at agent %q (path %s)", ErrCycleDetected, e.AgentID, strings.Join(e.Path, " -> "))
}

func (e *CycleDetectedError) Unwrap() error { return ErrCycleDetected }

type InvalidTransitionError struct {
	From TransactionStatus
	To   TransactionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

type AlreadyProcessedError struct {
	TransactionID string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAlreadyProcessed, e.TransactionID)
}

func (e *AlreadyProcessedError) Unwrap() error { return ErrAlreadyProcessed }

type ConfigurationError struct {
	Tier AgentTier
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: unknown tier %q", ErrConfiguration, e.Tier)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// IsDataIntegrity reports whether err signals a systemic data problem
// (corrupt recruiter graph or tier configuration) rather than bad input.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrCycleDetected) || errors.Is(err, ErrConfiguration)
}
