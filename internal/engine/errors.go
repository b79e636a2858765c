package engine

import (
	"errors"
	"fmt"

	"amora/server/internal/entitlement"
)

var (
	// ErrAlreadyStarted: startScenario on a session that is not NotStarted.
	ErrAlreadyStarted = errors.New("story session already started")
	// ErrSessionNotFound: the user has no active story session.
	ErrSessionNotFound = errors.New("story session not found")
	// ErrSessionTerminal: submitChoice on a session with no live choice.
	ErrSessionTerminal = errors.New("story session is terminal")
	// ErrGenerationFailed: the completion oracle failed or returned an
	// unusable reply. The session state is unchanged.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrInvalidAction: the request shape was not recognized.
	ErrInvalidAction = errors.New("invalid action")
	// ErrRequestInFlight: a generation for this session is still running.
	ErrRequestInFlight = errors.New("request already in flight")
)

// PlanLimitError is an entitlement denial surfaced as an error. It always
// carries the reason code so the caller can render the right upsell.
type PlanLimitError struct {
	Reason entitlement.Reason
}

func (e *PlanLimitError) Error() string {
	return fmt.Sprintf("plan limit exceeded: %s", e.Reason)
}

// AsPlanLimit extracts a PlanLimitError from err, if present.
func AsPlanLimit(err error) (*PlanLimitError, bool) {
	var ple *PlanLimitError
	if errors.As(err, &ple) {
		return ple, true
	}
	return nil, false
}
