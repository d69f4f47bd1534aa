package services

import "errors"

// Business-rule failures returned by the negotiation, escrow and milestone
// engines. Handlers surface them as user-facing errors; none are fatal.
var (
	// ErrInvalidTransition: action attempted from a state that does not permit
	// it (countering a terminal offer, funding a non-pending milestone).
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden: actor lacks permission for the requested action (editing a
	// funded milestone, acting out of turn in the counter chain).
	ErrForbidden = errors.New("forbidden")

	// ErrPrerequisiteNotMet: a required prior step is missing (final release
	// before the first-half release has occurred).
	ErrPrerequisiteNotMet = errors.New("prerequisite not met")

	// ErrValidation: input data violates a field invariant (milestone amount
	// below the minimum, missing required text).
	ErrValidation = errors.New("validation failed")
)
