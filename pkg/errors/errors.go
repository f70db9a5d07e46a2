package errors

import "errors"

// Validation errors. Rejected before any network or chain call.
var (
	ErrInvalidAddress    = errors.New("invalid player address")
	ErrStakeRequired     = errors.New("stake must be greater than 0")
	ErrStakeExceedsMax   = errors.New("stake exceeds the maximum bet")
	ErrNotSplittable     = errors.New("hand is not splittable")
	ErrAlreadySplit      = errors.New("round is already split")
	ErrDoubleUnavailable = errors.New("double is not available")
	ErrNotPlayerTurn     = errors.New("no player action expected")
)

// Session / single-flight errors.
var (
	ErrRoundInFlight  = errors.New("another round action is in flight")
	ErrRoundActive    = errors.New("a round is already active")
	ErrNoActiveRound  = errors.New("no active round for this player")
	ErrSessionFailed  = errors.New("session is in a failed state, start a new round")
	ErrRoundNotFound  = errors.New("round not found")
)

// Escrow / settlement errors.
var (
	ErrEscrowFailed       = errors.New("stake escrow failed")
	ErrOrphanedStake      = errors.New("stake escrowed but round did not complete, contact support")
	ErrRoundEventMissing  = errors.New("transaction confirmed but round event is missing")
	ErrSettleFailed       = errors.New("settlement transaction failed")
	ErrTransactionRevert  = errors.New("transaction reverted")
)

// Dealing-service errors.
var (
	ErrDealer           = errors.New("dealing service error")
	ErrDealerBadPayload = errors.New("malformed dealing service response")
)

// Fairness audit errors. Never fatal to a settled round.
var (
	ErrProofUnavailable = errors.New("no fairness proof available")
	ErrProofMismatch    = errors.New("revealed card does not match deck commitment")
)
