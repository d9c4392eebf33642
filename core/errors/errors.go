package errors

import (
	stderrors "errors"
	"fmt"
)

// Setup ordering.
var (
	ErrAlreadyInitialized = stderrors.New("already initialized")
	ErrNotInitialized     = stderrors.New("not initialized")
)

// Authorization.
var ErrUnauthorized = stderrors.New("unauthorized")

// Record identity.
var (
	ErrAlreadyExists = stderrors.New("already exists")
	ErrNotFound      = stderrors.New("not found")
)

// Business-rule limits. ErrCapExceeded is a CapacityExceeded so callers may
// match either.
var (
	ErrCapacityExceeded = stderrors.New("capacity exceeded")
	ErrCapExceeded      = fmt.Errorf("%w: payout cap", ErrCapacityExceeded)
)

// Replay protection.
var (
	ErrNonceReplay          = stderrors.New("nonce already used")
	ErrInvalidNonceSequence = stderrors.New("invalid nonce sequence")
)

var ErrDeadlineExceeded = stderrors.New("deadline exceeded")

// Funds.
var (
	ErrInsufficientFunds   = stderrors.New("insufficient funds")
	ErrInsufficientBalance = stderrors.New("insufficient balance")
)

var ErrContractPaused = stderrors.New("contract paused")

// Workflow state.
var (
	ErrNoRewardsAvailable = stderrors.New("no rewards available")
	ErrDuplicateApproval  = stderrors.New("duplicate approval")
	ErrAlreadyExecuted    = stderrors.New("already executed")
	ErrFinalized          = stderrors.New("finalized")
	ErrInvalidArgument    = stderrors.New("invalid argument")
)

// Class groups error kinds by how off-chain tooling should react to them.
type Class uint8

const (
	ClassUnknown Class = iota
	// ClassSetup errors require fixing the initialization sequence.
	ClassSetup
	// ClassNeverRetry errors indicate a bad actor or a client bug.
	ClassNeverRetry
	// ClassCallerError errors are surfaced as-is to the caller.
	ClassCallerError
	// ClassRetryLater errors may succeed with adjusted parameters or timing.
	ClassRetryLater
)

func (c Class) String() string {
	switch c {
	case ClassSetup:
		return "setup"
	case ClassNeverRetry:
		return "never_retry"
	case ClassCallerError:
		return "caller_error"
	case ClassRetryLater:
		return "retry_later"
	default:
		return "unknown"
	}
}

type kind struct {
	err   error
	name  string
	class Class
}

// Ordered so that more specific sentinels match first.
var kinds = []kind{
	{ErrAlreadyInitialized, "already_initialized", ClassSetup},
	{ErrNotInitialized, "not_initialized", ClassSetup},
	{ErrUnauthorized, "unauthorized", ClassNeverRetry},
	{ErrNonceReplay, "nonce_replay", ClassNeverRetry},
	{ErrInvalidNonceSequence, "invalid_nonce_sequence", ClassNeverRetry},
	{ErrCapExceeded, "cap_exceeded", ClassRetryLater},
	{ErrCapacityExceeded, "capacity_exceeded", ClassRetryLater},
	{ErrDeadlineExceeded, "deadline_exceeded", ClassRetryLater},
	{ErrContractPaused, "contract_paused", ClassRetryLater},
	{ErrAlreadyExists, "already_exists", ClassCallerError},
	{ErrNotFound, "not_found", ClassCallerError},
	{ErrInsufficientFunds, "insufficient_funds", ClassCallerError},
	{ErrInsufficientBalance, "insufficient_balance", ClassCallerError},
	{ErrNoRewardsAvailable, "no_rewards_available", ClassCallerError},
	{ErrDuplicateApproval, "duplicate_approval", ClassCallerError},
	{ErrAlreadyExecuted, "already_executed", ClassCallerError},
	{ErrFinalized, "finalized", ClassCallerError},
	{ErrInvalidArgument, "invalid_argument", ClassCallerError},
}

// Classify returns the retry class of err. Nil and unrecognised errors map to
// ClassUnknown.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.class
		}
	}
	return ClassUnknown
}

// Kind returns a stable snake_case label for the first taxonomy sentinel err
// wraps, or "internal" when none match.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
