/*
errors.go - Centralized error types for the vesting engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every error is a terminal, non-retryable failure of a single operation;
  the store transaction rolls back all state changes when one is returned.

ERROR CATEGORIES:
  1. Initialization errors - ledger not/already configured
  2. Authorization errors  - caller cannot act as the required principal
  3. Validation errors     - malformed rates, amounts, lifecycle misuse
  4. Accounting errors     - overflow, allocated-funds violations

USAGE:
  Callers match with errors.Is/errors.As:

    if errors.Is(err, vesting.ErrGrantNotInactive) {
        // threshold not met yet, resubmit later
    }

SEE ALSO:
  - ledger.go: Returns these errors from lifecycle operations
  - settle.go: Returns InvalidState/InvalidRate/MathOverflow
*/
package vesting

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotInitialized is returned when the ledger configuration has not
	// been set via Initialize.
	ErrNotInitialized = errors.New("ledger not initialized")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("ledger already initialized")

	// ErrNotAuthorized is returned when the caller cannot prove authority
	// as the required principal.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrGrantNotFound is returned when a referenced grant does not exist.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrGrantAlreadyExists is returned when creating a grant with a used ID.
	ErrGrantAlreadyExists = errors.New("grant already exists")

	// ErrInvalidRate is returned for negative or otherwise malformed rates.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrInvalidAmount is returned for non-positive amounts or withdrawals
	// exceeding the claimable balance.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidState is returned when an operation is not valid for the
	// grant's current lifecycle state, or the settlement clock went backward.
	ErrInvalidState = errors.New("invalid state")

	// ErrMathOverflow is returned on checked-arithmetic overflow.
	ErrMathOverflow = errors.New("arithmetic overflow")

	// ErrGrantNotInactive is returned when slashing a grant whose recipient
	// claimed within the inactivity threshold.
	ErrGrantNotInactive = errors.New("grant not inactive long enough")

	// ErrRescueWouldViolateAllocated is returned when a rescue would leave
	// the vault under-collateralized against active grants.
	ErrRescueWouldViolateAllocated = errors.New("rescue would violate allocated funds")

	// ErrGranteeMismatch is returned when reassigning a recipient and the
	// supplied old address no longer matches the stored one.
	ErrGranteeMismatch = errors.New("grantee mismatch")

	// Self-termination specific failures.
	ErrAlreadyTerminated        = errors.New("grant already self-terminated")
	ErrCannotTerminateCompleted = errors.New("cannot self-terminate a completed grant")
	ErrCannotTerminateCancelled = errors.New("cannot self-terminate a cancelled grant")

	// Council / milestone governance failures.
	ErrInvalidCouncilSize       = errors.New("council must have exactly five members")
	ErrNotCouncilMember         = errors.New("caller is not a council member")
	ErrNoPauseProposal          = errors.New("no pause proposal in progress")
	ErrAlreadyVoted             = errors.New("council member already voted")
	ErrMilestoneNotFound        = errors.New("milestone not found")
	ErrMilestoneExists          = errors.New("milestone already exists")
	ErrMilestoneAlreadyReleased = errors.New("milestone already released")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientClaimableError details a withdrawal exceeding claimable balance.
type InsufficientClaimableError struct {
	GrantID   GrantID
	Claimable int64
	Requested int64
}

func (e *InsufficientClaimableError) Error() string {
	return fmt.Sprintf("withdraw %d exceeds claimable %d on grant %s",
		e.Requested, e.Claimable, e.GrantID)
}

func (e *InsufficientClaimableError) Unwrap() error { return ErrInvalidAmount }

// StateError details a lifecycle-state violation.
type StateError struct {
	GrantID GrantID
	Status  Status
	Op      string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not valid for grant %s in state %s", e.Op, e.GrantID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// AllocatedFundsError details a rescue that would under-collateralize grants.
type AllocatedFundsError struct {
	Balance   int64
	Requested int64
	Allocated int64
}

func (e *AllocatedFundsError) Error() string {
	return fmt.Sprintf("rescue of %d from balance %d would drop below allocated %d",
		e.Requested, e.Balance, e.Allocated)
}

func (e *AllocatedFundsError) Unwrap() error { return ErrRescueWouldViolateAllocated }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrGrantAlreadyExists) ||
		errors.Is(err, ErrAlreadyInitialized) ||
		errors.Is(err, ErrGrantNotInactive) ||
		errors.Is(err, ErrRescueWouldViolateAllocated) ||
		errors.Is(err, ErrGranteeMismatch) ||
		errors.Is(err, ErrInvalidCouncilSize) ||
		errors.Is(err, ErrAlreadyVoted) ||
		errors.Is(err, ErrNoPauseProposal) ||
		errors.Is(err, ErrMilestoneExists) ||
		errors.Is(err, ErrMilestoneAlreadyReleased) ||
		errors.Is(err, ErrAlreadyTerminated) ||
		errors.Is(err, ErrCannotTerminateCompleted) ||
		errors.Is(err, ErrCannotTerminateCancelled)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGrantNotFound) ||
		errors.Is(err, ErrMilestoneNotFound) ||
		errors.Is(err, ErrNotInitialized)
}
