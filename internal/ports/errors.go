package ports

import "errors"

// Standard application-level errors.
// Adapters and components wrap underlying errors with these sentinels.
var (
	// Pipeline error taxonomy.
	ErrDataUnavailable   = errors.New("data unavailable, retried on next poll")
	ErrValidation        = errors.New("validation failed")
	ErrExecutionFailed   = errors.New("order execution failed")
	ErrSafetyViolation   = errors.New("action blocked by safety coordinator")
	ErrSystemFault       = errors.New("unexpected internal fault")
	ErrInvalidTransition = errors.New("invalid stage transition")

	// Registry / execution bookkeeping.
	ErrNotFound        = errors.New("resource not found")
	ErrDuplicateEntry  = errors.New("record already exists")
	ErrOrderInFlight   = errors.New("an active order already exists for this target")
	ErrBelowThreshold  = errors.New("confidence below promotion threshold")
	ErrCapacityReached = errors.New("max concurrent targets reached")

	// Collaborator errors.
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrTimeout              = errors.New("operation timed out")

	// Database errors.
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
