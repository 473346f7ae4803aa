package domain

import "errors"

// ============================================================================
// Lookup Errors
// ============================================================================

var (
	ErrModelNotFound        = errors.New("model not found")
	ErrDeploymentNotFound   = errors.New("deployment not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrModelNotDeployed     = errors.New("model is not currently deployed")
)

// ============================================================================
// Credential Errors
// ============================================================================

var (
	ErrMissingCredential = errors.New("missing or invalid authorization header")
	ErrInvalidCredential = errors.New("invalid API key or inactive subscription")
	ErrMissingIdentity   = errors.New("caller identity is required")
)

// ============================================================================
// Validation Errors
// ============================================================================

var (
	ErrInvalidModelID    = errors.New("model ID is required")
	ErrInvalidStatus     = errors.New("invalid deployment status")
	ErrInvalidTransition = errors.New("invalid deployment status transition")
)

// ============================================================================
// Serving Backend Errors
// ============================================================================

var (
	// ErrBackendUnavailable covers transport failures and responses that
	// cannot be interpreted (HTML error pages, malformed JSON, missing URL).
	ErrBackendUnavailable = errors.New("deployment backend unavailable")
	// ErrDeployRejected is returned when the backend answered with a
	// non-success status and a readable body.
	ErrDeployRejected   = errors.New("deployment rejected by backend")
	ErrInferenceTimeout = errors.New("request timeout")
)

// ============================================================================
// Infrastructure Errors
// ============================================================================

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrLockNotAcquired    = errors.New("could not acquire deployment lock")
	ErrCallLogQueueFull   = errors.New("call log queue full")
	ErrCallLoggerClosed   = errors.New("call logger closed")
)
