package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Topology errors
	ErrUnknownBeam     = errors.New("no beam association for requested channel")
	ErrTopologyInvalid = errors.New("expected-topology description is invalid")
	ErrDuplicateChild  = errors.New("duplicate child in topology hierarchy")
	ErrMissingParent   = errors.New("topology component has no declared parent")

	// ObservationRange / RFI mask errors
	ErrEmptyRange        = errors.New("observation range is empty")
	ErrNegativeFrequency = errors.New("frequency must be non-negative")
	ErrUnsortedSignals   = errors.New("signal list is not sorted ascending")
	ErrNonPositiveWidth  = errors.New("mask element width must be positive")

	// Target scheduler errors
	ErrNoTarget           = errors.New("no target satisfies visibility and merit constraints")
	ErrTargetExhausted    = errors.New("target has no unobserved bandwidth remaining")
	ErrTargetInUse        = errors.New("target is already held by another running activity")
	ErrInsufficientUptime = errors.New("insufficient remaining up-time on target")

	// Detector tuning errors
	ErrNoUsableBandwidth = errors.New("observation range has no usable bandwidth for tuning")
	ErrSpreadExceeded    = errors.New("tuning spread would exceed configured maximum")

	// Component proxy / fabric errors
	ErrVersionMismatch    = errors.New("component reported interface version does not match expected")
	ErrDuplicateName      = errors.New("a proxy with this name is already registered")
	ErrProxyNotRegistered   = errors.New("proxy is not registered with the manager")
	ErrProxyNotAllocated    = errors.New("proxy is not allocated to the caller")
	ErrProxyAlreadyAllocated = errors.New("proxy is already allocated to another activity")
	ErrComponentNotFound    = errors.New("no component by that name is registered")

	// Wire protocol errors
	ErrOversizedBody   = errors.New("declared message body length exceeds maximum")
	ErrMalformedHeader = errors.New("malformed message header")
	ErrOutOfSequence   = errors.New("message number out of sequence")

	// Activity lifecycle errors
	ErrActivityStopped      = errors.New("activity has already been stopped")
	ErrActivityNotPending   = errors.New("activity is not in a startable state")
	ErrStageTimeout         = errors.New("activity stage timed out")
	ErrNoSurvivingUnits     = errors.New("no activity units survived to completion")
	ErrParameterOutOfBounds = errors.New("parameter value outside configured min/max bounds")

	// Persistence errors
	ErrObsHistoryUnreachable = errors.New("observation history database is unreachable")
	ErrActivityNotFound      = errors.New("activity not found")

	// Component health / resilience errors
	ErrCircuitOpen          = errors.New("component circuit breaker is open")
	ErrComponentQuarantined = errors.New("component is quarantined")
)
