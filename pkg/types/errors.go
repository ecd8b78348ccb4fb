package types

import "errors"

// Error kinds surfaced by the pipeline. Packages wrap these sentinels with
// fmt.Errorf("...: %w", ...) so callers can classify failures with errors.Is
// without depending on provider-specific error types.
//
// Cancellation is not represented here: context.Canceled and
// context.DeadlineExceeded pass through unwrapped.
var (
	// ErrInvalidInput marks missing or malformed caller input: empty audio,
	// non-monotone activity events, or a zero recording start where one is
	// required.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable marks a network failure or 5xx response from the
	// STT or summariser provider. The operation may succeed on retry.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderContract marks a well-formed provider response that is
	// missing fields the core depends on. Retrying will not help.
	ErrProviderContract = errors.New("provider contract violation")

	// ErrInternal marks an invariant violation detected during transcript
	// assembly. Always logged; should never reach production.
	ErrInternal = errors.New("internal invariant violation")
)
