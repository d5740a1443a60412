package payment

import "errors"

var (
	// ErrInvalidSignature means the webhook payload failed signature
	// verification and must not cause any state change.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")

	// ErrMalformedEvent means the payload was signed correctly but could
	// not be parsed into an event.
	ErrMalformedEvent = errors.New("payment: malformed webhook event")

	// ErrUpstreamUnavailable means the billing provider API could not be
	// reached while resolving event context. Safe to retry.
	ErrUpstreamUnavailable = errors.New("payment: billing provider unavailable")

	// ErrStoreWrite means persisting the reconciled state failed. Safe to
	// retry.
	ErrStoreWrite = errors.New("payment: store write failed")

	// ErrAccountNotFound means the event correlated to a user that does
	// not exist in the account store.
	ErrAccountNotFound = errors.New("payment: account not found")
)

// IsRetryable reports whether the caller should signal the provider to
// redeliver the event.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrStoreWrite)
}
