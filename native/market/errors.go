package market

import "errors"

// Stable error discriminants surfaced by every engine operation. Callers
// branch with errors.Is; wrapped causes retain the underlying detail.
var (
	ErrInvalidInput     = errors.New("market: invalid input")
	ErrPolicyViolation  = errors.New("market: policy violation")
	ErrInvalidState     = errors.New("market: invalid state")
	ErrExpired          = errors.New("market: validity window elapsed")
	ErrTooEarly         = errors.New("market: validity window still open")
	ErrPriceUnavailable = errors.New("market: price unavailable")
	ErrTransferFailed   = errors.New("market: asset transfer failed")
	ErrNotFound         = errors.New("market: entry not found")
	ErrReentrancy       = errors.New("market: reentrant call on entry in flight")
)
