package ledger

import "fmt"

// ErrorKind classifies ledger failures for retry policy: validation
// errors are never retried, state errors may be retried once the
// triggering condition changes.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindState
)

// Error is a ledger failure with a stable code. Errors compare by
// identity through errors.Is, so callers match against the sentinels
// below.
type Error struct {
	Code   string
	Kind   ErrorKind
	detail string
}

func (e *Error) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.detail)
	}
	return e.Code
}

// Is matches any error carrying the same code, so detailed errors built
// with withDetail still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) withDetail(format string, args ...interface{}) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, detail: fmt.Sprintf(format, args...)}
}

var (
	ErrAlreadyInitialized    = &Error{Code: "already_initialized", Kind: KindState}
	ErrNotInitialized        = &Error{Code: "not_initialized", Kind: KindState}
	ErrInvalidAmount         = &Error{Code: "invalid_amount", Kind: KindValidation}
	ErrInsufficientBond      = &Error{Code: "insufficient_bond", Kind: KindValidation}
	ErrInsufficientAvailable = &Error{Code: "insufficient_available", Kind: KindValidation}
	ErrInsufficientFunds     = &Error{Code: "insufficient_funds", Kind: KindValidation}
	ErrDuplicateCommitment   = &Error{Code: "duplicate_commitment", Kind: KindValidation}
	ErrProviderLiquidated    = &Error{Code: "provider_liquidated", Kind: KindState}
	ErrBondNotFound          = &Error{Code: "bond_not_found", Kind: KindValidation}
	ErrClaimNotFound         = &Error{Code: "claim_not_found", Kind: KindValidation}
	ErrNotPending            = &Error{Code: "not_pending", Kind: KindState}
	ErrInvalidSignature      = &Error{Code: "invalid_signature", Kind: KindValidation}
	ErrUnauthorized          = &Error{Code: "unauthorized", Kind: KindValidation}
	ErrDeadlineNotReached    = &Error{Code: "deadline_not_reached", Kind: KindState}
	ErrNotEligible           = &Error{Code: "not_eligible", Kind: KindState}
	ErrArithmeticOverflow    = &Error{Code: "arithmetic_overflow", Kind: KindValidation}
)
