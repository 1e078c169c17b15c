package model

import "errors"

// Failures returned by the access service. Callers match them with errors.Is;
// wrapped errors keep the sentinel reachable.
var (
	// ErrTokenNotFound means no live token matches: unknown, wrong kind, or its
	// record has already left pending.
	ErrTokenNotFound = errors.New("token not found")

	// ErrAlreadyRedeemed means the token existed but was consumed.
	ErrAlreadyRedeemed = errors.New("token already redeemed")

	// ErrAlreadyOwner rejects a transfer whose candidate is the current owner.
	ErrAlreadyOwner = errors.New("candidate already owns the vault")

	// ErrRequestExpired means the transfer window elapsed before redemption.
	ErrRequestExpired = errors.New("transfer request expired")

	// ErrNotAuthorized means the caller may not perform an owner-only operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrStorageConflict means a conditional write lost a race.
	ErrStorageConflict = errors.New("storage conflict")

	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state transition")
	ErrChannelClosed = errors.New("channel closed")
)

// ErrorCode returns the stable machine-readable code for err, or "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTokenNotFound):
		return "token_not_found"
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ErrAlreadyOwner):
		return "already_owner"
	case errors.Is(err, ErrRequestExpired):
		return "request_expired"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrStorageConflict):
		return "storage_conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrChannelClosed):
		return "channel_closed"
	default:
		return "internal"
	}
}
