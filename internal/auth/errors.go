// ABOUTME: Error taxonomy for authentication and authorization failures
// ABOUTME: Maps sentinel errors to stable reason codes for responses and audit

package auth

import "errors"

// Sentinel errors for token verification and capability resolution.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMissingClaim     = errors.New("missing required claim")
	ErrExpiredToken     = errors.New("token expired")
	ErrUnknownKey       = errors.New("unknown key")
)

// Reason is a stable, client-visible rejection code. Reasons never carry
// token material; they only name the failure class.
type Reason string

const (
	ReasonMissingCredential Reason = "missing_credential"
	ReasonMalformedToken    Reason = "malformed_token"
	ReasonInvalidSignature  Reason = "invalid_signature"
	ReasonMissingClaim      Reason = "missing_claim"
	ReasonExpired           Reason = "expired"
	ReasonUnknownKey        Reason = "unknown_key"
	ReasonScopeDenied       Reason = "scope_denied"
	ReasonTenantMismatch    Reason = "tenant_mismatch"
)

// ReasonForError maps a resolution error to its rejection reason.
// Unrecognized errors map to malformed_token so callers never leak
// internal detail for an unexpected failure.
func ReasonForError(err error) Reason {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return ReasonInvalidSignature
	case errors.Is(err, ErrMissingClaim):
		return ReasonMissingClaim
	case errors.Is(err, ErrExpiredToken):
		return ReasonExpired
	case errors.Is(err, ErrUnknownKey):
		return ReasonUnknownKey
	default:
		return ReasonMalformedToken
	}
}
