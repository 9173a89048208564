// Package auth implements capability-token authentication and
// authorization for dorc-gateway.
//
// # Capability Tokens
//
// A bearer credential arrives as `Authorization: Bearer <token>` and has
// one of two wire shapes:
//
//   - Signed token: a three-part HS256-signed structure verified offline
//     with the shared signing secret. Required claims: iss (fixed issuer
//     constant), sub, tenant, scope, iat, exp.
//
//   - Static key: an opaque string checked against the configured key
//     table. No cryptography; validity is table membership.
//
// Both shapes resolve to the same Capability value (tenant, scope set,
// subject, validity window) and are treated identically downstream. The
// Kind field exists only so audit records can name the credential shape;
// no code path branches on it to grant different trust.
//
// # Decision Pipeline
//
//	raw credential -> Codec.Decode -> Resolver.Resolve -> Capability
//	Capability + operation + now -> Authorize -> Allowed | Rejected(reason)
//
// Resolver and Authorize are stateless; a Capability is derived fresh per
// request and never cached, so expiry is re-checked against the current
// time on every call.
//
// # Error Taxonomy
//
// Resolution failures are sentinel errors (ErrMalformedToken,
// ErrInvalidSignature, ErrMissingClaim, ErrExpiredToken, ErrUnknownKey)
// mapped to stable Reason codes. Authorization rejections use
// ReasonScopeDenied and ReasonTenantMismatch. Raw tokens and the signing
// secret never appear in errors, reasons, or logs.
package auth
