// ABOUTME: Pure authorization decision over a resolved Capability
// ABOUTME: Checks expiry, scope membership, and tenant isolation in order

package auth

import "time"

// Outcome is the result of an authorization decision: either allowed with
// the deciding capability, or rejected with a reason code.
type Outcome struct {
	Allowed    bool
	Capability *Capability
	Reason     Reason
}

// Authorize decides whether cap permits operation at the given instant.
// targetTenant, when non-empty, is the tenant the request acts on (taken
// from the request, e.g. the validate body); the token's tenant is
// authoritative and a mismatch is always rejected.
//
// The function is pure and deterministic: no I/O, no hidden state,
// identical inputs always yield identical outcomes. Checks run in a fixed
// order so a token that is both expired and out of scope reports expired.
func Authorize(cap *Capability, operation string, now time.Time, targetTenant string) Outcome {
	if !cap.ExpiresAt.IsZero() && !now.Before(cap.ExpiresAt) {
		return Outcome{Capability: cap, Reason: ReasonExpired}
	}
	if !cap.HasScope(operation) {
		return Outcome{Capability: cap, Reason: ReasonScopeDenied}
	}
	if targetTenant != "" && targetTenant != cap.Tenant {
		return Outcome{Capability: cap, Reason: ReasonTenantMismatch}
	}
	return Outcome{Allowed: true, Capability: cap}
}
