// ABOUTME: Context propagation for the resolved Capability
// ABOUTME: Provides WithCapability/FromContext for request handlers and audit

package auth

import "context"

// capabilityKey is the key type for storing a Capability in context.Context.
type capabilityKey struct{}

// WithCapability returns a new context with the capability attached.
func WithCapability(ctx context.Context, cap *Capability) context.Context {
	return context.WithValue(ctx, capabilityKey{}, cap)
}

// FromContext retrieves the Capability from the context, returning nil if
// not present.
func FromContext(ctx context.Context) *Capability {
	val := ctx.Value(capabilityKey{})
	if val == nil {
		return nil
	}
	cap, ok := val.(*Capability)
	if !ok {
		return nil
	}
	return cap
}
