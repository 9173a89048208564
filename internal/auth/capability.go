// ABOUTME: Capability resolution for verified bearer credentials
// ABOUTME: Produces immutable Capability records from signed tokens or static keys

package auth

import (
	"fmt"
	"time"
)

// Capability is the authorization unit extracted from a token. It is
// immutable once constructed, derived fresh for every request, and never
// cached across requests.
type Capability struct {
	// Subject is the capability identifier, never a human identity. For
	// static keys this is the configured key ID, never the key itself.
	Subject string
	// Tenant is the isolation boundary the token is confined to.
	Tenant string
	// Scopes are the operation names the token permits, matched by exact
	// string membership.
	Scopes []string
	// IssuedAt and ExpiresAt bound the capability's validity. A zero
	// ExpiresAt means the capability never expires (static keys with no
	// configured TTL).
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Kind records the original wire shape for audit and metrics only.
	// Both kinds carry identical trust; nothing downstream may branch
	// on this field to grant different treatment.
	Kind TokenKind
}

// HasScope reports whether the capability permits the given operation.
func (c *Capability) HasScope(operation string) bool {
	for _, s := range c.Scopes {
		if s == operation {
			return true
		}
	}
	return false
}

// StaticKey is one entry of the static-key table: a preconfigured opaque
// credential bound to a tenant and scope set.
type StaticKey struct {
	// ID names the key in audit records. The key material never appears
	// in logs or errors.
	ID     string
	Tenant string
	Scopes []string
}

// Resolver turns a raw bearer credential into a Capability. It is
// stateless per request: the key table and codec are read-only after
// construction and safe for unsynchronized concurrent use.
type Resolver struct {
	codec     *Codec
	keys      map[string]StaticKey
	staticTTL time.Duration // 0 means static keys never expire
}

// NewResolver creates a resolver over the given codec and static-key
// table. The table maps raw key strings to their entries.
func NewResolver(codec *Codec, keys map[string]StaticKey, staticTTL time.Duration) *Resolver {
	if keys == nil {
		keys = map[string]StaticKey{}
	}
	return &Resolver{codec: codec, keys: keys, staticTTL: staticTTL}
}

// Resolve verifies a raw credential and constructs its Capability.
// Resolving the same credential twice at the same instant yields
// identical values. Failure returns one of the package sentinel errors.
func (r *Resolver) Resolve(raw string, now time.Time) (*Capability, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrMalformedToken)
	}

	token := r.codec.Decode(raw)
	switch token.Kind {
	case KindSignedToken:
		claims, err := r.codec.VerifySigned(token.Raw, now)
		if err != nil {
			return nil, err
		}
		scopes := make([]string, len(claims.Scopes))
		copy(scopes, claims.Scopes)
		return &Capability{
			Subject:   claims.Subject,
			Tenant:    claims.Tenant,
			Scopes:    scopes,
			IssuedAt:  claims.IssuedAt,
			ExpiresAt: claims.ExpiresAt,
			Kind:      KindSignedToken,
		}, nil

	case KindStaticKey:
		entry, ok := r.keys[token.Raw]
		if !ok {
			return nil, ErrUnknownKey
		}
		scopes := make([]string, len(entry.Scopes))
		copy(scopes, entry.Scopes)
		cap := &Capability{
			Subject:  entry.ID,
			Tenant:   entry.Tenant,
			Scopes:   scopes,
			IssuedAt: now,
			Kind:     KindStaticKey,
		}
		if r.staticTTL > 0 {
			cap.ExpiresAt = now.Add(r.staticTTL)
		}
		return cap, nil

	default:
		return nil, fmt.Errorf("%w: unknown token kind", ErrMalformedToken)
	}
}
