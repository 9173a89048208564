// ABOUTME: Token codec for bearer capability credentials
// ABOUTME: Decodes opaque static keys and verifies HS256-signed tokens offline

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is the fixed issuer constant identifying tokens minted by
// this system. Signed tokens carrying any other issuer are rejected.
const DefaultIssuer = "dorc"

// MinSecretLength is the minimum signing secret length in bytes.
const MinSecretLength = 32

// TokenKind distinguishes the two wire shapes of a capability token.
// It exists for audit and metrics only; no authorization decision may
// branch on it.
type TokenKind string

const (
	KindStaticKey   TokenKind = "static_key"
	KindSignedToken TokenKind = "signed_token"
)

// Token is a decoded bearer credential. Raw is the credential exactly as
// received; it lives only for the duration of one request and is never
// persisted or logged.
type Token struct {
	Kind TokenKind
	Raw  string
}

// Claims is the verified claim set of a signed token.
type Claims struct {
	Subject   string
	Tenant    string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec parses bearer credentials and verifies signed tokens with a
// symmetric secret. Verification is fully offline: no key server, no
// network access.
type Codec struct {
	secret []byte
	issuer string
}

// NewCodec creates a codec for the given signing secret. An empty issuer
// selects DefaultIssuer. The secret may be empty, in which case every
// signed token fails verification (static-key-only deployments).
func NewCodec(secret []byte, issuer string) (*Codec, error) {
	if len(secret) > 0 && len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Codec{secret: secret, issuer: issuer}, nil
}

// Decode classifies a raw credential by wire shape. Three dot-separated
// segments parse as a signed token; anything else is treated as an opaque
// static key whose validity is decided by table lookup, not here.
func (c *Codec) Decode(raw string) Token {
	if strings.Count(raw, ".") == 2 {
		return Token{Kind: KindSignedToken, Raw: raw}
	}
	return Token{Kind: KindStaticKey, Raw: raw}
}

// VerifySigned checks the signature and claim set of a signed token
// against the codec's secret and issuer at the given instant.
//
// Expiry is inclusive of the boundary: a token with exp equal to now is
// already expired. No clock skew leeway is granted, and an issued-at in
// the future fails as malformed, keeping verification deterministic.
func (c *Codec) VerifySigned(raw string, now time.Time) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidSignature)
	}

	// Claim validation is done by hand below so that the expiry boundary
	// and zero-skew rules are exactly as specified, not the library's.
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrMalformedToken)
	}

	iss, ok := claims["iss"].(string)
	if !ok || iss == "" {
		return nil, fmt.Errorf("%w: iss", ErrMissingClaim)
	}
	if iss != c.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrMalformedToken)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	tenant, ok := claims["tenant"].(string)
	if !ok || tenant == "" {
		return nil, fmt.Errorf("%w: tenant", ErrMissingClaim)
	}

	scopes, err := scopeClaim(claims)
	if err != nil {
		return nil, err
	}

	iat, err := timeClaim(claims, "iat")
	if err != nil {
		return nil, err
	}
	exp, err := timeClaim(claims, "exp")
	if err != nil {
		return nil, err
	}

	if iat.After(now) {
		return nil, fmt.Errorf("%w: issued in the future", ErrMalformedToken)
	}
	if !now.Before(exp) {
		return nil, ErrExpiredToken
	}

	return &Claims{
		Subject:   sub,
		Tenant:    tenant,
		Scopes:    scopes,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

// Mint issues a signed token from already-known claims. There is no other
// issuance workflow: no login, no refresh, no redirect flows.
func (c *Codec) Mint(subject, tenant string, scopes []string, now time.Time, ttl time.Duration) (string, error) {
	if len(c.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	if subject == "" || tenant == "" {
		return "", errors.New("subject and tenant are required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":    c.issuer,
		"sub":    subject,
		"tenant": tenant,
		"scope":  scopes,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	})
	return token.SignedString(c.secret)
}

// scopeClaim extracts the scope list. The contract shape is a list of
// strings; a single space-separated string is also accepted because the
// original issuer emitted that form.
func scopeClaim(claims jwt.MapClaims) ([]string, error) {
	v, ok := claims["scope"]
	if !ok {
		return nil, fmt.Errorf("%w: scope", ErrMissingClaim)
	}
	switch s := v.(type) {
	case []interface{}:
		scopes := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok || str == "" {
				return nil, fmt.Errorf("%w: scope entries must be non-empty strings", ErrMalformedToken)
			}
			scopes = append(scopes, str)
		}
		return scopes, nil
	case string:
		return strings.Fields(s), nil
	default:
		return nil, fmt.Errorf("%w: scope must be a list of strings", ErrMalformedToken)
	}
}

// timeClaim extracts an epoch-seconds claim as a time.Time.
func timeClaim(claims jwt.MapClaims, name string) (time.Time, error) {
	v, ok := claims[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingClaim, name)
	}
	secs, ok := v.(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s must be epoch seconds", ErrMalformedToken, name)
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}
