// ABOUTME: Bearer credential extraction from the Authorization header
// ABOUTME: Shared by the gateway request path and the CLI

package auth

import "strings"

// ExtractBearerToken extracts a bearer token from an Authorization header
// value. It returns the token and an error message, empty on success. The
// message never contains header content.
func ExtractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}
