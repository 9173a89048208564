// ABOUTME: Per-request authentication, authorization, and forwarding pipeline
// ABOUTME: Maps routes to operations and auth failures to structured rejections

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dorc/dorc-gateway/internal/audit"
	"github.com/dorc/dorc-gateway/internal/auth"
	"github.com/dorc/dorc-gateway/internal/backend"
)

// Rejection reasons for post-authorization backend failures. These are the
// only reasons that may carry a retry hint.
const (
	reasonBackendUnavailable = "backend_unavailable"
	reasonBackendTimeout     = "backend_timeout"
)

// reasonUnreadableBody covers request bodies that fail mid-read while
// peeking the target tenant. Terminal like any other rejection.
const reasonUnreadableBody = "unreadable_body"

// tenantPeekLimit bounds how much of a request body is buffered to read
// the target tenant. Larger bodies stream through to the backend intact;
// only the buffered prefix is inspected.
const tenantPeekLimit = 1 << 20

// errorResponse is the JSON body of every gateway rejection.
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// handleProxy runs the request state machine: extract credential, resolve
// capability, authorize the mapped operation, then forward. Terminal
// states are Forwarded and Rejected; each produces exactly one audit
// record.
func (g *Gateway) handleProxy(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	now := g.now()

	operation, ok := g.routes.match(r.Method, r.URL.Path)
	if !ok {
		// Unknown paths never reach the backend.
		g.logger.Debug("unknown route", "method", r.Method, "path", r.URL.Path)
		g.writeError(w, http.StatusNotFound, "unknown route", "unknown_route")
		return
	}

	token, errMsg := auth.ExtractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		g.reject(r.Context(), w, requestID, nil, operation, auth.ReasonMissingCredential, errMsg)
		return
	}

	capability, err := g.resolver.Resolve(token, now)
	if err != nil {
		reason := auth.ReasonForError(err)
		g.reject(r.Context(), w, requestID, nil, operation, reason, rejectionMessage(reason))
		return
	}

	targetTenant, r, err := extractTargetTenant(r)
	if err != nil {
		g.writeError(w, http.StatusBadRequest, "unreadable request body", reasonUnreadableBody)
		g.record(r.Context(), requestID, capability, operation, audit.OutcomeRejected, reasonUnreadableBody, http.StatusBadRequest)
		return
	}

	outcome := auth.Authorize(capability, operation, now, targetTenant)
	if !outcome.Allowed {
		g.reject(r.Context(), w, requestID, capability, operation, outcome.Reason, rejectionMessage(outcome.Reason))
		return
	}

	r = r.WithContext(auth.WithCapability(r.Context(), capability))
	g.forward(w, r, requestID, capability, operation, token)
}

// forward hands the authorized request to the backend and records the
// terminal state.
func (g *Gateway) forward(w http.ResponseWriter, r *http.Request, requestID string, capability *auth.Capability, operation, token string) {
	start := g.now()
	err := g.forwarder.Forward(w, r, token)
	g.metrics.observeForward(g.now().Sub(start))

	if err != nil {
		reason := reasonBackendUnavailable
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrTimeout) {
			reason = reasonBackendTimeout
			status = http.StatusGatewayTimeout
		}
		g.writeError(w, status, "backend request failed, safe to retry", reason)
		g.record(r.Context(), requestID, capability, operation, audit.OutcomeRejected, reason, status)
		return
	}

	g.record(r.Context(), requestID, capability, operation, audit.OutcomeForwarded, "", http.StatusOK)
}

// reject writes a structured rejection and records the terminal state.
// Auth failures are terminal at the gateway: never retried locally, never
// partially processed, and the backend is never called.
func (g *Gateway) reject(ctx context.Context, w http.ResponseWriter, requestID string, capability *auth.Capability, operation string, reason auth.Reason, message string) {
	status := httpStatusForReason(reason)
	g.writeError(w, status, message, string(reason))
	g.record(ctx, requestID, capability, operation, audit.OutcomeRejected, string(reason), status)
}

// record emits the per-request audit entry and bumps metrics.
func (g *Gateway) record(ctx context.Context, requestID string, capability *auth.Capability, operation string, outcome audit.Outcome, reason string, status int) {
	entry := audit.Entry{
		RequestID: requestID,
		Operation: operation,
		Outcome:   outcome,
		Reason:    reason,
		Status:    status,
	}
	if capability != nil {
		entry.Subject = capability.Subject
		entry.Tenant = capability.Tenant
	}
	g.audit.Record(ctx, entry)
	g.metrics.countRequest(string(outcome), reason)
}

// writeError writes the standard JSON rejection body.
func (g *Gateway) writeError(w http.ResponseWriter, status int, message, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Reason: reason})
}

// httpStatusForReason maps rejection reasons to HTTP statuses: credential
// problems are 401, policy denials are 403.
func httpStatusForReason(reason auth.Reason) int {
	switch reason {
	case auth.ReasonScopeDenied, auth.ReasonTenantMismatch:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// rejectionMessage returns the client-visible message for a reason. The
// messages are fixed strings; they never echo token or header content.
func rejectionMessage(reason auth.Reason) string {
	switch reason {
	case auth.ReasonMalformedToken:
		return "malformed token"
	case auth.ReasonInvalidSignature:
		return "invalid token signature"
	case auth.ReasonMissingClaim:
		return "token is missing a required claim"
	case auth.ReasonExpired:
		return "token expired, obtain a new token"
	case auth.ReasonUnknownKey:
		return "unknown key"
	case auth.ReasonScopeDenied:
		return "operation not permitted by token scope"
	case auth.ReasonTenantMismatch:
		return "token tenant does not match request tenant"
	default:
		return "unauthorized"
	}
}

// extractTargetTenant reads the tenant the request claims to act on.
// Validate submissions carry it as the tenant_slug body field; requests
// without one yield an empty target and the token's tenant stands alone.
// The consumed body prefix is stitched back so forwarding sees the
// request intact.
func extractTargetTenant(r *http.Request) (string, *http.Request, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", r, nil
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return "", r, nil
	}

	prefix, err := io.ReadAll(io.LimitReader(r.Body, tenantPeekLimit))
	if err != nil {
		return "", r, fmt.Errorf("reading request body: %w", err)
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(prefix), r.Body), r.Body}

	var payload struct {
		TenantSlug string `json:"tenant_slug"`
	}
	// A truncated or invalid body simply yields no target tenant; payload
	// validation is the backend's job.
	if err := json.Unmarshal(prefix, &payload); err != nil {
		return "", r, nil
	}
	return payload.TenantSlug, r, nil
}
