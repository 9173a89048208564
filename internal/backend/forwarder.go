// ABOUTME: Outbound call to the internal dorc-engine backend
// ABOUTME: Forwards authorized requests verbatim with the original bearer token

package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Forwarding errors. Both occur only after authorization succeeded and
// are reported distinctly from auth failures so callers can tell "fix
// your token" from "try again later".
var (
	ErrUnavailable = errors.New("backend unavailable")
	ErrTimeout     = errors.New("backend timeout")
)

// hopByHopHeaders are connection-level headers that must not be copied
// between the inbound and outbound legs.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// Forwarder performs the thin outbound call to the internal backend. It
// assumes the gateway already authorized the request and only forwards:
// same method, path, body, and Authorization header, no extra envelope.
type Forwarder struct {
	baseURL *url.URL
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a forwarder for the given backend base URL. Every call is
// bounded by timeout; the forwarder never retries on its own.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) (*Forwarder, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend base URL %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		return nil, errors.New("backend timeout must be positive")
	}

	return &Forwarder{
		baseURL: u,
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Forward sends the inbound request to the backend carrying the exact
// token received from the caller, and copies the backend response to w.
//
// The outbound context derives from the inbound one, so caller
// cancellation abandons the call best-effort; the call is never retried
// here. Returns ErrTimeout when the configured timeout elapses and
// ErrUnavailable for any other transport failure.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, token string) error {
	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()

	target := *f.baseURL
	target.Path = strings.TrimRight(f.baseURL.Path, "/") + r.URL.Path
	target.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		return fmt.Errorf("building backend request: %w", err)
	}

	copyHeaders(out.Header, r.Header)
	// No re-issuance, no translation: the backend may re-verify the same
	// credential if it chooses.
	out.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.client.Do(out)
	if err != nil {
		return f.classify(err)
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Response headers are already committed; log and give up.
		f.logger.Error("copying backend response", "error", err)
	}
	return nil
}

// classify maps a transport error to the forwarding taxonomy.
func (f *Forwarder) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		// Inbound caller went away; surface as unavailable without retry.
		return ErrUnavailable
	}
	return ErrUnavailable
}

// copyHeaders copies all non-hop-by-hop headers from src to dst.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if _, skip := hopByHopHeaders[http.CanonicalHeaderKey(key)]; skip {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
