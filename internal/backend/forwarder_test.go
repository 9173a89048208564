// ABOUTME: Tests for the backend forwarder using httptest backends
// ABOUTME: Covers verbatim forwarding, timeout, and unreachable classification

package backend

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("not a url at all\x7f", time.Second, testLogger()); err == nil {
		t.Error("expected error for unparsable URL")
	}
	if _, err := New("/relative/path", time.Second, testLogger()); err == nil {
		t.Error("expected error for relative URL")
	}
	if _, err := New("http://backend:9000", 0, testLogger()); err == nil {
		t.Error("expected error for zero timeout")
	}
}

func TestForward_Verbatim(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("X-Run-Id", "run-42")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"run_id":"run-42"}`))
	}))
	defer srv.Close()

	f, err := New(srv.URL, 2*time.Second, testLogger())
	require.NoError(t, err)

	body := bytes.NewBufferString(`{"tenant_slug":"acme","content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/validate?trace=1", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	require.NoError(t, f.Forward(rec, req, "the-original-token"))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/validate", gotPath)
	assert.Equal(t, "trace=1", gotQuery)
	assert.Equal(t, "Bearer the-original-token", gotAuth, "token must be forwarded unmodified")
	assert.JSONEq(t, `{"tenant_slug":"acme","content":"hello"}`, gotBody)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "run-42", rec.Header().Get("X-Run-Id"))
	assert.JSONEq(t, `{"run_id":"run-42"}`, rec.Body.String())
}

func TestForward_BasePathJoin(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, err := New(srv.URL+"/engine/", 2*time.Second, testLogger())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, f.Forward(rec, req, "tok"))

	assert.Equal(t, "/engine/v1/runs/run-1", gotPath)
}

func TestForward_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	f, err := New(srv.URL, 50*time.Millisecond, testLogger())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil)
	rec := httptest.NewRecorder()

	err = f.Forward(rec, req, "tok")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestForward_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so the address refuses connections

	f, err := New(srv.URL, time.Second, testLogger())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil)
	rec := httptest.NewRecorder()

	err = f.Forward(rec, req, "tok")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestForward_CallerCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	f, err := New(srv.URL, 10*time.Second, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan error, 1)
	go func() { done <- f.Forward(rec, req, "tok") }()

	<-started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("forward did not abandon the call after cancellation")
	}
}
