// ABOUTME: Tests for configuration loading, validation, and key table parsing
// ABOUTME: Covers env expansion, duration parsing, and TOML static keys

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

const validConfig = `
server:
  http_addr: "localhost:8080"

auth:
  jwt_secret: "${DORC_TEST_SECRET}"
  issuer: "dorc"
  static_key_ttl: "24h"

backend:
  base_url: "http://backend.internal:9000"
  timeout: "5s"

routes:
  - { method: "POST", path: "/v1/validate", operation: "validate:write" }
  - { method: "GET", path: "/v1/runs/{id}", operation: "runs:read" }

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
`

func TestLoad_Valid(t *testing.T) {
	t.Setenv("DORC_TEST_SECRET", "env-expanded-secret-32-bytes-ok!")
	path := writeTempFile(t, "gateway.yaml", validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "env-expanded-secret-32-bytes-ok!", cfg.Auth.JWTSecret)
	assert.Equal(t, "dorc", cfg.Auth.Issuer)
	assert.Equal(t, 24*time.Hour, cfg.Auth.StaticKeyTTL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	require.Len(t, cfg.Routes, 2)
	assert.Equal(t, "validate:write", cfg.Routes[0].Operation)
	assert.Equal(t, "/v1/runs/{id}", cfg.Routes[1].Path)
	assert.Equal(t, "/metrics", cfg.Metrics.Path, "metrics path should default")
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempFile(t, "gateway.yaml", `
server:
  http_addr: "localhost:8080"
auth:
  jwt_secret: "some-secret-long-enough-32-bytes"
backend:
  base_url: "http://backend:9000"
routes:
  - { method: "GET", path: "/v1/runs/{id}", operation: "runs:read" }
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dorc", cfg.Auth.Issuer)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Zero(t, cfg.Auth.StaticKeyTTL)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing http_addr",
			content: `
auth: { jwt_secret: "some-secret-long-enough-32-bytes" }
backend: { base_url: "http://b:9000" }
routes: [ { method: "GET", path: "/v1/runs/{id}", operation: "runs:read" } ]
`,
		},
		{
			name: "no credentials configured",
			content: `
server: { http_addr: "localhost:8080" }
backend: { base_url: "http://b:9000" }
routes: [ { method: "GET", path: "/v1/runs/{id}", operation: "runs:read" } ]
`,
		},
		{
			name: "missing backend",
			content: `
server: { http_addr: "localhost:8080" }
auth: { jwt_secret: "some-secret-long-enough-32-bytes" }
routes: [ { method: "GET", path: "/v1/runs/{id}", operation: "runs:read" } ]
`,
		},
		{
			name: "no routes",
			content: `
server: { http_addr: "localhost:8080" }
auth: { jwt_secret: "some-secret-long-enough-32-bytes" }
backend: { base_url: "http://b:9000" }
`,
		},
		{
			name: "route missing operation",
			content: `
server: { http_addr: "localhost:8080" }
auth: { jwt_secret: "some-secret-long-enough-32-bytes" }
backend: { base_url: "http://b:9000" }
routes: [ { method: "GET", path: "/v1/runs/{id}" } ]
`,
		},
		{
			name: "bad duration",
			content: `
server: { http_addr: "localhost:8080" }
auth: { jwt_secret: "some-secret-long-enough-32-bytes" }
backend: { base_url: "http://b:9000", timeout: "not-a-duration" }
routes: [ { method: "GET", path: "/v1/runs/{id}", operation: "runs:read" } ]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, "gateway.yaml", tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadStaticKeys(t *testing.T) {
	path := writeTempFile(t, "keys.toml", `
[keys.k-acme-ci]
key = "k-123"
tenant = "acme"
scopes = ["validate:write"]

[keys.k-globex-reader]
key = "k-456"
tenant = "globex"
scopes = ["runs:read"]
`)

	keys, err := LoadStaticKeys(path)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	assert.Equal(t, "k-123", keys["k-acme-ci"].Key)
	assert.Equal(t, "acme", keys["k-acme-ci"].Tenant)
	assert.Equal(t, []string{"validate:write"}, keys["k-acme-ci"].Scopes)
	assert.Equal(t, "globex", keys["k-globex-reader"].Tenant)
}

func TestLoadStaticKeys_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing key", "[keys.a]\ntenant = \"acme\"\nscopes = [\"runs:read\"]\n"},
		{"missing tenant", "[keys.a]\nkey = \"k-1\"\nscopes = [\"runs:read\"]\n"},
		{"empty scopes", "[keys.a]\nkey = \"k-1\"\ntenant = \"acme\"\nscopes = []\n"},
		{"not toml", "{\"keys\": {}}"},
		{
			// Two dots make the credential parse as a signed token, so
			// the table entry would be unreachable at request time.
			"key shaped like a signed token",
			"[keys.a]\nkey = \"aaa.bbb.ccc\"\ntenant = \"acme\"\nscopes = [\"runs:read\"]\n",
		},
		{
			"duplicate key material",
			"[keys.a]\nkey = \"k-1\"\ntenant = \"acme\"\nscopes = [\"runs:read\"]\n" +
				"[keys.b]\nkey = \"k-1\"\ntenant = \"globex\"\nscopes = [\"runs:read\"]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, "keys.toml", tt.content)
			_, err := LoadStaticKeys(path)
			assert.Error(t, err)
		})
	}
}
