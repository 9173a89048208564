// Package config handles configuration loading for dorc-gateway.
//
// Configuration is read once at startup from a YAML file with ${VAR_NAME}
// environment variable expansion and Go duration syntax for timeouts:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
//	auth:
//	  jwt_secret: "${DORC_JWT_SECRET}"
//	  issuer: "dorc"
//	  static_keys_file: "/etc/dorc/keys.toml"
//	  static_key_ttl: "0s"
//
//	backend:
//	  base_url: "http://dorc-engine.internal:9000"
//	  timeout: "30s"
//
//	routes:
//	  - { method: "POST", path: "/v1/validate",         operation: "validate:write" }
//	  - { method: "GET",  path: "/v1/runs/{id}",        operation: "runs:read" }
//	  - { method: "GET",  path: "/v1/runs/{id}/chunks", operation: "runs:read" }
//
//	audit:
//	  path: "/var/lib/dorc/audit.db"
//
//	logging:
//	  level: "info"
//	  format: "text"
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// The static-key table is a separate TOML file (see LoadStaticKeys) so the
// key material can be permissioned independently of the main config.
//
// None of this is re-read per request: the loaded Config, key table, and
// route table are immutable after startup and safe for concurrent readers.
package config
