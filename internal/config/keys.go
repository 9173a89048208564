// ABOUTME: Static-key table loading from a TOML file
// ABOUTME: Each entry binds one opaque key to a tenant and scope set

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// StaticKeyEntry is one configured static key. The table lives in its own
// file so the key material can carry tighter permissions than the main
// config.
//
//	[keys.k-acme-ci]
//	key = "k-123"
//	tenant = "acme"
//	scopes = ["validate:write"]
type StaticKeyEntry struct {
	Key    string   `toml:"key"`
	Tenant string   `toml:"tenant"`
	Scopes []string `toml:"scopes"`
}

type staticKeysFile struct {
	Keys map[string]StaticKeyEntry `toml:"keys"`
}

// LoadStaticKeys reads the TOML static-key table at the given path. The
// returned map is keyed by the table's entry name (the key ID used in
// audit records); entries carry the raw key material.
func LoadStaticKeys(path string) (map[string]StaticKeyEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading static keys file: %w", err)
	}

	var parsed staticKeysFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing static keys file: %w", err)
	}

	seen := make(map[string]string, len(parsed.Keys))
	for id, entry := range parsed.Keys {
		if entry.Key == "" {
			return nil, fmt.Errorf("static key %q: key is required", id)
		}
		// Credentials with two dots are classified as signed tokens on
		// the wire, so a key shaped like one could never be looked up.
		if strings.Count(entry.Key, ".") == 2 {
			return nil, fmt.Errorf("static key %q: key material must not contain exactly two dots (would parse as a signed token)", id)
		}
		if entry.Tenant == "" {
			return nil, fmt.Errorf("static key %q: tenant is required", id)
		}
		if len(entry.Scopes) == 0 {
			return nil, fmt.Errorf("static key %q: at least one scope is required", id)
		}
		if prev, dup := seen[entry.Key]; dup {
			return nil, fmt.Errorf("static key %q duplicates the key material of %q", id, prev)
		}
		seen[entry.Key] = id
	}

	return parsed.Keys, nil
}
