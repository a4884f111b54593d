package config

import (
	"errors"
	"os"
	"strings"
)

// ErrMissingCredential is returned when no API key can be found.
var ErrMissingCredential = errors.New("no API key configured (set --api-key, api_key in config, CLARIDATA_API_KEY or OPENROUTER_API_KEY)")

// Credential is an API key. It formats masked so it can't leak through logs
// or %v verbs; call Reveal to get the raw value for the HTTP header.
type Credential struct{ key string }

func (c Credential) String() string { return Mask(c.key) }

// GoString keeps %#v masked as well.
func (c Credential) GoString() string { return "config.Credential(" + Mask(c.key) + ")" }

// MarshalText masks the key when the credential is serialized.
func (c Credential) MarshalText() ([]byte, error) { return []byte(Mask(c.key)), nil }

// Reveal returns the raw key.
func (c Credential) Reveal() string { return c.key }

// Empty reports whether the credential holds no key.
func (c Credential) Empty() bool { return c.key == "" }

// Env vars consulted after the explicit value, in order.
var credentialEnv = []string{"CLARIDATA_API_KEY", "OPENROUTER_API_KEY"}

// ResolveCredential picks the first non-blank key from explicit, then the
// environment.
func ResolveCredential(explicit string) (Credential, error) {
	if k := strings.TrimSpace(explicit); k != "" {
		return Credential{key: k}, nil
	}
	for _, name := range credentialEnv {
		if k := strings.TrimSpace(os.Getenv(name)); k != "" {
			return Credential{key: k}, nil
		}
	}
	return Credential{}, ErrMissingCredential
}

// Mask hides a secret, keeping at most a quarter of it visible (no more
// than three characters at each end). Short secrets are fully hidden.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	keep := len(s) / 8
	if keep > 3 {
		keep = 3
	}
	if keep == 0 {
		return "******"
	}
	return s[:keep] + "****" + s[len(s)-keep:]
}
