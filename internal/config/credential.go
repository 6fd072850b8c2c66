package config

import (
	"os"
	"strings"
)

// EnvAPIKey is the process environment variable holding the ChatAds API key.
const EnvAPIKey = "CHATADS_API_KEY"

// ResolveAPIKey returns the credential for a call: an explicit override wins,
// otherwise the environment variable is consulted. An empty result means the
// process has no credential configured; callers must treat that as a
// configuration error rather than defaulting to anything.
func ResolveAPIKey(explicit string) string {
	if key := strings.TrimSpace(explicit); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(EnvAPIKey))
}
