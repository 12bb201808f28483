// Package instance names the running process in logs so that lines from
// replicas of the same binary can be told apart.
package instance

import (
	"os"
	"strings"
)

const EnvInstanceID = "GIFTVOUCHERS_INSTANCE_ID"

// GetID prefers an explicit instance id, then the platform's dyno name, then
// the hostname. fallback is used when none is set.
func GetID(fallback string) string {
	for _, key := range []string{EnvInstanceID, "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if fallback == "" {
		return "local"
	}
	return fallback
}
