package envutil

import (
	"os"
	"strings"
)

// EnvVar selects the runtime environment ("development", "production", ...).
const EnvVar = "AUTHFRONT_ENV"

// IsDev reports whether authfront runs in development mode, where cookies
// are sent without the Secure attribute so plain-HTTP localhost works.
func IsDev() bool {
	env := strings.ToLower(os.Getenv(EnvVar))
	return env == "development" || env == "dev"
}
