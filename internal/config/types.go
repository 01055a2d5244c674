package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects where browser storage areas are kept
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFirestore StorageKind = "firestore"
)

// VersionPrefix is the config version accepted by this build
const VersionPrefix = "v0.0.1-DEV_EDITION"

// Defaults
const (
	DefaultAddr                = ":8080"
	DefaultName                = "authfront"
	DefaultProviderTimeout     = 30 * time.Second
	DefaultRememberFor         = 30 * 24 * time.Hour
	DefaultTabTTL              = 24 * time.Hour
	DefaultCleanupInterval     = 5 * time.Minute
	DefaultAlertTimeout        = 3 * time.Second
	DefaultFirestoreDatabase   = "(default)"
	DefaultFirestoreCollection = "authfront_storage"
)

// Config is the complete authfront configuration
type Config struct {
	Version  string         `json:"version"`
	Server   ServerConfig   `json:"server" envPrefix:"SERVER_"`
	Provider ProviderConfig `json:"provider" envPrefix:"PROVIDER_"`
	Session  SessionConfig  `json:"session" envPrefix:"SESSION_"`
	Storage  StorageConfig  `json:"storage" envPrefix:"STORAGE_"`
	Alert    AlertConfig    `json:"alert" envPrefix:"ALERT_"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	// BaseURL is the externally visible origin, used for provider redirects
	BaseURL string `json:"baseURL" env:"BASE_URL"`
	Addr    string `json:"addr" env:"ADDR" envDefault:":8080"`
	Name    string `json:"name" env:"NAME" envDefault:"authfront"`
}

// ProviderConfig points at the hosted identity provider
type ProviderConfig struct {
	URL     string `json:"url" env:"URL"`
	AnonKey Secret `json:"anonKey" env:"ANON_KEY"`
	// Timeout bounds each provider call; zero disables it
	Timeout        time.Duration `json:"timeout" env:"TIMEOUT" envDefault:"30s"`
	OAuthProviders []string      `json:"oauthProviders" env:"OAUTH_PROVIDERS" envDefault:"google" envSeparator:","`
}

// HasOAuthProvider reports whether name is offered on the sign-in form
func (p ProviderConfig) HasOAuthProvider(name string) bool {
	return slices.Contains(p.OAuthProviders, name)
}

// SessionConfig configures browser identity and stored session records
type SessionConfig struct {
	// Secret signs browser cookies and CSRF tokens
	Secret Secret `json:"secret" env:"SECRET"`
	// RememberFor is how long a remembered session record stays valid
	RememberFor time.Duration `json:"rememberFor" env:"REMEMBER_FOR" envDefault:"720h"`
	// TabTTL is how long session-area records are kept server side
	TabTTL          time.Duration `json:"tabTTL" env:"TAB_TTL" envDefault:"24h"`
	CleanupInterval time.Duration `json:"cleanupInterval" env:"CLEANUP_INTERVAL" envDefault:"5m"`
}

// StorageConfig selects the storage backend
type StorageConfig struct {
	Kind                StorageKind `json:"kind" env:"KIND" envDefault:"memory"`
	GCPProject          string      `json:"gcpProject" env:"GCP_PROJECT"`
	FirestoreDatabase   string      `json:"firestoreDatabase" env:"FIRESTORE_DATABASE" envDefault:"(default)"`
	FirestoreCollection string      `json:"firestoreCollection" env:"FIRESTORE_COLLECTION" envDefault:"authfront_storage"`
	EncryptionKey       Secret      `json:"encryptionKey" env:"ENCRYPTION_KEY"`
}

// AlertConfig configures the transient alert
type AlertConfig struct {
	Timeout time.Duration `json:"timeout" env:"TIMEOUT" envDefault:"3s"`
}

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR"} reference resolved immediately
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}

// parseDuration parses an optional duration string, keeping def when empty
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
