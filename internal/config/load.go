package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dgellow/authfront/internal/log"
)

// secretFields lists, per section, the values that must come from the
// environment rather than the config file
var secretFields = map[string][]string{
	"provider": {"anonKey"},
	"session":  {"secret"},
	"storage":  {"encryptionKey"},
}

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, VersionPrefix) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig rejects secrets written inline before anything is resolved
func validateRawConfig(rawConfig map[string]any) error {
	for section, fields := range secretFields {
		sec, ok := rawConfig[section].(map[string]any)
		if !ok {
			continue
		}
		for _, name := range fields {
			value, exists := sec[name]
			if !exists {
				continue
			}
			if _, isString := value.(string); isString {
				return fmt.Errorf("%s.%s must use environment variable reference for security", section, name)
			}
			if refMap, isMap := value.(map[string]any); isMap {
				if _, hasEnv := refMap["$env"]; !hasEnv {
					return fmt.Errorf("%s.%s must use {\"$env\": \"VAR_NAME\"} format", section, name)
				}
			}
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	if err := validateHTTPURL(config.Server.BaseURL); err != nil {
		return fmt.Errorf("server.baseURL: %w", err)
	}
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if config.Provider.URL == "" {
		return fmt.Errorf("provider.url is required")
	}
	if err := validateHTTPURL(config.Provider.URL); err != nil {
		return fmt.Errorf("provider.url: %w", err)
	}
	if config.Provider.AnonKey == "" {
		return fmt.Errorf("provider.anonKey is required")
	}
	if config.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout cannot be negative")
	}
	for i, name := range config.Provider.OAuthProviders {
		if name == "" || strings.ToLower(name) != name {
			return fmt.Errorf("provider.oauthProviders[%d] must be a lowercase provider name, got %q", i, name)
		}
	}

	if len(config.Session.Secret) < 32 {
		return fmt.Errorf("session.secret must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(config.Session.Secret))
	}
	if config.Session.RememberFor <= 0 {
		return fmt.Errorf("session.rememberFor must be positive")
	}
	if config.Session.TabTTL <= 0 {
		return fmt.Errorf("session.tabTTL must be positive")
	}
	if config.Session.CleanupInterval <= 0 {
		return fmt.Errorf("session.cleanupInterval must be positive")
	}
	if config.Session.CleanupInterval > config.Session.TabTTL {
		log.LogWarn("Storage cleanup interval is greater than tab TTL")
	}

	switch config.Storage.Kind {
	case StorageKindMemory:
	case StorageKindFirestore:
		if config.Storage.GCPProject == "" {
			return fmt.Errorf("storage.gcpProject is required when using firestore storage")
		}
		if config.Storage.EncryptionKey == "" {
			return fmt.Errorf("storage.encryptionKey is required when using firestore storage")
		}
	default:
		return fmt.Errorf("storage.kind must be %q or %q, got %q", StorageKindMemory, StorageKindFirestore, config.Storage.Kind)
	}
	if k := config.Storage.EncryptionKey; k != "" && len(k) < 32 {
		return fmt.Errorf("storage.encryptionKey must be at least 32 characters (got %d)", len(k))
	}

	if config.Alert.Timeout <= 0 {
		return fmt.Errorf("alert.timeout must be positive")
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
