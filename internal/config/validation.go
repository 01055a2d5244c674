package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyle = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": \"%s\"", VersionPrefix)
	} else if !strings.HasPrefix(version, VersionPrefix) {
		result.addError("version", "unsupported version '%s' - use '%s' or '%s-<variant>'", version, VersionPrefix, VersionPrefix)
	}

	server := section(rawConfig, "server", true, result)
	if server != nil {
		requireField(server, "server", "baseURL", result)
	}

	provider := section(rawConfig, "provider", true, result)
	if provider != nil {
		requireField(provider, "provider", "url", result)
		if _, ok := provider["anonKey"]; !ok {
			result.addError("provider.anonKey", "anonKey is required")
		}
		validateDurationField(provider, "provider", "timeout", result)
	}

	session := section(rawConfig, "session", true, result)
	if session != nil {
		if _, ok := session["secret"]; !ok {
			result.addError("session.secret", "secret is required")
		}
		for _, f := range []string{"rememberFor", "tabTTL", "cleanupInterval"} {
			validateDurationField(session, "session", f, result)
		}
		validateCleanupInterval(session, result)
	}

	if storage := section(rawConfig, "storage", false, result); storage != nil {
		validateStorageStructure(storage, result)
	}

	if alert := section(rawConfig, "alert", false, result); alert != nil {
		validateDurationField(alert, "alert", "timeout", result)
	}

	for sec, fields := range secretFields {
		m, ok := rawConfig[sec].(map[string]any)
		if !ok {
			continue
		}
		for _, f := range fields {
			if v, ok := m[f]; ok {
				if verr := validateEnvVarReference(v, f, sec+"."+f); verr != nil {
					result.Errors = append(result.Errors, *verr)
				}
			}
		}
	}

	return result, nil
}

func section(rawConfig map[string]any, name string, required bool, result *ValidationResult) map[string]any {
	v, exists := rawConfig[name]
	if !exists {
		if required {
			result.addError(name, "%s section is required", name)
		}
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		result.addError(name, "%s must be an object", name)
		return nil
	}
	return m
}

func requireField(m map[string]any, sec, name string, result *ValidationResult) {
	if v, ok := m[name]; !ok || v == "" {
		result.addError(sec+"."+name, "%s is required", name)
	}
}

func validateDurationField(m map[string]any, sec, name string, result *ValidationResult) {
	v, ok := m[name]
	if !ok {
		return
	}
	s, ok := v.(string)
	if !ok {
		result.addError(sec+"."+name, "%s must be a duration string like \"30s\"", name)
		return
	}
	if _, err := time.ParseDuration(s); err != nil {
		result.addError(sec+"."+name, "invalid duration '%s': %v", s, err)
	}
}

func validateStorageStructure(storage map[string]any, result *ValidationResult) {
	kind, _ := storage["kind"].(string)
	switch StorageKind(kind) {
	case "", StorageKindMemory:
		if _, ok := storage["encryptionKey"]; ok {
			result.addWarning("storage.encryptionKey", "encryptionKey is ignored by memory storage")
		}
	case StorageKindFirestore:
		if _, ok := storage["gcpProject"]; !ok {
			result.addError("storage.gcpProject", "gcpProject is required when using firestore storage")
		}
		if _, ok := storage["encryptionKey"]; !ok {
			result.addError("storage.encryptionKey", "encryptionKey is required when using firestore storage")
		}
	default:
		result.addError("storage.kind", "unknown storage kind '%s' - use 'memory' or 'firestore'", kind)
	}
}

func validateCleanupInterval(session map[string]any, result *ValidationResult) {
	ttlStr, ok1 := session["tabTTL"].(string)
	cleanupStr, ok2 := session["cleanupInterval"].(string)
	if !ok1 || !ok2 {
		return
	}
	ttl, err1 := time.ParseDuration(ttlStr)
	cleanup, err2 := time.ParseDuration(cleanupStr)
	if err1 == nil && err2 == nil && cleanup > ttl {
		result.addWarning("session",
			"cleanupInterval (%s) is longer than tabTTL (%s). Expired records will remain stored until cleanup runs.",
			cleanupStr, ttlStr)
	}
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyle.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyle.FindAllString(v, -1) {
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, strings.Trim(match, "${}"))
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
