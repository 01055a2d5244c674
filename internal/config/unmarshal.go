package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Defaults returns a Config holding every default value. Sections absent
// from a config file keep these.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr: DefaultAddr,
			Name: DefaultName,
		},
		Provider: ProviderConfig{
			Timeout:        DefaultProviderTimeout,
			OAuthProviders: []string{"google"},
		},
		Session: SessionConfig{
			RememberFor:     DefaultRememberFor,
			TabTTL:          DefaultTabTTL,
			CleanupInterval: DefaultCleanupInterval,
		},
		Storage: StorageConfig{
			Kind:                StorageKindMemory,
			FirestoreDatabase:   DefaultFirestoreDatabase,
			FirestoreCollection: DefaultFirestoreCollection,
		},
		Alert: AlertConfig{
			Timeout: DefaultAlertTimeout,
		},
	}
}

// UnmarshalJSON starts from Defaults so that missing sections are filled in
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	p := plain(Defaults())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Config(p)
	return nil
}

// UnmarshalJSON implements custom unmarshaling for ServerConfig
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		BaseURL json.RawMessage `json:"baseURL"`
		Addr    json.RawMessage `json:"addr"`
		Name    string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Name != "" {
		s.Name = raw.Name
	}
	if raw.BaseURL != nil {
		v, err := ParseConfigValue(raw.BaseURL)
		if err != nil {
			return fmt.Errorf("parsing baseURL: %w", err)
		}
		s.BaseURL = strings.TrimSuffix(v, "/")
	}
	if raw.Addr != nil {
		v, err := ParseConfigValue(raw.Addr)
		if err != nil {
			return fmt.Errorf("parsing addr: %w", err)
		}
		s.Addr = v
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for ProviderConfig
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL            json.RawMessage `json:"url"`
		AnonKey        json.RawMessage `json:"anonKey"`
		Timeout        string          `json:"timeout"`
		OAuthProviders []string        `json:"oauthProviders"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.URL != nil {
		v, err := ParseConfigValue(raw.URL)
		if err != nil {
			return fmt.Errorf("parsing url: %w", err)
		}
		p.URL = strings.TrimSuffix(v, "/")
	}
	if raw.AnonKey != nil {
		v, err := ParseConfigValue(raw.AnonKey)
		if err != nil {
			return fmt.Errorf("parsing anonKey: %w", err)
		}
		p.AnonKey = Secret(v)
	}

	timeout, err := parseDuration(raw.Timeout, p.Timeout)
	if err != nil {
		return fmt.Errorf("parsing timeout: %w", err)
	}
	p.Timeout = timeout

	// An explicit empty list hides every OAuth button
	if raw.OAuthProviders != nil {
		p.OAuthProviders = raw.OAuthProviders
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Secret          json.RawMessage `json:"secret"`
		RememberFor     string          `json:"rememberFor"`
		TabTTL          string          `json:"tabTTL"`
		CleanupInterval string          `json:"cleanupInterval"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Secret != nil {
		v, err := ParseConfigValue(raw.Secret)
		if err != nil {
			return fmt.Errorf("parsing secret: %w", err)
		}
		s.Secret = Secret(v)
	}

	var err error
	if s.RememberFor, err = parseDuration(raw.RememberFor, s.RememberFor); err != nil {
		return fmt.Errorf("parsing rememberFor: %w", err)
	}
	if s.TabTTL, err = parseDuration(raw.TabTTL, s.TabTTL); err != nil {
		return fmt.Errorf("parsing tabTTL: %w", err)
	}
	if s.CleanupInterval, err = parseDuration(raw.CleanupInterval, s.CleanupInterval); err != nil {
		return fmt.Errorf("parsing cleanupInterval: %w", err)
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind                StorageKind     `json:"kind"`
		GCPProject          json.RawMessage `json:"gcpProject"`
		FirestoreDatabase   string          `json:"firestoreDatabase"`
		FirestoreCollection string          `json:"firestoreCollection"`
		EncryptionKey       json.RawMessage `json:"encryptionKey"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Kind != "" {
		s.Kind = raw.Kind
	}
	if raw.FirestoreDatabase != "" {
		s.FirestoreDatabase = raw.FirestoreDatabase
	}
	if raw.FirestoreCollection != "" {
		s.FirestoreCollection = raw.FirestoreCollection
	}
	if raw.GCPProject != nil {
		v, err := ParseConfigValue(raw.GCPProject)
		if err != nil {
			return fmt.Errorf("parsing gcpProject: %w", err)
		}
		s.GCPProject = v
	}
	if raw.EncryptionKey != nil {
		v, err := ParseConfigValue(raw.EncryptionKey)
		if err != nil {
			return fmt.Errorf("parsing encryptionKey: %w", err)
		}
		s.EncryptionKey = Secret(v)
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for AlertConfig
func (a *AlertConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timeout string `json:"timeout"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	timeout, err := parseDuration(raw.Timeout, a.Timeout)
	if err != nil {
		return fmt.Errorf("parsing timeout: %w", err)
	}
	a.Timeout = timeout
	return nil
}
