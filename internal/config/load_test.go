package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() Config {
	cfg := Defaults()
	cfg.Server.BaseURL = "https://auth.example.com"
	cfg.Provider.URL = "https://abc.supabase.co"
	cfg.Provider.AnonKey = "anon"
	cfg.Session.Secret = testSecret
	return cfg
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_ANON_KEY", "anon-key")
	t.Setenv("TEST_SESSION_SECRET", testSecret)

	path := writeConfig(t, `{
		"version": "v0.0.1-DEV_EDITION",
		"server": {"baseURL": "https://auth.example.com/", "addr": ":9000"},
		"provider": {
			"url": "https://abc.supabase.co",
			"anonKey": {"$env": "TEST_ANON_KEY"},
			"timeout": "10s"
		},
		"session": {"secret": {"$env": "TEST_SESSION_SECRET"}, "tabTTL": "2h"},
		"alert": {"timeout": "5s"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example.com", cfg.Server.BaseURL)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, DefaultName, cfg.Server.Name)
	assert.Equal(t, Secret("anon-key"), cfg.Provider.AnonKey)
	assert.Equal(t, 10*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, []string{"google"}, cfg.Provider.OAuthProviders)
	assert.Equal(t, Secret(testSecret), cfg.Session.Secret)
	assert.Equal(t, DefaultRememberFor, cfg.Session.RememberFor)
	assert.Equal(t, 2*time.Hour, cfg.Session.TabTTL)
	assert.Equal(t, StorageKindMemory, cfg.Storage.Kind)
	assert.Equal(t, 5*time.Second, cfg.Alert.Timeout)
}

func TestLoadZeroTimeoutDisables(t *testing.T) {
	t.Setenv("TEST_ANON_KEY", "anon-key")
	t.Setenv("TEST_SESSION_SECRET", testSecret)

	path := writeConfig(t, `{
		"version": "v0.0.1-DEV_EDITION",
		"server": {"baseURL": "https://auth.example.com"},
		"provider": {"url": "https://abc.supabase.co", "anonKey": {"$env": "TEST_ANON_KEY"}, "timeout": "0s"},
		"session": {"secret": {"$env": "TEST_SESSION_SECRET"}}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Provider.Timeout)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("TEST_SESSION_SECRET", testSecret)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing version",
			body:    `{"server": {}}`,
			wantErr: "config version is required",
		},
		{
			name:    "wrong version",
			body:    `{"version": "v2"}`,
			wantErr: "unsupported config version",
		},
		{
			name: "inline anon key",
			body: `{"version": "v0.0.1-DEV_EDITION",
				"provider": {"url": "https://abc.supabase.co", "anonKey": "plain"}}`,
			wantErr: "provider.anonKey must use environment variable reference",
		},
		{
			name: "unset env var",
			body: `{"version": "v0.0.1-DEV_EDITION",
				"server": {"baseURL": "https://auth.example.com"},
				"provider": {"url": "https://abc.supabase.co", "anonKey": {"$env": "DOES_NOT_EXIST_AUTHFRONT"}}}`,
			wantErr: "environment variable DOES_NOT_EXIST_AUTHFRONT not set",
		},
		{
			name: "bad duration",
			body: `{"version": "v0.0.1-DEV_EDITION",
				"alert": {"timeout": "soon"}}`,
			wantErr: "parsing timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing baseURL", mutate: func(c *Config) { c.Server.BaseURL = "" }, wantErr: "server.baseURL is required"},
		{name: "relative baseURL", mutate: func(c *Config) { c.Server.BaseURL = "/auth" }, wantErr: "server.baseURL"},
		{name: "missing provider url", mutate: func(c *Config) { c.Provider.URL = "" }, wantErr: "provider.url is required"},
		{name: "missing anon key", mutate: func(c *Config) { c.Provider.AnonKey = "" }, wantErr: "provider.anonKey is required"},
		{name: "negative timeout", mutate: func(c *Config) { c.Provider.Timeout = -time.Second }, wantErr: "provider.timeout cannot be negative"},
		{name: "uppercase oauth provider", mutate: func(c *Config) { c.Provider.OAuthProviders = []string{"Google"} }, wantErr: "oauthProviders[0]"},
		{name: "short secret", mutate: func(c *Config) { c.Session.Secret = "short" }, wantErr: "session.secret must be at least 32 characters"},
		{name: "zero alert timeout", mutate: func(c *Config) { c.Alert.Timeout = 0 }, wantErr: "alert.timeout must be positive"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Kind = "redis" }, wantErr: "storage.kind"},
		{
			name:    "firestore without project",
			mutate:  func(c *Config) { c.Storage.Kind = StorageKindFirestore; c.Storage.EncryptionKey = testSecret },
			wantErr: "storage.gcpProject is required",
		},
		{
			name:    "firestore without key",
			mutate:  func(c *Config) { c.Storage.Kind = StorageKindFirestore; c.Storage.GCPProject = "p" },
			wantErr: "storage.encryptionKey is required",
		},
		{
			name: "firestore complete",
			mutate: func(c *Config) {
				c.Storage.Kind = StorageKindFirestore
				c.Storage.GCPProject = "p"
				c.Storage.EncryptionKey = testSecret
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHasOAuthProvider(t *testing.T) {
	p := ProviderConfig{OAuthProviders: []string{"google"}}
	assert.True(t, p.HasOAuthProvider("google"))
	assert.False(t, p.HasOAuthProvider("github"))
}
