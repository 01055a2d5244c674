package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("invalid token format")
	ErrBadSignature   = errors.New("invalid signature")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenSigner produces tamper-evident values for cookies. The payload is
// JSON, readable by anyone holding the token; use Encryptor for secrets.
type TokenSigner struct {
	signingKey []byte
	ttl        time.Duration
}

// NewTokenSigner creates a signer. A zero ttl produces tokens that never
// expire on their own.
func NewTokenSigner(signingKey []byte, ttl time.Duration) TokenSigner {
	return TokenSigner{
		signingKey: signingKey,
		ttl:        ttl,
	}
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt int64           `json:"exp,omitempty"`
}

// Sign returns base64url(envelope) + "." + signature.
func (ts *TokenSigner) Sign(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal data: %w", err)
	}

	env := envelope{Data: data}
	if ts.ttl != 0 {
		env.ExpiresAt = time.Now().Add(ts.ttl).Unix()
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + SignData(body, ts.signingKey), nil
}

// Verify checks the signature and expiry, then decodes the payload into v.
func (ts *TokenSigner) Verify(token string, v any) error {
	body, signature, ok := strings.Cut(token, ".")
	if !ok || body == "" || signature == "" {
		return ErrMalformedToken
	}
	if !ValidateSignedData(body, signature, ts.signingKey) {
		return ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return fmt.Errorf("failed to decode token: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if env.ExpiresAt != 0 && time.Now().Unix() >= env.ExpiresAt {
		return ErrTokenExpired
	}

	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}
