package crypto

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CSRFProtection issues stateless form tokens of the shape
// nonce:unix-timestamp:signature.
type CSRFProtection struct {
	signingKey []byte
	ttl        time.Duration
}

func NewCSRFProtection(signingKey []byte, ttl time.Duration) CSRFProtection {
	return CSRFProtection{
		signingKey: signingKey,
		ttl:        ttl,
	}
}

// Generate creates a new CSRF token
func (c *CSRFProtection) Generate() (string, error) {
	nonce, err := GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	signed := nonce + ":" + strconv.FormatInt(time.Now().Unix(), 10)
	return signed + ":" + SignData(signed, c.signingKey), nil
}

// Validate reports whether token was issued with this key and is within ttl.
func (c *CSRFProtection) Validate(token string) bool {
	i := strings.LastIndexByte(token, ':')
	if i <= 0 {
		return false
	}
	signed, signature := token[:i], token[i+1:]

	_, ts, ok := strings.Cut(signed, ":")
	if !ok {
		return false
	}
	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if time.Since(time.Unix(issued, 0)) > c.ttl {
		return false
	}

	return ValidateSignedData(signed, signature, c.signingKey)
}
