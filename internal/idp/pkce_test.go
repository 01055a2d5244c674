package idp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func challengeOf(stored string) string {
	verifier, _ := strings.CutSuffix(stored, recoveryTag)
	return oauth2.S256ChallengeFromVerifier(verifier)
}

func TestNewPKCE(t *testing.T) {
	v1, c1 := newPKCE()
	v2, c2 := newPKCE()

	assert.NotEqual(t, v1, v2)
	assert.NotEqual(t, c1, c2)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(v1), c1)
	assert.GreaterOrEqual(t, len(v1), 43)
	assert.NotContains(t, v1, "/", "verifier must not collide with the recovery tag")
}
