package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey  = "0123456789abcdef0123456789abcdef"
	otherKey = "fedcba9876543210fedcba9876543210"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTokens(clock *fakeClock) *TokenService {
	s := NewTokenService(testKey, "medpassport")
	s.now = clock.now
	return s
}

func TestTokenIssueAndVerify(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	s := newTestTokens(clock)

	token, claims, err := s.Issue(TokenTypeSession, "dr.jane@example.com", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := s.Verify(token, TokenTypeSession)
	require.NoError(t, err)
	assert.Equal(t, "dr.jane@example.com", got.Subject)
	assert.Equal(t, claims.ID, got.ID)

	_, err = s.Verify(token, TokenTypeObject)
	assert.ErrorIs(t, err, ErrTokenInvalid, "type is enforced")

	clock.advance(2 * time.Hour)
	_, err = s.Verify(token, TokenTypeSession)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenRejectsForeignSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	other := NewTokenService(otherKey, "medpassport")
	other.now = clock.now

	token, _, err := other.Issue(TokenTypeSession, "x@example.com", time.Hour)
	require.NoError(t, err)

	_, err = newTestTokens(clock).Verify(token, TokenTypeSession)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = newTestTokens(clock).Verify(strings.ToUpper(token), TokenTypeSession)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenRotationGrace(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	s := newTestTokens(clock)

	old, _, err := s.Issue(TokenTypeSession, "x@example.com", 12*time.Hour)
	require.NoError(t, err)

	s.Rotate(otherKey, time.Hour)

	_, err = s.Verify(old, TokenTypeSession)
	require.NoError(t, err, "previous key verifies during grace")

	fresh, _, err := s.Issue(TokenTypeSession, "x@example.com", 12*time.Hour)
	require.NoError(t, err)

	clock.advance(2 * time.Hour)
	_, err = s.Verify(old, TokenTypeSession)
	assert.ErrorIs(t, err, ErrTokenInvalid, "previous key retired after grace")

	_, err = s.Verify(fresh, TokenTypeSession)
	assert.NoError(t, err)
}

func TestTokenDoubleRotationKeepsEachGrace(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	s := newTestTokens(clock)

	first, _, err := s.Issue(TokenTypeSession, "x@example.com", 12*time.Hour)
	require.NoError(t, err)

	s.Rotate(otherKey, time.Hour)
	second, _, err := s.Issue(TokenTypeSession, "x@example.com", 12*time.Hour)
	require.NoError(t, err)

	clock.advance(10 * time.Minute)
	s.Rotate("00112233445566778899aabbccddeeff", 2*time.Hour)

	_, err = s.Verify(first, TokenTypeSession)
	require.NoError(t, err, "first key keeps its grace after a second rotation")
	_, err = s.Verify(second, TokenTypeSession)
	require.NoError(t, err)

	clock.advance(time.Hour)
	_, err = s.Verify(first, TokenTypeSession)
	assert.ErrorIs(t, err, ErrTokenInvalid, "first key retired at its own deadline")
	_, err = s.Verify(second, TokenTypeSession)
	assert.NoError(t, err, "second key still in grace")

	clock.advance(2 * time.Hour)
	_, err = s.Verify(second, TokenTypeSession)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssueRejectsBadInput(t *testing.T) {
	s := NewTokenService(testKey, "medpassport")
	_, _, err := s.Issue(TokenTypeSession, "", time.Hour)
	assert.Error(t, err)
	_, _, err = s.Issue(TokenTypeSession, "x@example.com", 0)
	assert.Error(t, err)
}
