// Package auth issues and verifies sessions and signed object URLs.
package auth

import (
	stderrors "errors"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types. A token is only accepted where its type is expected.
const (
	TokenTypeSession = "session"
	TokenTypeObject  = "object"
)

var (
	ErrTokenExpired = stderrors.New("token expired")
	ErrTokenInvalid = stderrors.New("token invalid")
)

// Claims carry the subject (an email for sessions, an object key for
// signed URLs) and the token type.
type Claims struct {
	TokenType string `json:"token_type"`
	jwtlib.RegisteredClaims
}

// TokenService signs HS256 tokens with a rotatable key. After Rotate each
// retired key keeps verifying until its own grace period ends.
type TokenService struct {
	mu      sync.RWMutex
	current []byte
	retired []retiredKey
	issuer  string
	now     func() time.Time
}

type retiredKey struct {
	key   []byte
	until time.Time
}

// NewTokenService returns a service signing with key.
func NewTokenService(key, issuer string) *TokenService {
	return &TokenService{
		current: []byte(key),
		issuer:  issuer,
		now:     time.Now,
	}
}

// Rotate makes key the signing key. Tokens signed with the old key stay
// valid for grace.
func (s *TokenService) Rotate(key string, grace time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if string(s.current) == key {
		return
	}
	now := s.now()
	s.retired = append(s.liveRetired(now), retiredKey{key: s.current, until: now.Add(grace)})
	s.current = []byte(key)
}

// liveRetired drops retired keys whose grace has ended. Callers hold mu.
func (s *TokenService) liveRetired(now time.Time) []retiredKey {
	live := s.retired[:0:0]
	for _, r := range s.retired {
		if now.Before(r.until) {
			live = append(live, r)
		}
	}
	return live
}

// Issue signs a token of tokenType for subject, valid for ttl.
func (s *TokenService) Issue(tokenType, subject string, ttl time.Duration) (string, Claims, error) {
	if ttl <= 0 || subject == "" {
		return "", Claims{}, ErrTokenInvalid
	}

	s.mu.RLock()
	key := s.current
	s.mu.RUnlock()
	if len(key) == 0 {
		return "", Claims{}, ErrTokenInvalid
	}

	now := s.now().UTC()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Verify checks the signature, expiry, issuer and type of a token.
func (s *TokenService) Verify(token, tokenType string) (Claims, error) {
	s.mu.RLock()
	keys := [][]byte{s.current}
	for _, r := range s.liveRetired(s.now()) {
		keys = append(keys, r.key)
	}
	s.mu.RUnlock()

	var lastErr error = ErrTokenInvalid
	for _, key := range keys {
		claims, err := s.verifyWithKey(token, key)
		if err == nil {
			if claims.TokenType != tokenType {
				return Claims{}, ErrTokenInvalid
			}
			return claims, nil
		}
		if stderrors.Is(err, ErrTokenExpired) {
			lastErr = err
		}
	}
	return Claims{}, lastErr
}

func (s *TokenService) verifyWithKey(token string, key []byte) (Claims, error) {
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(s.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	)

	var claims Claims
	tok, err := parser.ParseWithClaims(token, &claims, func(*jwtlib.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		if stderrors.Is(err, jwtlib.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if tok == nil || !tok.Valid || claims.Subject == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
