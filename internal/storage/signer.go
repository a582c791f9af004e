package storage

import (
	"net/url"
	"strings"
	"time"

	"medpassport/internal/auth"
	"medpassport/internal/errors"
)

// ObjectPath is where signed links are served.
const ObjectPath = "/v1/vault/object"

// SignedURL is a time-limited link to one object.
type SignedURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signer binds object keys to short-lived object tokens.
type Signer struct {
	tokens  *auth.TokenService
	ttl     time.Duration
	baseURL string
}

// NewSigner returns a signer whose links live for ttl. baseURL may be empty
// for host-relative links.
func NewSigner(tokens *auth.TokenService, ttl time.Duration, baseURL string) *Signer {
	return &Signer{
		tokens:  tokens,
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SignURL returns a link to key valid for the signer's TTL.
func (s *Signer) SignURL(key string) (SignedURL, error) {
	token, claims, err := s.tokens.Issue(auth.TokenTypeObject, key, s.ttl)
	if err != nil {
		return SignedURL{}, errors.NewInternalError(errors.ErrCodeStorageFailed, "Failed to sign URL", err)
	}
	return SignedURL{
		URL:       s.baseURL + ObjectPath + "?token=" + url.QueryEscape(token),
		Key:       key,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Resolve returns the object key a token grants access to.
func (s *Signer) Resolve(token string) (string, error) {
	claims, err := s.tokens.Verify(token, auth.TokenTypeObject)
	if err != nil {
		return "", errors.NewAuthError(errors.ErrCodeUnauthorized, "Link is invalid or has expired", err)
	}
	if !validKey(claims.Subject) {
		return "", errors.NewAuthError(errors.ErrCodeUnauthorized, "Link is invalid", nil)
	}
	return claims.Subject, nil
}

// TTL reports how long signed links stay valid.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}
