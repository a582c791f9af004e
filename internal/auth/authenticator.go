package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"medpassport/internal/errors"
	"medpassport/internal/store"
	"medpassport/internal/types"

	"golang.org/x/crypto/bcrypt"
)

// LoginFailedMessage is the only thing a failed login ever reveals.
const LoginFailedMessage = "Login failed."

// bcrypt ignores input past 72 bytes
const maxPasswordBytes = 72

// ErrInvalidCredentials matches every Login failure.
var ErrInvalidCredentials = errors.NewAuthError(errors.ErrCodeInvalidCredentials, LoginFailedMessage, nil)

// Session is what a successful login returns to the client.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options tune the Authenticator.
type Options struct {
	SessionTTL        time.Duration
	MinPasswordLength int
	BcryptCost        int
}

// Authenticator exchanges email and password for a session.
type Authenticator struct {
	users   store.UserStore
	tokens  *TokenService
	revoker Revoker
	opts    Options
	logger  *errors.Logger
}

// NewAuthenticator wires the user store, token service and revocation list.
func NewAuthenticator(users store.UserStore, tokens *TokenService, revoker Revoker, opts Options, logger *errors.Logger) *Authenticator {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if revoker == nil {
		revoker = NopRevoker{}
	}
	return &Authenticator{
		users:   users,
		tokens:  tokens,
		revoker: revoker,
		opts:    opts,
		logger:  logger,
	}
}

// Tokens exposes the token service for key rotation and object URLs.
func (a *Authenticator) Tokens() *TokenService {
	return a.tokens
}

// Register creates a user with a bcrypt password hash.
func (a *Authenticator) Register(ctx context.Context, email, password string) (types.User, error) {
	email = store.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return types.User{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, "A valid email is required", nil)
	}
	if len(password) < a.opts.MinPasswordLength {
		return types.User{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Password must be at least %d characters", a.opts.MinPasswordLength), nil)
	}

	if len(password) > maxPasswordBytes {
		return types.User{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes), nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.opts.BcryptCost)
	if err != nil {
		return types.User{}, errors.NewInternalError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	user, err := a.users.CreateUser(ctx, types.User{Email: email, PasswordHash: string(hash)})
	if err != nil {
		return types.User{}, err
	}

	a.logger.Info("User registered", "email", user.Email)
	user.PasswordHash = ""
	return user, nil
}

// Login returns a session, or ErrInvalidCredentials for any failure.
func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, error) {
	email = store.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !stderrors.Is(err, store.ErrNotFound) {
			a.logger.LogError(err, "Login lookup failed", "email", email)
		}
		return Session{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, claims, err := a.tokens.Issue(TokenTypeSession, user.Email, a.opts.SessionTTL)
	if err != nil {
		a.logger.LogError(err, "Failed to issue session", "email", email)
		return Session{}, ErrInvalidCredentials
	}

	return Session{
		Token:     token,
		Email:     user.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Authenticate resolves a session token to the user's email.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (string, error) {
	claims, err := a.tokens.Verify(token, TokenTypeSession)
	if err != nil {
		return "", errors.NewAuthError(errors.ErrCodeUnauthorized, "Invalid or expired session", err)
	}

	revoked, err := a.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", errors.NewAuthError(errors.ErrCodeUnauthorized, "Session check failed", err)
	}
	if revoked {
		return "", errors.NewAuthError(errors.ErrCodeUnauthorized, "Session has been revoked", nil)
	}
	return claims.Subject, nil
}

// Logout revokes the session's token ID until it expires.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	claims, err := a.tokens.Verify(token, TokenTypeSession)
	if err != nil {
		return errors.NewAuthError(errors.ErrCodeUnauthorized, "Invalid or expired session", err)
	}
	return a.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
