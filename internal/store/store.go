// Package store persists users, profiles and logbook rows. Every read is
// scoped to one user's email.
package store

import (
	"context"
	"fmt"
	"strings"

	"medpassport/internal/config"
	"medpassport/internal/errors"
	"medpassport/internal/types"
)

var (
	// ErrNotFound matches, via errors.Is, the error returned when a user or profile does not exist.
	ErrNotFound = errors.NewNotFoundError(errors.ErrCodeNotFound, "record not found", nil)
	// ErrUserExists matches the error CreateUser returns for a taken email.
	ErrUserExists = errors.NewValidationError(errors.ErrCodeUserExists, "user already exists", nil)
)

// UserStore holds login accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user types.User) (types.User, error)
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
}

// ProfileStore holds one profile per user.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, profile types.Profile) (types.Profile, error)
	GetProfile(ctx context.Context, email string) (types.Profile, error)
}

// LogbookStore holds the append-only rotation, procedure and project rows.
// Lists come back in insertion order.
type LogbookStore interface {
	AddRotation(ctx context.Context, rotation types.Rotation) (types.Rotation, error)
	ListRotations(ctx context.Context, email string) ([]types.Rotation, error)
	AddProcedure(ctx context.Context, procedure types.Procedure) (types.Procedure, error)
	ListProcedures(ctx context.Context, email string) ([]types.Procedure, error)
	AddProject(ctx context.Context, project types.Project) (types.Project, error)
	ListProjects(ctx context.Context, email string) ([]types.Project, error)
}

// Store is everything the service persists.
type Store interface {
	UserStore
	ProfileStore
	LogbookStore
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *errors.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		return NewMemory(), nil
	case config.DriverPostgres:
		return NewPostgres(ctx, cfg, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported database driver: %s", cfg.Driver), nil)
	}
}

func notFound(what string) error {
	return errors.NewNotFoundError(errors.ErrCodeNotFound, what+" not found", nil)
}

func userExists(email string) error {
	return errors.NewValidationError(errors.ErrCodeUserExists, "user already exists", nil).WithContext("email", email)
}

// NormalizeEmail is the partition key form of an email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
