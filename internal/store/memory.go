package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"medpassport/internal/types"

	"github.com/google/uuid"
)

// Memory is a mutex-guarded in-process Store.
type Memory struct {
	mu         sync.RWMutex
	users      map[string]types.User
	profiles   map[string]types.Profile
	rotations  map[string][]types.Rotation
	procedures map[string][]types.Procedure
	projects   map[string][]types.Project
	now        func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]types.User),
		profiles:   make(map[string]types.Profile),
		rotations:  make(map[string][]types.Rotation),
		procedures: make(map[string][]types.Procedure),
		projects:   make(map[string][]types.Project),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser stores user under its normalized email. It fails with a
// validation error when the email is taken.
func (m *Memory) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	user.Email = NormalizeEmail(user.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Email]; ok {
		return types.User{}, userExists(user.Email)
	}
	user.CreatedAt = m.now()
	m.users[user.Email] = user
	return user, nil
}

// GetUserByEmail looks up a user case-insensitively.
func (m *Memory) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[NormalizeEmail(email)]
	if !ok {
		return types.User{}, notFound("user")
	}
	return user, nil
}

// UpsertProfile replaces the stored profile for its user and stamps UpdatedAt.
func (m *Memory) UpsertProfile(ctx context.Context, profile types.Profile) (types.Profile, error) {
	profile.UserEmail = NormalizeEmail(profile.UserEmail)
	profile.SelectedCountries = slices.Clone(profile.SelectedCountries)
	if profile.SelectedCountries == nil {
		profile.SelectedCountries = []string{}
	}
	profile.UpdatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles[profile.UserEmail] = profile
	return cloneProfile(profile), nil
}

// GetProfile returns a copy of the user's profile.
func (m *Memory) GetProfile(ctx context.Context, email string) (types.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.profiles[NormalizeEmail(email)]
	if !ok {
		return types.Profile{}, notFound("profile")
	}
	return cloneProfile(profile), nil
}

// AddRotation appends a rotation with a fresh ID.
func (m *Memory) AddRotation(ctx context.Context, rotation types.Rotation) (types.Rotation, error) {
	rotation.UserEmail = NormalizeEmail(rotation.UserEmail)
	rotation.ID = uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	rotation.CreatedAt = m.now()
	m.rotations[rotation.UserEmail] = append(m.rotations[rotation.UserEmail], rotation)
	return rotation, nil
}

// ListRotations returns the user's rotations in insertion order.
func (m *Memory) ListRotations(ctx context.Context, email string) ([]types.Rotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneOrEmpty(m.rotations[NormalizeEmail(email)]), nil
}

// AddProcedure appends a procedure with a fresh ID.
func (m *Memory) AddProcedure(ctx context.Context, procedure types.Procedure) (types.Procedure, error) {
	procedure.UserEmail = NormalizeEmail(procedure.UserEmail)
	procedure.ID = uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	procedure.CreatedAt = m.now()
	m.procedures[procedure.UserEmail] = append(m.procedures[procedure.UserEmail], procedure)
	return procedure, nil
}

// ListProcedures returns the user's procedures in insertion order.
func (m *Memory) ListProcedures(ctx context.Context, email string) ([]types.Procedure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneOrEmpty(m.procedures[NormalizeEmail(email)]), nil
}

// AddProject appends a project with a fresh ID.
func (m *Memory) AddProject(ctx context.Context, project types.Project) (types.Project, error) {
	project.UserEmail = NormalizeEmail(project.UserEmail)
	project.ID = uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	project.CreatedAt = m.now()
	m.projects[project.UserEmail] = append(m.projects[project.UserEmail], project)
	return project, nil
}

// ListProjects returns the user's projects in insertion order.
func (m *Memory) ListProjects(ctx context.Context, email string) ([]types.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneOrEmpty(m.projects[NormalizeEmail(email)]), nil
}

// Ping only fails once ctx is done.
func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func cloneProfile(p types.Profile) types.Profile {
	p.SelectedCountries = slices.Clone(p.SelectedCountries)
	return p
}

func cloneOrEmpty[T any](rows []T) []T {
	if len(rows) == 0 {
		return []T{}
	}
	return slices.Clone(rows)
}
