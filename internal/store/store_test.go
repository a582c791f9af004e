package store

import (
	"context"
	"testing"

	"medpassport/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every Store must share. email should be
// unique per run so a persistent database can be reused.
func exerciseStore(t *testing.T, s Store, email string) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		created, err := s.CreateUser(ctx, types.User{Email: "  " + email + " ", PasswordHash: "hash"})
		require.NoError(t, err)
		assert.Equal(t, email, created.Email)
		assert.False(t, created.CreatedAt.IsZero())

		_, err = s.CreateUser(ctx, types.User{Email: email, PasswordHash: "other"})
		assert.ErrorIs(t, err, ErrUserExists)

		got, err := s.GetUserByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, "hash", got.PasswordHash)

		_, err = s.GetUserByEmail(ctx, "nobody-"+email)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("profile round trip", func(t *testing.T) {
		_, err := s.GetProfile(ctx, email)
		assert.ErrorIs(t, err, ErrNotFound)

		saved, err := s.UpsertProfile(ctx, types.Profile{
			UserEmail:         email,
			GlobalTier:        "Tier 1: Junior (Intern/FY1)",
			SelectedCountries: []string{"United Kingdom", "Poland"},
			Summary:           "FY1 in London",
		})
		require.NoError(t, err)

		loaded, err := s.GetProfile(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, saved.GlobalTier, loaded.GlobalTier)
		assert.Equal(t, []string{"United Kingdom", "Poland"}, loaded.SelectedCountries)

		_, err = s.UpsertProfile(ctx, types.Profile{
			UserEmail:         email,
			GlobalTier:        "Tier 2: Intermediate (SHO/Resident)",
			SelectedCountries: []string{"Poland"},
		})
		require.NoError(t, err)

		loaded, err = s.GetProfile(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, "Tier 2: Intermediate (SHO/Resident)", loaded.GlobalTier)
		assert.Equal(t, []string{"Poland"}, loaded.SelectedCountries)
		assert.Empty(t, loaded.Summary, "upsert replaces the whole row")
	})

	t.Run("rotations append in order", func(t *testing.T) {
		before, err := s.ListRotations(ctx, email)
		require.NoError(t, err)
		assert.NotNil(t, before)

		first, err := s.AddRotation(ctx, types.Rotation{UserEmail: email, Hospital: "St Mary's Hospital", Specialty: "Cardiology"})
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)

		after, err := s.ListRotations(ctx, email)
		require.NoError(t, err)
		require.Len(t, after, len(before)+1)
		assert.Equal(t, first.ID, after[len(after)-1].ID)

		_, err = s.AddRotation(ctx, types.Rotation{UserEmail: email, Hospital: "St Mary's Hospital", Specialty: "Cardiology"})
		require.NoError(t, err, "duplicates are allowed")

		after, err = s.ListRotations(ctx, email)
		require.NoError(t, err)
		require.Len(t, after, len(before)+2)
		assert.Equal(t, first.ID, after[len(after)-2].ID)
	})

	t.Run("procedures and projects", func(t *testing.T) {
		_, err := s.AddProcedure(ctx, types.Procedure{UserEmail: email, Procedure: "Lumbar puncture", Level: types.LevelSupervised, Count: 3})
		require.NoError(t, err)
		_, err = s.AddProject(ctx, types.Project{UserEmail: email, Type: "Audit", Title: "Sepsis six", Year: 2021})
		require.NoError(t, err)

		procs, err := s.ListProcedures(ctx, email)
		require.NoError(t, err)
		require.Len(t, procs, 1)
		assert.Equal(t, 3, procs[0].Count)

		projects, err := s.ListProjects(ctx, email)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "Sepsis six", projects[0].Title)
	})

	t.Run("rows are scoped by email", func(t *testing.T) {
		other := "other-" + email
		rows, err := s.ListRotations(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, rows)

		procs, err := s.ListProcedures(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, procs)
	})

	require.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory(), "dr.jane@example.com")
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	countries := []string{"Poland"}
	_, err := s.UpsertProfile(ctx, types.Profile{UserEmail: "a@b.c", GlobalTier: "Tier 1: Junior (Intern/FY1)", SelectedCountries: countries})
	require.NoError(t, err)
	countries[0] = "Mutated"

	loaded, err := s.GetProfile(ctx, "A@B.C")
	require.NoError(t, err)
	assert.Equal(t, []string{"Poland"}, loaded.SelectedCountries)
}
