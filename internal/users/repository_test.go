package users

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/countmein/backend/internal/models"
	"github.com/countmein/backend/pkg/database"
)

func TestUpsertOverwritesProfile(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, 5, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, database.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE users, respondents`)
	require.NoError(t, err)

	repo := NewRepository(pool)
	require.NoError(t, repo.UpsertUser(ctx, 7, models.Profile{FirstName: "Alice", LastName: "Tan", Username: "alicet"}))
	first, err := repo.GetByID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, repo.UpsertUser(ctx, 7, models.Profile{FirstName: "Ally"}))
	second, err := repo.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Ally", second.Description())
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	require.NoError(t, repo.UpsertRespondent(ctx, 7, models.Profile{FirstName: "Ally"}))

	missing, err := repo.GetByID(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
