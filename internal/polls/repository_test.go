package polls

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/countmein/backend/internal/models"
	"github.com/countmein/backend/pkg/database"
)

// setupTestPool connects to TEST_DATABASE_URL and resets the polls table.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, 30, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE polls RESTART IDENTITY`)
	require.NoError(t, err)
	return pool
}

func createPoll(t *testing.T, repo *Repository, adminID, title string, options ...string) *models.Poll {
	t.Helper()
	p := models.NewPoll(adminID, title)
	for _, o := range options {
		require.NoError(t, p.AppendOption(o, 0))
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := NewRepository(setupTestPool(t), 0, nil)
	ctx := context.Background()

	p := createPoll(t, repo, "42", "Lunch?", "Pizza", "Sushi")
	assert.NotZero(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lunch?", got.Title)
	assert.Equal(t, "lunch?", got.TitleLower)
	assert.Equal(t, "Pizza / Sushi", got.OptionsSummary())

	_, err = repo.GetByID(ctx, p.ID+1000)
	assert.ErrorIs(t, err, models.ErrPollNotFound)
}

func TestRepositoryListAndSearch(t *testing.T) {
	repo := NewRepository(setupTestPool(t), 0, nil)
	ctx := context.Background()

	createPoll(t, repo, "42", "Lunch Friday")
	createPoll(t, repo, "42", "Dinner")
	createPoll(t, repo, "42", "lunch Monday")
	createPoll(t, repo, "7", "Lunch elsewhere")

	mine, err := repo.ListByAdmin(ctx, "42", 30)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "lunch Monday", mine[0].Title)

	found, err := repo.SearchByTitlePrefix(ctx, "42", "lunch", 50)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "lunch Monday", found[0].Title)
	assert.Equal(t, "Lunch Friday", found[1].Title)

	page, err := repo.ListPage(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	next, err := repo.ListPage(ctx, page[1].ID, 10)
	require.NoError(t, err)
	assert.Len(t, next, 2)
}

func TestRepositoryTransactAndDelete(t *testing.T) {
	repo := NewRepository(setupTestPool(t), 0, nil)
	ctx := context.Background()
	p := createPoll(t, repo, "42", "Lunch?", "Pizza")

	updated, err := repo.Transact(ctx, p.ID, func(p *models.Poll) error {
		_, err := p.Toggle(0, "1", models.Profile{FirstName: "Alice"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Respondent{{UserID: "1", FirstName: "Alice"}}, updated.Options[0].Respondents)

	_, err = repo.Transact(ctx, p.ID, func(p *models.Poll) error {
		_, err := p.Toggle(5, "1", models.Profile{})
		return err
	})
	assert.ErrorIs(t, err, models.ErrInvalidOption)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.Transact(ctx, p.ID, func(*models.Poll) error { return nil })
	assert.ErrorIs(t, err, models.ErrPollNotFound)
}

func TestRepositoryConcurrentToggles(t *testing.T) {
	repo := NewRepository(setupTestPool(t), 0, nil)
	ctx := context.Background()
	p := createPoll(t, repo, "42", "Lunch?", "A", "B", "C", "D", "E")

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := strconv.Itoa(i)
			_, err := repo.Transact(ctx, p.ID, func(p *models.Poll) error {
				_, err := p.Toggle(i%5, uid, models.Profile{FirstName: "u" + uid})
				return err
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, voters, got.RespondentCount())
	onOption := make(map[string]int)
	for idx, o := range got.Options {
		for _, r := range o.Respondents {
			onOption[r.UserID] = idx
		}
	}
	for i := 0; i < voters; i++ {
		idx, ok := onOption[strconv.Itoa(i)]
		assert.True(t, ok, "voter %d missing", i)
		assert.Equal(t, i%5, idx)
	}
}
