package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/countmein/backend/internal/models"
)

// Repository handles user and respondent profile persistence. Users are senders of
// messages; respondents are users who pressed a poll button.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertUser creates or overwrites the profile of a message sender.
func (r *Repository) UpsertUser(ctx context.Context, id int64, p models.Profile) error {
	const q = `INSERT INTO users (id, first_name, last_name, username) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		username = EXCLUDED.username, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, id, p.FirstName, p.LastName, p.Username)
	return err
}

// UpsertRespondent creates or overwrites the profile of a poll respondent.
func (r *Repository) UpsertRespondent(ctx context.Context, id int64, p models.Profile) error {
	const q = `INSERT INTO respondents (id, first_name, last_name, username) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		username = EXCLUDED.username, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, id, p.FirstName, p.LastName, p.Username)
	return err
}

// GetByID returns a message sender's profile, or nil if the user was never seen.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const q = `SELECT id, first_name, last_name, username, created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
