package polls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/countmein/backend/internal/models"
)

// DefaultTxRetries bounds how often Transact re-runs a transaction that lost a race.
const DefaultTxRetries = 5

const pollColumns = `id, admin_id, title, title_lower, active, multi, options, created_at, updated_at`

// Repository handles poll persistence.
type Repository struct {
	pool       *pgxpool.Pool
	maxRetries int
	logger     *zap.Logger
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool, maxRetries int, logger *zap.Logger) *Repository {
	if maxRetries <= 0 {
		maxRetries = DefaultTxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, maxRetries: maxRetries, logger: logger}
}

// Create inserts a new poll and fills in its id and timestamps.
func (r *Repository) Create(ctx context.Context, p *models.Poll) error {
	options, err := json.Marshal(nonNilOptions(p.Options))
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	const query = `INSERT INTO polls (admin_id, title, title_lower, active, multi, options)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, p.AdminID, p.Title, p.TitleLower, p.Active, p.Multi, options).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a poll by ID, or models.ErrPollNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Poll, error) {
	p, err := scanPoll(r.pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPollNotFound
	}
	return p, err
}

// ListByAdmin returns the admin's most recent polls, newest first.
func (r *Repository) ListByAdmin(ctx context.Context, adminID string, limit int) ([]*models.Poll, error) {
	const query = `SELECT ` + pollColumns + ` FROM polls WHERE admin_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`
	return r.queryPolls(ctx, query, adminID, limit)
}

// SearchByTitlePrefix returns the admin's polls whose lowercased title starts with prefix, newest first.
func (r *Repository) SearchByTitlePrefix(ctx context.Context, adminID, prefix string, limit int) ([]*models.Poll, error) {
	const query = `SELECT ` + pollColumns + ` FROM polls
		WHERE admin_id = $1 AND starts_with(title_lower, $2)
		ORDER BY created_at DESC, id DESC LIMIT $3`
	return r.queryPolls(ctx, query, adminID, prefix, limit)
}

// ListPage returns polls of all admins with id below before (0 = from the newest), newest first.
func (r *Repository) ListPage(ctx context.Context, before int64, limit int) ([]*models.Poll, error) {
	if before <= 0 {
		const query = `SELECT ` + pollColumns + ` FROM polls ORDER BY id DESC LIMIT $1`
		return r.queryPolls(ctx, query, limit)
	}
	const query = `SELECT ` + pollColumns + ` FROM polls WHERE id < $1 ORDER BY id DESC LIMIT $2`
	return r.queryPolls(ctx, query, before, limit)
}

// Delete removes a poll permanently. Deleting a missing poll is not an error.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM polls WHERE id = $1`, id)
	return err
}

// Transact reads the poll under a row lock, applies fn and writes the whole record back
// in one transaction. The lock serializes concurrent writers of the same poll, and the
// row is re-read after the lock is granted. Contention and connection failures that left
// nothing committed are retried up to the configured bound; after that models.ErrTransient
// is returned. If fn returns an error nothing is written and the error is returned as is.
func (r *Repository) Transact(ctx context.Context, id int64, fn func(*models.Poll) error) (*models.Poll, error) {
	var out *models.Poll
	err := r.retry(ctx, id, func() error {
		return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			p, err := scanPoll(tx.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1 FOR UPDATE`, id))
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrPollNotFound
			}
			if err != nil {
				return err
			}
			if err := fn(p); err != nil {
				return err
			}
			options, err := json.Marshal(nonNilOptions(p.Options))
			if err != nil {
				return fmt.Errorf("marshal options: %w", err)
			}
			const update = `UPDATE polls SET title = $2, title_lower = $3, active = $4, options = $5, updated_at = NOW()
				WHERE id = $1 RETURNING updated_at`
			if err := tx.QueryRow(ctx, update, id, p.Title, p.TitleLower, p.Active, options).Scan(&p.UpdatedAt); err != nil {
				return err
			}
			out = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// retry runs attempt until it succeeds, fails for good or r.maxRetries attempts are used up.
func (r *Repository) retry(ctx context.Context, id int64, attempt func() error) error {
	for n := 1; ; n++ {
		err := attempt()
		if err == nil {
			return nil
		}
		if !isRetryable(ctx, err) {
			return err
		}
		if n >= r.maxRetries {
			r.logger.Warn("poll transaction retries exhausted", zap.Int64("poll_id", id), zap.Int("attempts", n), zap.Error(err))
			return fmt.Errorf("%w: %v", models.ErrTransient, err)
		}
		r.logger.Debug("retrying poll transaction", zap.Int64("poll_id", id), zap.Int("attempt", n), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(n) * 20 * time.Millisecond):
		}
	}
}

func (r *Repository) queryPolls(ctx context.Context, query string, args ...any) ([]*models.Poll, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var p models.Poll
	var options []byte
	if err := row.Scan(&p.ID, &p.AdminID, &p.Title, &p.TitleLower, &p.Active, &p.Multi, &options, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &p.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of poll %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

func nonNilOptions(options []models.Option) []models.Option {
	if options == nil {
		return []models.Option{}
	}
	return options
}

// isRetryable reports whether a failed transaction can be run again safely:
// the server rolled it back, or the request never reached the server.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57014": // query_canceled, by statement_timeout while ctx is alive
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}
