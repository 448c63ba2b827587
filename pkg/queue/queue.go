package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueOutbox is the Redis list of Bot API calls ready to be sent.
	QueueOutbox = "outbox:ready"
	// QueueDelayed is the sorted set of calls waiting for their due time (score = unix ms).
	QueueDelayed = "outbox:delayed"
	// QueueDLQ is the dead-letter list for calls that failed after retries.
	QueueDLQ = "outbox:dlq"
	// MaxRetries is the default number of attempts before a job moves to the DLQ.
	MaxRetries = 3
	// RetryBackoff is the default delay between attempts.
	RetryBackoff = 10 * time.Second

	promoteBatch = 100
)

// Job is one queued Bot API call.
type Job struct {
	ID        string          `json:"id"`
	Method    string          `json:"method"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// promoteScript moves due jobs from the delayed set to the ready list atomically,
// so two workers never promote the same job.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, job in ipairs(due) do
	redis.call('ZREM', KEYS[1], job)
	redis.call('RPUSH', KEYS[2], job)
end
return #due
`)

// Queue enqueues and dequeues Bot API calls via Redis.
type Queue struct {
	client     *redis.Client
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time
}

// NewQueue creates a new Redis-backed outbox queue. maxRetries <= 0 uses MaxRetries.
func NewQueue(client *redis.Client, maxRetries int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}
	return &Queue{client: client, maxRetries: maxRetries, logger: logger, now: time.Now}
}

// Enqueue queues a call of method with payload, to be sent after delay.
func (q *Queue) Enqueue(ctx context.Context, method string, payload any, delay time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Method:    method,
		Payload:   body,
		CreatedAt: q.now(),
	}
	if err := q.push(ctx, job, delay); err != nil {
		return err
	}
	q.logger.Debug("request queued", zap.String("job_id", job.ID), zap.String("method", method), zap.Duration("delay", delay))
	return nil
}

// Dequeue promotes due delayed jobs and then waits up to timeout for a ready job.
// It returns nil, nil when nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}
	result, err := q.client.BLPop(ctx, timeout, QueueOutbox).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt after delay. If the attempt count
// reaches the retry bound, the job is pushed to the DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job, delay time.Duration) error {
	job.Attempt++
	if job.Attempt >= q.maxRetries {
		raw, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.String("method", job.Method), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, job, delay); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Duration("delay", delay))
	return nil
}

func (q *Queue) push(ctx context.Context, job *Job, delay time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if delay <= 0 {
		if err := q.client.RPush(ctx, QueueOutbox, raw).Err(); err != nil {
			return fmt.Errorf("rpush: %w", err)
		}
		return nil
	}
	due := q.now().Add(delay).UnixMilli()
	if err := q.client.ZAdd(ctx, QueueDelayed, redis.Z{Score: float64(due), Member: raw}).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	return nil
}

func (q *Queue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, q.client, []string{QueueDelayed, QueueOutbox}, now, promoteBatch).Int()
	if err != nil {
		return fmt.Errorf("promote delayed jobs: %w", err)
	}
	if n > 0 {
		q.logger.Debug("promoted delayed jobs", zap.Int("count", n))
	}
	return nil
}
