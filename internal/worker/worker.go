package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/countmein/backend/internal/telegram"
	"github.com/countmein/backend/pkg/queue"
)

// Caller performs one Bot API call.
type Caller interface {
	Call(ctx context.Context, method string, payload json.RawMessage) error
}

// JobQueue is the outbox the processor drains.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, delay time.Duration) error
}

// DeliveryProcessor sends queued Bot API calls and applies the retry policy.
type DeliveryProcessor struct {
	api          Caller
	queue        JobQueue
	backoff      time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewDeliveryProcessor creates a delivery processor.
func NewDeliveryProcessor(api Caller, q JobQueue, backoff, pollInterval time.Duration, logger *zap.Logger) *DeliveryProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backoff <= 0 {
		backoff = queue.RetryBackoff
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &DeliveryProcessor{api: api, queue: q, backoff: backoff, pollInterval: pollInterval, logger: logger}
}

// Process sends one job. Failures that retrying cannot fix are logged and dropped;
// the rest are handed back to the queue with a delay.
func (p *DeliveryProcessor) Process(ctx context.Context, job *queue.Job) {
	err := p.api.Call(ctx, job.Method, job.Payload)
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("method", job.Method), zap.Int("attempt", job.Attempt)}

	switch kind := telegram.Classify(err); kind {
	case telegram.KindNone:
		p.logger.Info("request sent", fields...)
		return
	case telegram.KindIgnorable, telegram.KindForbidden:
		p.logger.Info("request dropped", append(fields, zap.Stringer("kind", kind), zap.Error(err))...)
		return
	case telegram.KindRetryAfter:
		delay := p.backoff
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			delay = apiErr.RetryAfter
		}
		p.logger.Warn("rate limited", append(fields, zap.Duration("retry_after", delay))...)
		p.retry(ctx, job, delay)
	case telegram.KindNetwork:
		p.logger.Warn("request failed", append(fields, zap.Stringer("kind", kind), zap.Error(err))...)
		p.retry(ctx, job, p.backoff)
	default:
		p.logger.Error("request failed", append(fields, zap.Stringer("kind", kind), zap.Error(err))...)
		p.retry(ctx, job, p.backoff)
	}
}

func (p *DeliveryProcessor) retry(ctx context.Context, job *queue.Job, delay time.Duration) {
	if err := p.queue.Retry(ctx, job, delay); err != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// Run starts the worker loop: dequeue, send, retry on error, until ctx is done.
func (p *DeliveryProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("delivery worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, p.pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}
		if job == nil {
			continue
		}
		p.Process(ctx, job)
	}
}
