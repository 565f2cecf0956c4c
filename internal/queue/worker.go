package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Handler processes one job. Returning a backoff.PermanentError drops the job
// without retry; any other error is treated as transient and retried with
// exponential backoff.
type Handler func(ctx context.Context, job Job) error

// Worker consumes jobs from a queue client and dispatches them by kind.
// Delivery is at-least-once: a job is only consumed from the broker before
// processing, and transient failures are retried in place.
type Worker struct {
	client      *Client
	handlers    map[string]Handler
	pollTimeout time.Duration
	maxInterval time.Duration
}

// NewWorker creates a worker with no registered handlers.
func NewWorker(client *Client) *Worker {
	return &Worker{
		client:      client,
		handlers:    make(map[string]Handler),
		pollTimeout: 5 * time.Second,
		maxInterval: 2 * time.Minute,
	}
}

// Handle registers the handler for a job kind.
func (w *Worker) Handle(kind string, h Handler) {
	w.handlers[kind] = h
}

// Run consumes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, raw, err := w.client.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if job == nil && raw != nil {
				// Malformed envelope: permanent failure, dropped without requeue.
				slog.Error("dropping malformed job", "error", err)
				continue
			}
			slog.Error("dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, *job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	handler, ok := w.handlers[job.Kind]
	if !ok {
		slog.Error("dropping job of unknown kind", "job_id", job.ID, "kind", job.Kind)
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = w.maxInterval
	bo.MaxElapsedTime = 0 // retry transient failures until cancelled

	operation := func() error {
		return handler(ctx, job)
	}

	notify := func(err error, next time.Duration) {
		slog.Warn("job failed, retrying", "job_id", job.ID, "kind", job.Kind,
			"error", err, "next_attempt_in", next)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			slog.Error("dropping job after permanent failure", "job_id", job.ID, "kind", job.Kind, "error", err)
			return
		}
		slog.Error("job abandoned", "job_id", job.ID, "kind", job.Kind, "error", err)
	}
}
