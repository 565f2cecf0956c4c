package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/sumire/bugtracker/internal/queue"
)

// AsyncSender implements Sender by enqueueing serialized batches onto the job
// queue. The enqueue itself is synchronous and must succeed before the
// calling request returns success; delivery happens in the worker.
type AsyncSender struct {
	queue *queue.Client
}

// NewAsyncSender creates a queue-backed sender.
func NewAsyncSender(q *queue.Client) *AsyncSender {
	return &AsyncSender{queue: q}
}

// Send serializes the batch and enqueues it.
func (s *AsyncSender) Send(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	if _, err := s.queue.Enqueue(ctx, JobKind, messages); err != nil {
		return fmt.Errorf("enqueue email batch: %w", err)
	}
	return nil
}

// JobHandler returns the worker-side handler that deserializes a batch and
// delivers it through sender. A payload that fails to deserialize, or a batch
// whose addresses cannot form valid messages, is a permanent failure and is
// rejected without requeue; delivery errors are transient and retried.
func JobHandler(sender Sender) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		var messages []Message
		if err := json.Unmarshal(job.Payload, &messages); err != nil {
			return backoff.Permanent(fmt.Errorf("malformed email batch: %w", err))
		}
		return sender.Send(ctx, messages)
	}
}
