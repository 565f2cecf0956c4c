// Package queue implements the background job boundary: a Redis list carries
// serialized jobs from the API server to the worker process.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Job is the envelope pushed onto the queue. Payload is opaque to the queue;
// the worker dispatches on Kind.
type Job struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Client enqueues and dequeues jobs on a single Redis list.
type Client struct {
	rdb *redis.Client
	key string
}

// NewClient creates a queue client around an existing Redis connection.
func NewClient(rdb *redis.Client, key string) *Client {
	return &Client{rdb: rdb, key: key}
}

// Enqueue pushes a job and returns its generated id. The push is synchronous:
// callers treat a failed enqueue as a failed request.
func (c *Client) Enqueue(ctx context.Context, kind string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	job := Job{ID: uuid.NewString(), Kind: kind, Payload: raw}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	if err := c.rdb.RPush(ctx, c.key, data).Err(); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return job.ID, nil
}

// Dequeue blocks up to timeout for the next job. It returns (nil, nil) when
// the timeout elapses with an empty queue.
func (c *Client) Dequeue(ctx context.Context, timeout time.Duration) (*Job, []byte, error) {
	res, err := c.rdb.BLPop(ctx, timeout, c.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("dequeue job: %w", err)
	}

	// BLPop returns [key, value].
	raw := []byte(res[1])
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, raw, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, raw, nil
}
