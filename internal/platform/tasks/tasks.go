package tasks

import (
	"prodintel/internal/platform/redis"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeBatchExtract = "batch:extract"

	QueueBatches = "batches"
)

type Client struct{ c *asynq.Client }

func New(r *redis.Service) *Client { return &Client{c: asynq.NewClient(r.AsynqRedisOpt())} }

func (t *Client) Enqueue(task *asynq.Task, queue string, maxRetries int, opts ...asynq.Option) error {
	all := append([]asynq.Option{asynq.Queue(queue), asynq.MaxRetry(maxRetries)}, opts...)
	_, err := t.c.Enqueue(task, all...)
	return err
}

func (t *Client) Close() error { return t.c.Close() }
