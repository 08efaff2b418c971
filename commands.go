package riak

import (
	"context"
)

// Querier is the key/value API of the client.
type Querier interface {
	Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error)
	Store(ctx context.Context, opts StoreOptions) (*StoreResult, error)
	Delete(ctx context.Context, opts DeleteOptions) error
	ListBuckets(ctx context.Context, opts ListBucketsOptions) ([]string, error)
	ListKeys(ctx context.Context, opts ListKeysOptions) ([]string, error)
}

// Executor runs a command on the node responsible for key.
// The key is provided separately to allow node selection.
type Executor interface {
	Execute(ctx context.Context, key string, cmd Awaitable) error
}

// Commands provides the key/value operations on top of an Executor.
// It can be used independently with a custom Executor, or through Client.
type Commands struct {
	executor Executor
	stats    *clientStatsCollector
}

var _ Querier = (*Commands)(nil)

// NewCommands creates a new Commands instance with the given executor.
func NewCommands(executor Executor) *Commands {
	return &Commands{
		executor: executor,
		stats:    newClientStatsCollector(),
	}
}

// Stats returns a snapshot of the operation counters.
func (c *Commands) Stats() ClientStats {
	return c.stats.snapshot()
}

func (c *Commands) execute(ctx context.Context, key string, cmd Awaitable) error {
	err := c.executor.Execute(ctx, key, cmd)
	if err != nil {
		c.stats.recordError()
	}
	return err
}

// Fetch reads a value. A missing key is not an error: the result has NotFound set.
func (c *Commands) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	cmd, err := NewFetchValue(opts)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	if err := c.execute(ctx, objectKey(opts.BucketType, opts.Bucket, opts.Key), cmd); err != nil {
		return nil, err
	}

	res, err := cmd.Result()
	if err != nil {
		return nil, err
	}
	c.stats.recordFetch(!res.NotFound)
	return res, nil
}

// Store writes a value.
func (c *Commands) Store(ctx context.Context, opts StoreOptions) (*StoreResult, error) {
	cmd, err := NewStoreValue(opts)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	if err := c.execute(ctx, objectKey(opts.BucketType, opts.Bucket, opts.Key), cmd); err != nil {
		return nil, err
	}

	c.stats.recordStore()
	return cmd.Result()
}

// Delete removes a value. Deleting a missing key succeeds.
func (c *Commands) Delete(ctx context.Context, opts DeleteOptions) error {
	cmd, err := NewDeleteValue(opts)
	if err != nil {
		c.stats.recordError()
		return err
	}

	if err := c.execute(ctx, objectKey(opts.BucketType, opts.Bucket, opts.Key), cmd); err != nil {
		return err
	}

	c.stats.recordDelete()
	return nil
}

// ListBuckets lists the buckets of a bucket type. It is expensive on the
// server side. When opts.OnBuckets is set the returned slice is empty.
func (c *Commands) ListBuckets(ctx context.Context, opts ListBucketsOptions) ([]string, error) {
	cmd, err := NewListBuckets(opts)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	if err := c.execute(ctx, opts.BucketType, cmd); err != nil {
		return nil, err
	}

	c.stats.recordList()
	return cmd.Result()
}

// ListKeys lists the keys of a bucket. It is expensive on the server side.
// When opts.OnKeys is set the returned slice is empty.
func (c *Commands) ListKeys(ctx context.Context, opts ListKeysOptions) ([]string, error) {
	cmd, err := NewListKeys(opts)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	if err := c.execute(ctx, objectKey(opts.BucketType, opts.Bucket, ""), cmd); err != nil {
		return nil, err
	}

	c.stats.recordList()
	return cmd.Result()
}

// objectKey is the routing key of an object.
func objectKey(bucketType, bucket, key string) string {
	return bucketType + "/" + bucket + "/" + key
}
