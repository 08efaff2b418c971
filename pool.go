package riak

import (
	"context"
	"errors"
	"time"
)

var ErrPoolClosed = errors.New("riak: pool closed")

// Resource is a connection checked out of a Pool.
type Resource interface {
	Value() *Connection

	// Release returns the connection to the pool.
	Release()

	// ReleaseUnused returns the connection without counting it as used,
	// for health checks.
	ReleaseUnused()

	// Destroy closes the connection and removes it from the pool.
	Destroy()

	CreationTime() time.Time
	IdleDuration() time.Duration
}

// Pool holds the connections to a single node.
type Pool interface {
	// Acquire returns an idle connection, creates one, or waits for one.
	Acquire(ctx context.Context) (Resource, error)

	// AcquireAllIdle checks out every idle connection.
	AcquireAllIdle() []Resource

	Close()

	Stats() PoolStats
}

// PoolFactory creates a Pool from a connection constructor.
type PoolFactory func(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (Pool, error)
