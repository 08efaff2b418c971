package riak

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Node owns the connections to one server: a pool and an optional circuit
// breaker. It never retries on another node.
type Node struct {
	addr           string
	pool           Pool
	circuitBreaker *CircuitBreaker
	logger         *slog.Logger

	maxConnLifetime    time.Duration
	maxConnIdleTime    time.Duration
	healthCheckTimeout time.Duration
}

// NewNode creates the pool for a "host:port" address. No connection is
// opened until the first request.
func NewNode(addr string, config Config) (*Node, error) {
	config = config.withDefaults()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("riak: invalid node address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("riak: invalid node port %q: %w", addr, err)
	}

	connConfig := ConnectionConfig{
		Address:        host,
		Port:           port,
		ConnectTimeout: config.ConnectTimeout,
		MaxFrameSize:   config.MaxFrameSize,
		Dialer:         config.Dialer,
		Logger:         config.Logger,
	}
	if err := connConfig.Validate(); err != nil {
		return nil, err
	}

	constructor := func(ctx context.Context) (*Connection, error) {
		return Dial(ctx, connConfig)
	}

	pool, err := config.NewPool(constructor, config.MaxSize)
	if err != nil {
		return nil, err
	}

	var cb *CircuitBreaker
	if config.NewCircuitBreaker != nil {
		cb = config.NewCircuitBreaker(addr)
	}

	return &Node{
		addr:               addr,
		pool:               pool,
		circuitBreaker:     cb,
		logger:             config.Logger.With("node", addr),
		maxConnLifetime:    config.MaxConnLifetime,
		maxConnIdleTime:    config.MaxConnIdleTime,
		healthCheckTimeout: config.HealthCheckTimeout,
	}, nil
}

func (n *Node) Address() string {
	return n.addr
}

// NodeStats contains stats for a single node
type NodeStats struct {
	Addr                 string
	PoolStats            PoolStats
	CircuitBreakerState  gobreaker.State
	CircuitBreakerCounts gobreaker.Counts
}

func (n *Node) Stats() NodeStats {
	stats := NodeStats{
		Addr:      n.addr,
		PoolStats: n.pool.Stats(),
	}
	if n.circuitBreaker != nil {
		stats.CircuitBreakerState = n.circuitBreaker.State()
		stats.CircuitBreakerCounts = n.circuitBreaker.Counts()
	}
	return stats
}

// Close destroys all the connections of the node.
func (n *Node) Close() {
	n.pool.Close()
}

// Execute runs cmd on a pooled connection and waits for its outcome.
// Cancelling ctx closes the connection, which fails the command.
// The request is wrapped with the node's circuit breaker when configured.
func (n *Node) Execute(ctx context.Context, cmd Awaitable) error {
	if n.circuitBreaker == nil {
		return n.execDirect(ctx, cmd)
	}

	_, err := n.circuitBreaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.execDirect(ctx, cmd)
	})
	return err
}

func (n *Node) execDirect(ctx context.Context, cmd Awaitable) error {
	resource, err := n.acquire(ctx)
	if err != nil {
		return err
	}
	conn := resource.Value()

	if err := conn.Send(cmd); err != nil {
		n.releaseOrDestroy(resource, err)
		return err
	}

	select {
	case <-cmd.Done():
	case <-ctx.Done():
		resource.Destroy()
		<-cmd.Done()
		return ctx.Err()
	}

	err = cmd.Err()
	n.releaseOrDestroy(resource, err)
	return err
}

// acquire skips pooled connections that died while idle.
func (n *Node) acquire(ctx context.Context) (Resource, error) {
	for {
		resource, err := n.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if resource.Value().State() == StateConnected {
			return resource, nil
		}
		n.logger.Debug("riak: discarding dead pooled connection", "state", resource.Value().State())
		resource.Destroy()
	}
}

// releaseOrDestroy keeps the connection only when it is connected and free.
func (n *Node) releaseOrDestroy(resource Resource, err error) {
	conn := resource.Value()
	if conn.State() == StateConnected && !conn.InFlight() && !ShouldCloseConnection(err) {
		resource.Release()
		return
	}
	resource.Destroy()
}

// CheckIdle pings every idle connection and destroys those that are stale,
// too old, or unhealthy.
func (n *Node) CheckIdle(ctx context.Context) {
	now := time.Now()

	for _, res := range n.pool.AcquireAllIdle() {
		conn := res.Value()

		if conn.State() != StateConnected {
			res.Destroy()
			continue
		}

		if n.maxConnLifetime > 0 && now.Sub(res.CreationTime()) > n.maxConnLifetime {
			res.Destroy()
			continue
		}

		if n.maxConnIdleTime > 0 && res.IdleDuration() > n.maxConnIdleTime {
			res.Destroy()
			continue
		}

		if err := n.ping(ctx, conn); err != nil {
			n.logger.Warn("riak: health check failed", "error", err)
			res.Destroy()
			continue
		}

		res.ReleaseUnused()
	}
}

func (n *Node) ping(ctx context.Context, conn *Connection) error {
	ctx, cancel := context.WithTimeout(ctx, n.healthCheckTimeout)
	defer cancel()

	cmd := NewPing()
	if err := conn.Send(cmd); err != nil {
		return err
	}
	if err := Wait(ctx, cmd); err != nil {
		// the connection is destroyed by the caller, which fails the ping
		return err
	}
	return nil
}
