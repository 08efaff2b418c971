package riak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMaxSize            = 8
	DefaultHealthCheckTimeout = time.Second
)

// Config holds configuration for the client and its per-node pools.
type Config struct {
	// MaxSize is the maximum number of connections per node.
	// Defaults to DefaultMaxSize.
	MaxSize int32

	// ConnectTimeout bounds the connect phase of new connections.
	// Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// MaxFrameSize rejects inbound frames declaring a larger length.
	// Zero means no limit.
	MaxFrameSize uint32

	// MaxConnLifetime is the maximum duration a connection can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can be idle before being closed.
	// Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are pinged.
	// Zero disables health checks.
	HealthCheckInterval time.Duration

	// HealthCheckTimeout bounds each ping. Defaults to DefaultHealthCheckTimeout.
	HealthCheckTimeout time.Duration

	// Dialer opens the sockets. Defaults to a zero net.Dialer.
	Dialer Dialer

	// NewPool is the connection pool factory.
	// Defaults to NewPuddlePool. NewChannelPool is the alternative.
	NewPool PoolFactory

	// SelectServer picks which server to use for a key.
	// Defaults to DefaultServerSelector.
	SelectServer ServerSelector

	// NewCircuitBreaker creates a circuit breaker for a node.
	// Called once per node address. If nil, no circuit breaker is used.
	NewCircuitBreaker func(nodeAddr string) *CircuitBreaker

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.HealthCheckTimeout == 0 {
		c.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	if c.NewPool == nil {
		c.NewPool = NewPuddlePool
	}
	if c.SelectServer == nil {
		c.SelectServer = DefaultServerSelector
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Client routes commands to the nodes of a cluster.
// Each key maps to one node; a failed request is never retried elsewhere.
type Client struct {
	*Commands

	servers Servers
	config  Config

	mu    sync.RWMutex
	nodes map[string]*Node

	stopHealthCheck chan struct{}
	closeOnce       sync.Once
}

var _ Executor = (*Client)(nil)

// NewClient creates a new client with the given servers and configuration.
// For a single server, use: NewClient(NewStaticServers("host:port"), config)
func NewClient(servers Servers, config Config) (*Client, error) {
	if len(servers.List()) == 0 {
		return nil, ErrNoServers
	}

	client := &Client{
		servers:         servers,
		config:          config.withDefaults(),
		nodes:           make(map[string]*Node),
		stopHealthCheck: make(chan struct{}),
	}
	client.Commands = NewCommands(client)

	if config.HealthCheckInterval > 0 {
		go client.healthCheckLoop()
	}

	return client, nil
}

// Close stops the health checks and closes every node.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopHealthCheck)

		c.mu.Lock()
		defer c.mu.Unlock()

		for _, node := range c.nodes {
			node.Close()
		}
	})
}

// Execute runs cmd on the node selected for key and waits for its outcome.
func (c *Client) Execute(ctx context.Context, key string, cmd Awaitable) error {
	node, err := c.nodeForKey(key)
	if err != nil {
		return err
	}
	return node.Execute(ctx, cmd)
}

func (c *Client) nodeForKey(key string) (*Node, error) {
	servers := c.servers.List()
	if len(servers) == 0 {
		return nil, ErrNoServers
	}

	idx := c.config.SelectServer(key, len(servers))
	return c.getOrCreateNode(servers[idx])
}

// getOrCreateNode creates nodes lazily.
func (c *Client) getOrCreateNode(addr string) (*Node, error) {
	c.mu.RLock()
	node, exists := c.nodes[addr]
	c.mu.RUnlock()
	if exists {
		return node, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.nodes[addr]; exists {
		return node, nil
	}

	node, err := NewNode(addr, c.config)
	if err != nil {
		return nil, err
	}
	c.nodes[addr] = node
	return node, nil
}

// Ping pings every server of the list.
func (c *Client) Ping(ctx context.Context) error {
	var errs []error
	for _, addr := range c.servers.List() {
		node, err := c.getOrCreateNode(addr)
		if err == nil {
			err = node.Execute(ctx, NewPing())
		}
		if err != nil {
			c.stats.recordError()
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		c.stats.recordPing()
	}
	return errors.Join(errs...)
}

// ServerInfo returns the node name and version of every server, keyed by address.
func (c *Client) ServerInfo(ctx context.Context) (map[string]ServerInfo, error) {
	infos := make(map[string]ServerInfo)
	var errs []error
	for _, addr := range c.servers.List() {
		node, err := c.getOrCreateNode(addr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}

		cmd := NewGetServerInfo()
		if err := node.Execute(ctx, cmd); err != nil {
			c.stats.recordError()
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		infos[addr], _ = cmd.Result()
	}
	return infos, errors.Join(errs...)
}

// healthCheckLoop periodically checks idle connections for health and lifecycle limits.
func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHealthCheck:
			return
		case <-ticker.C:
			c.checkAllNodes()
		}
	}
}

func (c *Client) checkAllNodes() {
	ctx := context.Background()
	for _, node := range c.snapshotNodes() {
		node.CheckIdle(ctx)
	}
}

func (c *Client) snapshotNodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nodes := make([]*Node, 0, len(c.nodes))
	for _, node := range c.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

// AllNodeStats returns stats for every node that has been used.
func (c *Client) AllNodeStats() []NodeStats {
	nodes := c.snapshotNodes()
	stats := make([]NodeStats, 0, len(nodes))
	for _, node := range nodes {
		stats = append(stats, node.Stats())
	}
	return stats
}
