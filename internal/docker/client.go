// Package docker adapts the Docker Engine API to dockyard's records, with timeout management and error handling.
package docker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moby/moby/client"
)

// Client wraps the Docker client with dockyard-specific operations and timeout management
type Client struct {
	cli *client.Client
}

// NewClient creates a new Docker client wrapper with sensible defaults.
// The connection is resolved from the environment (DOCKER_HOST etc.) and
// is not dialed until the first call.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Client{cli: cli}, nil
}

// Close closes the underlying Docker client
func (c *Client) Close() error {
	if c.cli != nil {
		return c.cli.Close()
	}
	return nil
}

// withTimeout bounds one API call. The parent still cancels it early.
func withTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

// Probe checks that the daemon answers. It is used once at startup, where an
// unreachable socket is fatal.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, TimeoutQuick)
	defer cancel()

	if _, err := c.cli.ContainerList(ctx, client.ContainerListOptions{Limit: 1}); err != nil {
		return wrapErr("reach docker daemon", TimeoutQuick, err)
	}
	return nil
}

// Operation timeout constants
const (
	TimeoutQuick  = 5 * time.Second  // List, inspect, stats operations
	TimeoutMedium = 15 * time.Second // Start, stop, delete operations
	TimeoutLong   = 10 * time.Minute // Pulls
)

// wrapErr reports deadline overruns in plain words and wraps everything else
// so callers can still classify it with errdefs.
func wrapErr(op string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: operation timed out after %s", op, timeout)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
