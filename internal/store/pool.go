package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Pool is a fixed-size pool of store clients for concurrent pipeline
// workers. Each worker acquires a client for the duration of its
// persistence work and releases it on every exit path; Acquire blocks
// until a client is free or the context ends.
type Pool struct {
	clients chan *Client
	all     []*Client
}

// NewPool dials size clients with the same configuration. On any dial
// failure the already-connected clients are closed and the error
// returned.
func NewPool(ctx context.Context, cfg Config, size int, log *slog.Logger) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", size)
	}

	p := &Pool{
		clients: make(chan *Client, size),
		all:     make([]*Client, 0, size),
	}
	for i := 0; i < size; i++ {
		client, err := NewClient(ctx, cfg, log)
		if err != nil {
			_ = p.Close(ctx)
			return nil, fmt.Errorf("pool client %d: %w", i, err)
		}
		p.all = append(p.all, client)
		p.clients <- client
	}
	return p, nil
}

// Acquire takes a client from the pool, blocking until one is available
// or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Client, error) {
	select {
	case client := <-p.clients:
		return client, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a client to the pool. Releasing a client that was not
// acquired from this pool corrupts its accounting; don't.
func (p *Pool) Release(client *Client) {
	if client == nil {
		return
	}
	p.clients <- client
}

// Size returns the number of clients the pool was built with.
func (p *Pool) Size() int {
	return len(p.all)
}

// Close closes every client. Outstanding acquisitions are not waited
// for; callers stop workers before closing the pool.
func (p *Pool) Close(ctx context.Context) error {
	var firstErr error
	for _, client := range p.all {
		if err := client.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
