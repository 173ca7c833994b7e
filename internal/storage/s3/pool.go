package s3

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ConnectionPool bounds the number of requests in flight against a bucket.
// The SDK client is shared; the pool hands out request slots.
type ConnectionPool struct {
	mu     sync.RWMutex
	slots  chan struct{}
	closed bool

	// Statistics
	stats PoolStats
}

// PoolStats tracks connection pool statistics
type PoolStats struct {
	Active    int           `json:"active"`
	MaxSize   int           `json:"max_size"`
	Acquired  int64         `json:"acquired"`
	Waits     int64         `json:"waits"`
	Canceled  int64         `json:"canceled"`
	TotalWait time.Duration `json:"total_wait"`
}

// NewConnectionPool creates a pool with maxSize request slots.
func NewConnectionPool(maxSize int) *ConnectionPool {
	if maxSize <= 0 {
		maxSize = 8 // Default pool size
	}
	return &ConnectionPool{
		slots: make(chan struct{}, maxSize),
		stats: PoolStats{MaxSize: maxSize},
	}
}

// Acquire blocks until a slot is free or ctx is done. Every successful
// Acquire must be paired with Release.
func (p *ConnectionPool) Acquire(ctx context.Context) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return fmt.Errorf("connection pool is closed")
	}
	if err := ctx.Err(); err != nil {
		p.mu.Lock()
		p.stats.Canceled++
		p.mu.Unlock()
		return err
	}

	select {
	case p.slots <- struct{}{}:
		p.record(0)
		return nil
	default:
	}

	start := time.Now()
	select {
	case p.slots <- struct{}{}:
		p.record(time.Since(start))
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		p.stats.Canceled++
		p.mu.Unlock()
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (p *ConnectionPool) Release() {
	select {
	case <-p.slots:
		p.mu.Lock()
		p.stats.Active--
		p.mu.Unlock()
	default:
	}
}

// Stats returns current pool statistics
func (p *ConnectionPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Close rejects further Acquire calls. Slots already held stay valid.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *ConnectionPool) record(wait time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Active++
	p.stats.Acquired++
	if wait > 0 {
		p.stats.Waits++
		p.stats.TotalWait += wait
	}
}
