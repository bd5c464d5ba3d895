// Package coalesce persists the latest staged value of a single file on a
// fixed interval. Any number of Stage calls between two ticks collapse into
// one disk write of the most recent value.
package coalesce

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval is the flush period used when WithInterval is not given.
const DefaultInterval = time.Second

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithInterval sets the flush period. Values <= 0 are ignored.
func WithInterval(d time.Duration) Option {
	return func(c *Coalescer) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger used for flush failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coalescer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFileMode sets the permission bits of written files.
func WithFileMode(mode os.FileMode) Option {
	return func(c *Coalescer) { c.mode = mode }
}

// WithOnFlush registers a callback invoked with the target path after every
// successful write.
func WithOnFlush(fn func(path string)) Option {
	return func(c *Coalescer) { c.onFlush = fn }
}

// WithBeforeWrite registers a callback invoked with the target path right
// before each write starts. File watchers use it to mute the path before the
// rename can produce an event.
func WithBeforeWrite(fn func(path string)) Option {
	return func(c *Coalescer) { c.beforeWrite = fn }
}

// WithOnFailure registers a callback invoked when a write fails, after any
// WithBeforeWrite callback for the same attempt.
func WithOnFailure(fn func(path string, err error)) Option {
	return func(c *Coalescer) { c.onFailure = fn }
}

// Stats reports flush activity.
type Stats struct {
	Flushes  uint64
	Failures uint64
}

// Coalescer owns one pending-write slot and the goroutine that drains it.
type Coalescer struct {
	path     func() string
	interval time.Duration
	mode     os.FileMode
	logger   *slog.Logger

	beforeWrite func(path string)
	onFlush     func(path string)
	onFailure   func(path string, err error)

	mu      sync.Mutex
	pending *string
	gen     uint64

	// flushMu serializes disk writes between the loop, Flush and Close.
	flushMu sync.Mutex

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	flushes  atomic.Uint64
	failures atomic.Uint64
}

// New creates a Coalescer writing to the path returned by path (evaluated on
// every flush) and starts its loop immediately.
func New(path func() string, opts ...Option) *Coalescer {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coalescer{
		path:     path,
		interval: DefaultInterval,
		mode:     0o600,
		logger:   slog.Default(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run(ctx)
	return c
}

// Stage replaces the pending value. It never blocks on I/O and never fails.
func (c *Coalescer) Stage(value string) {
	c.mu.Lock()
	c.pending = &value
	c.gen++
	c.mu.Unlock()
}

// Pending returns the value waiting for the next flush, if any.
func (c *Coalescer) Pending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return "", false
	}
	return *c.pending, true
}

// Stats returns a snapshot of the flush counters.
func (c *Coalescer) Stats() Stats {
	return Stats{Flushes: c.flushes.Load(), Failures: c.failures.Load()}
}

// Flush writes the pending value now, if there is one.
func (c *Coalescer) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.flush()
}

// Close stops the loop, waits for it to exit and makes a final flush attempt.
// Calling Close more than once returns the first result. Values staged after
// Close are only persisted by an explicit Flush.
func (c *Coalescer) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.cancel()
		select {
		case <-c.done:
		case <-ctx.Done():
			c.closeErr = ctx.Err()
			return
		}
		c.closeErr = c.flush()
	})
	return c.closeErr
}

func (c *Coalescer) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.flush(); err != nil {
				c.logger.Warn("flush failed, will retry", "error", err)
			}
		}
	}
}

// flush writes the current pending value. On success the slot is cleared
// unless a newer value was staged during the write. On failure the slot is
// left untouched so the next tick retries it.
func (c *Coalescer) flush() error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil
	}
	value, gen := *c.pending, c.gen
	c.mu.Unlock()

	path := c.path()
	if c.beforeWrite != nil {
		c.beforeWrite(path)
	}
	if err := writeFile(path, value, c.mode); err != nil {
		c.failures.Add(1)
		if c.onFailure != nil {
			c.onFailure(path, err)
		}
		return fmt.Errorf("flushing %s: %w", path, err)
	}

	c.mu.Lock()
	if c.gen == gen {
		c.pending = nil
	}
	c.mu.Unlock()

	c.flushes.Add(1)
	if c.onFlush != nil {
		c.onFlush(path)
	}
	return nil
}

// writeFile replaces the contents of path with value by writing a sibling
// temp file and renaming it over the target.
func writeFile(path, value string, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, []byte(value), mode); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
