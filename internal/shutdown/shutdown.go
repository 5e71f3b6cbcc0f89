// Package shutdown runs registered release functions exactly once, in
// reverse registration order, on every exit path.
package shutdown

import (
	"sync"

	"go.uber.org/zap"
)

// Coordinator collects release functions as resources are acquired.
type Coordinator struct {
	logger *zap.Logger

	mu       sync.Mutex
	releases []release
	closed   bool
}

type release struct {
	name string
	fn   func() error
}

// NewCoordinator creates an empty Coordinator.
func NewCoordinator(logger *zap.Logger) *Coordinator {
	return &Coordinator{logger: logger}
}

// Register adds a release function. Registration after Close is a no-op
// beyond running fn immediately, so late acquirers still get released.
func (c *Coordinator) Register(name string, fn func() error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.run(release{name: name, fn: fn})
		return
	}
	c.releases = append(c.releases, release{name: name, fn: fn})
	c.mu.Unlock()
}

// Close runs all registered release functions in reverse order. Only the
// first call does anything.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	releases := c.releases
	c.releases = nil
	c.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		c.run(releases[i])
	}
}

func (c *Coordinator) run(r release) {
	if err := r.fn(); err != nil {
		c.logger.Warn("release failed", zap.String("resource", r.name), zap.Error(err))
	}
}
