// Package aff4ctx holds the explicit configuration struct that
// replaces process-wide global factories and abort flags with a
// thread pool and a cooperative abort flag, passed into top-level
// constructors instead of being process-wide.
package aff4ctx

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Context bundles the resources the AFF4 core needs to cross
// goroutine/process boundaries: the shared compression thread pool
// and a global cooperative abort flag. It has no knowledge of any specific
// subsystem.
type Context struct {
	// Parallelism bounds the bevy chunk-compression thread pool. Zero
	// or negative means runtime.GOMAXPROCS(0).
	Parallelism int

	aborted atomic.Bool
}

// New builds a Context with defaults filled in.
func New() *Context {
	return &Context{Parallelism: runtime.GOMAXPROCS(0)}
}

// Abort sets the cooperative global abort flag. Any in-flight
// WriteStream/CopyToStream using the default progress reporter will
// observe it on its next Report call and unwind with Aborted.
func (c *Context) Abort() { c.aborted.Store(true) }

// Aborted reports whether Abort has been called.
func (c *Context) Aborted() bool { return c.aborted.Load() }

// Reset clears the abort flag, allowing the Context to be reused.
func (c *Context) Reset() { c.aborted.Store(false) }

// Pool returns a fresh errgroup.Group bounded to this Context's
// configured parallelism, the mechanism the ImageStream bevy writer
// uses to fan compression jobs out across goroutines and fan the
// first error back in.
func (c *Context) Pool(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	n := c.Parallelism
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(n)
	return g, gctx
}
