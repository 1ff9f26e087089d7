// internal/session/context_utils.go
package session

import (
	"context"
	"time"
)

// CombineContext creates a new context derived from primary that is
// canceled when either primary or secondary is canceled. It inherits
// values from primary, which matters for chromedp: the session context
// carries the CDP target, the operational context carries the deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

// valueOnlyContext inherits values from its parent but ignores the
// parent's deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that keeps ctx's values but not its
// cancellation. The browser allocator hangs off a detached context so
// a dead task context cannot kill the process before Close runs.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
