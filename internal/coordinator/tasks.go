package coordinator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskRunner runs work off the caller's goroutine. Go must not block.
type TaskRunner interface {
	Go(fn func(ctx context.Context))
}

// BackgroundRunner runs each task on its own goroutine with a context that is
// never cancelled; in-flight uploads finish or time out on their own.
// Tasks report nothing, so the group is only used to join them.
type BackgroundRunner struct {
	group errgroup.Group
	ctx   context.Context
}

func NewBackgroundRunner() *BackgroundRunner {
	return &BackgroundRunner{ctx: context.Background()}
}

func (r *BackgroundRunner) Go(fn func(ctx context.Context)) {
	r.group.Go(func() error {
		fn(r.ctx)
		return nil
	})
}

// Wait blocks until every task started so far has returned.
// Production callers never need it; tests and shutdown do.
func (r *BackgroundRunner) Wait() {
	_ = r.group.Wait()
}
