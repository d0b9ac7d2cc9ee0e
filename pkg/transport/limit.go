package transport

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/debug"
)

// ConcurrencyLimit returns middleware that admits at most n completions at
// a time. Requests beyond the limit are rejected immediately with a
// too_many_requests error rather than queued. n <= 0 disables the limit.
func ConcurrencyLimit(n int) Middleware {
	if n <= 0 {
		return func(next ChatCompleter) ChatCompleter { return next }
	}
	sem := semaphore.NewWeighted(int64(n))
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
			if !sem.TryAcquire(1) {
				debug.Log("transport", "concurrency limit reached",
					"request_id", RequestIDFromContext(ctx), "limit", n)
				return nil, api.NewTooManyRequestsError(fmt.Sprintf("more than %d concurrent completions", n))
			}
			defer sem.Release(1)
			return next.Complete(ctx, req)
		})
	}
}
