package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/debug"
)

// Logging returns middleware that emits one structured log entry per chat
// request with the request ID, the number of submitted turns, the selected
// capabilities, the duration and the error, if any.
//
// HTTP status codes are not visible at this level; the HTTP adapter's
// metrics middleware covers them.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)
			debug.Log("transport", "chat request received",
				"request_id", requestID, "turns", len(req.Messages), "capabilities", req.Capabilities)

			resp, err := next.Complete(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.Int("turns", len(req.Messages)),
				slog.Duration("duration", time.Since(start)),
			}
			if len(req.Capabilities) > 0 {
				attrs = append(attrs, slog.Any("capabilities", req.Capabilities))
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			} else {
				attrs = append(attrs, slog.Int("returned", len(resp.Messages)))
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return resp, err
		})
	}
}
