package httpapi

import (
	"context"
	"errors"
	"net/http"
)

// serverBaseCtx is canceled when the process starts shutting down. Handlers
// derive their contexts from it so in-flight engine work is released before
// the listener drains. Defaults to Background if never set.
var serverBaseCtx = context.Background()

// errServerShutdown is the cancellation cause attached when the base context
// ends a request.
var errServerShutdown = errors.New("server shutting down")

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// requestContext derives the context a handler passes to the service: it
// ends when the client disconnects (carrying the request's own cause) or
// when shutdown begins (carrying errServerShutdown), whichever is first.
// The returned cancel must be called when the handler ends.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		select {
		case <-serverBaseCtx.Done():
			cancel(errServerShutdown)
		case <-r.Context().Done():
			cancel(context.Cause(r.Context()))
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(nil) }
}
