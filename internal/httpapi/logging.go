package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, request logging is off.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// logEnd records a completed call. Intentional rejections (4xx) land here,
// not in logError: they are the designed error path, not failures.
func logEnd(r *http.Request, op string, status int, dur time.Duration) {
	if zlog == nil {
		return
	}
	ev := zlog.Info().Str("op", op).Int("status", status)
	if dur > 0 {
		ev = ev.Dur("dur", dur)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Msg("rpc end")
}

// logError records an unclassified or resource failure with full context.
func logError(r *http.Request, op string, err error) {
	if zlog == nil {
		return
	}
	ev := zlog.Error().Str("op", op).Err(err)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Msg("rpc failed")
}
