package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/api/response"
)

// Recovery turns a handler panic into the 500 envelope. Nothing is written
// when the handler already sent its header.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				slog.Error("panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				if rec.status == 0 && rec.bytes == 0 {
					response.Internal(rec)
				}
			}
		}()
		next.ServeHTTP(rec, r)
	})
}
