package transport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/qrgate/pkg/api"
)

// Recovery converts a handler panic into a 500 response. The server keeps
// accepting requests afterwards.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error("handler panic",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"panic", fmt.Sprint(p),
				)
				if !rec.wroteHeader {
					WriteAPIError(rec, api.NewServerError("Internal server error", ""))
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
