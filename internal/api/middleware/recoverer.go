package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"Metafetch/internal/api/handlers"
)

// Recoverer turns a panic in a handler into a JSON 500 with a static message.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error("[HTTP] panic serving request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rvr),
					zap.ByteString("stack", debug.Stack()),
				)

				_ = handlers.WriteError(w, http.StatusInternalServerError, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
