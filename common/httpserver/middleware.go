package httpserver

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/YaganovValera/universe-client/common/logger"
)

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// RecoverMiddleware turns panics into 500 responses.
func RecoverMiddleware(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rcv := recover(); rcv != nil {
					log.WithContext(r.Context()).Error("http: panic recovered",
						zap.String("panic", fmt.Sprint(rcv)),
						zap.ByteString("stack", debug.Stack()),
					)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware returns a permissive CORS handler for the probe endpoints.
func CORSMiddleware() Middleware {
	return cors.AllowAll().Handler
}
