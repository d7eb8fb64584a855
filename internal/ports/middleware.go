package ports

import (
	"net/http"

	"github.com/matchsync/matchsync/internal/ratelimiting"
)

type Middleware = func(http.HandlerFunc) http.HandlerFunc

// Reject requests over the limit with onLimitExceeded without reaching the handler
func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

// Chain middlewares around a handler, the first one being outermost.
// An empty chain returns the handler unchanged.
func ComposeMiddlewares(middlewares ...Middleware) Middleware {
	return func(handler http.HandlerFunc) http.HandlerFunc {
		wrapped := handler
		for i := range middlewares {
			wrapped = middlewares[len(middlewares)-1-i](wrapped)
		}
		return wrapped
	}
}
