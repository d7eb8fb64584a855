package ports

import "net/http"

// Liveness only: answers 200 with an empty body while the process is up
func MakeHealthzHandler() http.HandlerFunc {
	return buildMetricsMiddleware("healthz")(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
