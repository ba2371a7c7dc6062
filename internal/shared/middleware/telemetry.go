package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Telemetry wraps an http.Handler with otelhttp instrumentation. Health checks are
// not traced.
func Telemetry(serviceName string) func(http.Handler) http.Handler {
	return otelhttp.NewMiddleware(serviceName,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)
}
