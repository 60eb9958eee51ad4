package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lanecrew/tournament-system/metrics"
)

// Observe пишет структурированный лог запроса и гистограмму длительности.
// Метрика использует шаблон маршрута chi, а не сырой путь, чтобы
// кардинальность лейблов не росла с каждым ID в URL.
func Observe(m metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}

			m.ObserveHTTPRequest(r.Method, route, strconv.Itoa(ww.Status()), duration.Seconds())
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", duration),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("remote", r.RemoteAddr))
		})
	}
}
