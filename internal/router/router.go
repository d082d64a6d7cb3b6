package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/actuallystonmai/progress-service/internal/auth"
	"github.com/actuallystonmai/progress-service/internal/handler"
	"github.com/actuallystonmai/progress-service/internal/metrics"
)

// Pinger reports whether the backing stores are reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Setup(h *handler.Handler, jwt *auth.JWTService, health Pinger, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", healthCheck(health))
	r.Handle("/metrics", metrics.Handler())

	// Routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwt))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.StartSession)
			r.Get("/{sessionID}", h.GetSession)
			r.Delete("/{sessionID}", h.EndSession)
			r.Post("/{sessionID}/position", h.ReportPosition)
			r.Post("/{sessionID}/seek", h.Seek)
			r.Post("/{sessionID}/pause", h.Pause)
			r.Post("/{sessionID}/play", h.Play)
		})

		r.Get("/progress/{titleID}", h.GetProgress)
		r.Put("/progress/{titleID}", h.PutProgress)
		r.Get("/continue-watching", h.ContinueWatching)
		r.Get("/history", h.WatchHistory)

		r.Get("/watchlist", h.Watchlist)
		r.Put("/watchlist/{titleID}", h.AddToWatchlist)
		r.Delete("/watchlist/{titleID}", h.RemoveFromWatchlist)
	})

	return r
}

func healthCheck(health Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := health.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("client_ip", r.RemoteAddr),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
