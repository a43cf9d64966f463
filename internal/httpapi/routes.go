package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/party-quiz-backend/internal/auth"
	"github.com/DoyleJ11/party-quiz-backend/internal/content"
	"github.com/DoyleJ11/party-quiz-backend/internal/hub"
	"github.com/DoyleJ11/party-quiz-backend/internal/ws"
)

type Deps struct {
	Hub            *hub.Hub
	Auth           *auth.Verifier
	Catalog        content.Catalog
	PublicURL      string   // base of the join link in QR codes
	OriginPatterns []string // allowed websocket origins
	Log            *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.Auth, d.OriginPatterns, d.Log))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", Login(d.Auth))
		r.Get("/categories", Categories(d.Catalog))
		r.With(requireHost(d.Auth)).Post("/sessions", CreateSession(d.Hub))
		r.Get("/sessions/{code}", GetSession(d.Hub))
		r.Get("/sessions/{code}/qr.png", JoinQR(d.Hub, d.PublicURL))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The websocket route hijacks the connection; it logs for itself.
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
