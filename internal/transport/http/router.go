package http

import (
	"net/http"
	"time"

	"github.com/amarket/chat-service/internal/metrics"
	httpmw "github.com/amarket/chat-service/internal/transport/http/middleware"
	"github.com/amarket/chat-service/internal/transport/ws"
	"github.com/amarket/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterDeps struct {
	Handler        *Handler
	WS             *ws.Server
	Auth           func(http.Handler) http.Handler
	Metrics        *metrics.Metrics
	Health         func(r *http.Request) error
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(d RouterDeps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(httputil.MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httputil.MiddlewareLogging)
	r.Use(middlewareChi.Recoverer)
	r.Use(d.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", httputil.HeaderRequestID, httpmw.HeaderPartial},
		ExposedHeaders:   []string{httputil.HeaderRequestID, "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			if err := d.Health(r); err != nil {
				httputil.Error(r.Context(), w, http.StatusServiceUnavailable, "unhealthy", map[string]any{"reason": err.Error()})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", d.Metrics.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(d.Auth)

		// WS без таймаута: соединение живёт дольше запроса
		pr.Get("/ws/chat/{username}", d.WS.HandleWS)

		pr.Group(func(api chi.Router) {
			api.Use(middlewareChi.Timeout(d.RequestTimeout))
			api.Use(httpmw.Partial)

			api.Route("/chat", func(cr chi.Router) {
				cr.Get("/conversations", d.Handler.ListConversations)
				cr.Post("/start/{username}", d.Handler.StartConversation)
				cr.Get("/threads/{username}", d.Handler.GetThread)
				cr.Delete("/threads/{username}", d.Handler.DeleteThread)
			})
		})
	})

	return r
}
