package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/scatty/backend/internal/handler/persona"
	"github.com/zhouzirui/scatty/backend/internal/handler/realtime"
	"github.com/zhouzirui/scatty/backend/internal/handler/session"
	middlewarePkg "github.com/zhouzirui/scatty/backend/internal/middleware"
	personaModel "github.com/zhouzirui/scatty/backend/internal/model/persona"
	"github.com/zhouzirui/scatty/backend/pkg/utils"
)

const serviceName = "scatty-backend"

// Deps 路由所需的核心服务
type Deps struct {
	Personas      personaModel.Store
	ActivePersona string
	Sessions      session.Sessions
	Conversations session.Conversations
	Hub           *realtime.Hub
	Dispatcher    realtime.Dispatcher
	CORS          *middlewarePkg.CORS
	Logger        zerolog.Logger
	Now           func() time.Time
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.Version)

	personaHandler := persona.New(deps.Personas, deps.ActivePersona)
	sessionHandler := session.New(deps.Sessions, deps.Conversations, deps.Hub)
	gateway := realtime.NewGateway(deps.Hub, deps.Dispatcher, deps.CORS.Allowed, deps.Logger)

	// websocket upgrades bypass the access log and CORS headers; the upgrader checks origins itself
	gateway.RegisterRoutes(r)

	r.Group(func(api chi.Router) {
		api.Use(hlog.NewHandler(deps.Logger.With().Str("component", "http").Logger()))
		api.Use(accessLog)
		api.Use(deps.CORS.Handler)

		api.Get("/", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, r, http.StatusOK, map[string]any{
				"name":    serviceName,
				"version": middlewarePkg.APIVersion,
				"docs":    "/v1",
				"endpoints": map[string]string{
					"health":   "/v1/health",
					"personas": "/v1/personas",
					"sessions": "/v1/sessions/{sessionId}",
					"metrics":  "/metrics",
					"realtime": "/ws",
				},
			})
		})

		api.Get("/health", healthHandler(now, false))
		api.Handle("/metrics", promhttp.Handler())

		api.Route("/v1", func(v1 chi.Router) {
			v1.Get("/health", healthHandler(now, true))
			personaHandler.RegisterRoutes(v1)
			sessionHandler.RegisterRoutes(v1)
		})
	})

	return r
}

// healthHandler reports liveness with an epoch-millis timestamp; the legacy route omits the version.
func healthHandler(now func() time.Time, withVersion bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":    "ok",
			"timestamp": now().UnixMilli(),
		}
		if withVersion {
			body["version"] = middlewarePkg.APIVersion
		}
		utils.RespondJSON(w, r, http.StatusOK, body)
	}
}

var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("requestId", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
})
