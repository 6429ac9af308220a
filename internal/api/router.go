package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-accounts-be/internal/api/handlers"
	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/services"
	"github.com/isdelr/ender-accounts-be/internal/websocket"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Tokens         *auth.Tokens
	Hub            *websocket.Hub
	UserService    services.UserServiceProvider
	EventService   services.EventServiceProvider
	AllowedOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	userHandler := handlers.NewUserHandler(deps.UserService)
	eventHandler := handlers.NewEventHandler(deps.EventService)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigins)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	r.Route("/rpc", func(r chi.Router) {
		r.Use(auth.SessionMiddleware(deps.Tokens))

		r.Post("/user.create", userHandler.Create)
		r.Get("/user.getAll", userHandler.GetAll)
		r.Get("/user.getById", userHandler.GetByID)
		r.Post("/user.update", userHandler.Update)
		r.Post("/user.delete", userHandler.Delete)

		r.Get("/event.getRecent", eventHandler.GetRecent)
		r.Get("/user.events", wsHandler.Serve)
	})

	return r
}
