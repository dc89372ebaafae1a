package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/vasiliy-maslov/food-delivery/internal/handler"
)

type Handlers struct {
	Auth   *handler.Authenticator
	Dish   *handler.DishHandler
	Basket *handler.BasketHandler
	Order  *handler.OrderHandler
}

func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(api chi.Router) {
		h.Dish.RegisterPublicRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(h.Auth.Middleware)
			h.Dish.RegisterRoutes(protected)
			h.Basket.RegisterRoutes(protected)
			h.Order.RegisterRoutes(protected)
		})
	})

	return r
}
