package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/alternatives"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/crowd"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/itinerary"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/notification"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/place"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/user"
)

// Config contains dependencies needed for the router setup
type Config struct {
	CrowdHandler           *crowd.Handler
	PlaceHandler           *place.Handler
	AlternativesHandler    *alternatives.Handler
	ItineraryHandler       *itinerary.Handler
	NotificationHandler    *notification.Handler
	UserHandler            *user.Handler
	PushHandler            http.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
	// AuthRateLimit throttles the credential and OTP endpoints.
	AuthRateLimit  func(http.Handler) http.Handler
	AllowedOrigins []string
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (request id, logging, recoverer) is applied by the caller.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	if cfg.PushHandler != nil {
		r.Handle("/ws", cfg.PushHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"status": "Backend is running"})
		})

		r.Route("/crowd", func(r chi.Router) {
			h := cfg.CrowdHandler
			r.Post("/predict", h.Predict)
			r.Post("/best-times", h.BestTimes)
			r.Get("/history", h.History)
			r.Post("/record", h.Record)
		})

		r.Route("/places", func(r chi.Router) {
			h := cfg.PlaceHandler
			// static segments first so they never reach /{id}
			r.Post("/alternatives", cfg.AlternativesHandler.Alternatives)
			r.Get("/nearby", cfg.AlternativesHandler.Nearby)
			r.Get("/cities/all", h.GetAllCities)
			r.Get("/search", h.SearchPlaces)
			r.Get("/filter/advanced", h.AdvancedFilter)
			r.Route("/city/{city}", func(r chi.Router) {
				r.Get("/", h.GetPlacesByCity)
				r.Get("/categories", h.GetCityCategories)
				r.Get("/popular", h.GetPopularPlaces)
				r.Get("/tags", h.GetPlacesByTags)
				r.Get("/category/{category}", h.GetPlacesByCategory)
				r.Get("/budget/{budget}", h.GetPlacesByBudget)
				r.Get("/crowd/{level}", h.GetPlacesByCrowdLevel)
			})
			r.Post("/", h.CreatePlace)
			r.Get("/{id}", h.GetPlace)
			r.Put("/{id}", h.UpdatePlace)
			r.Delete("/{id}", h.DeletePlace)
		})

		r.Route("/itinerary", func(r chi.Router) {
			h := cfg.ItineraryHandler
			r.Post("/", h.CreateItinerary)
			r.Get("/user/{userId}", h.ListUserItineraries)
			r.Get("/{id}", h.GetItinerary)
			r.Post("/{id}/replan", h.ReplanItinerary)
			r.Put("/{id}", h.UpdateItinerary)
			r.Delete("/{id}", h.DeleteItinerary)
		})

		r.Route("/notifications", func(r chi.Router) {
			h := cfg.NotificationHandler
			r.Post("/", h.CreateNotification)
			r.Get("/{id}", h.ListNotifications)
			r.Get("/{id}/unread-count", h.UnreadCount)
			r.Put("/{id}/read", h.MarkRead)
			r.Put("/{id}/read-all", h.MarkAllRead)
			r.Delete("/{id}", h.DeleteNotification)
		})

		r.Route("/users", func(r chi.Router) {
			h := cfg.UserHandler
			r.Group(func(r chi.Router) {
				if cfg.AuthRateLimit != nil {
					r.Use(cfg.AuthRateLimit)
				}
				r.Post("/register", h.Register)
				r.Post("/verify-otp", h.VerifyOTP)
				r.Post("/resend-otp", h.ResendOTP)
				r.Post("/login", h.Login)
			})
			r.Group(func(r chi.Router) {
				r.Use(cfg.AuthenticateMiddleware)
				r.Get("/{id}", h.GetProfile)
				r.Put("/{id}", h.UpdateProfile)
			})
		})
	})

	return r
}
