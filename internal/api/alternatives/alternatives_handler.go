package alternatives

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Alternatives suggests up to five quieter places close to the requested one.
func (h *Handler) Alternatives(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AlternativesHandler").Start(r.Context(), "Alternatives", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/places/alternatives"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Alternatives"))

	var req types.AlternativesRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.PlaceID == "" || req.City == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Place ID and city are required")
		return
	}
	placeID, err := uuid.Parse(req.PlaceID)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid place ID format")
		return
	}
	radius := DefaultRadiusKm
	if req.Radius != nil {
		radius = *req.Radius
	}

	result, err := h.service.Alternatives(ctx, placeID, req.City, radius)
	if err != nil {
		span.RecordError(err)
		l.ErrorContext(ctx, "Failed to rank alternatives", slog.Any("error", err))
		api.ServiceErrorResponse(w, r, err)
		return
	}

	l.DebugContext(ctx, "Alternatives ranked", slog.Int("count", len(result.Alternatives)))
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AlternativesHandler").Start(r.Context(), "Nearby", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/places/nearby"),
	))
	defer span.End()

	q := r.URL.Query()
	city := q.Get("city")
	lat, latErr := api.QueryFloat(r, "lat")
	lng, lngErr := api.QueryFloat(r, "lng")
	if lat == nil || lng == nil || city == "" || latErr != nil || lngErr != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "lat, lng, and city are required")
		return
	}
	radius, err := api.QueryFloat(r, "radius")
	if err != nil {
		api.ServiceErrorResponse(w, r, err)
		return
	}
	radiusKm := DefaultNearbyRadiusKm
	if radius != nil {
		radiusKm = *radius
	}

	nearby, err := h.service.Nearby(ctx, city, types.Location{Lat: *lat, Lng: *lng}, radiusKm)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "Failed to list nearby places", slog.Any("error", err))
		api.ServiceErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, nearby)
}
