package itinerary

import (
	"log/slog"
	"net/http"

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

func handlerSpan(r *http.Request, name, route string) (trace.Span, *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return span, r.WithContext(ctx)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, op string, err error) {
	span.RecordError(err)
	if api.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Itinerary request failed", slog.String("handler", op), slog.Any("error", err))
	}
	api.ServiceErrorResponse(w, r, err)
}

func (h *Handler) CreateItinerary(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "CreateItinerary", "/api/itinerary")
	defer span.End()

	var req types.CreateItineraryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	it, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, span, "CreateItinerary", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, it)
}

func (h *Handler) ListUserItineraries(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "ListUserItineraries", "/api/itinerary/user/{userId}")
	defer span.End()

	userID, err := api.URLParamUUID(r, "userId")
	if err != nil {
		h.fail(w, r, span, "ListUserItineraries", err)
		return
	}
	list, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, span, "ListUserItineraries", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, list)
}

func (h *Handler) GetItinerary(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetItinerary", "/api/itinerary/{id}")
	defer span.End()

	id, err := api.URLParamUUID(r, "id")
	if err != nil {
		h.fail(w, r, span, "GetItinerary", err)
		return
	}
	it, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, span, "GetItinerary", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, it)
}

// ReplanItinerary reorders the day so the least crowded stops come first.
func (h *Handler) ReplanItinerary(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "ReplanItinerary", "/api/itinerary/{id}/replan")
	defer span.End()

	id, err := api.URLParamUUID(r, "id")
	if err != nil {
		h.fail(w, r, span, "ReplanItinerary", err)
		return
	}
	it, err := h.service.Replan(r.Context(), id)
	if err != nil {
		h.fail(w, r, span, "ReplanItinerary", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, it)
}

func (h *Handler) UpdateItinerary(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "UpdateItinerary", "/api/itinerary/{id}")
	defer span.End()

	id, err := api.URLParamUUID(r, "id")
	if err != nil {
		h.fail(w, r, span, "UpdateItinerary", err)
		return
	}
	var req types.UpdateItineraryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	it, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, span, "UpdateItinerary", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, it)
}

func (h *Handler) DeleteItinerary(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "DeleteItinerary", "/api/itinerary/{id}")
	defer span.End()

	id, err := api.URLParamUUID(r, "id")
	if err != nil {
		h.fail(w, r, span, "DeleteItinerary", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, span, "DeleteItinerary", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"message": "Itinerary deleted successfully"})
}
