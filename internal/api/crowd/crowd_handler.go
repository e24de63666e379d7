package crowd

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

// Predict estimates the crowd of one place at the requested date and time.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CrowdHandler").Start(r.Context(), "Predict", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/crowd/predict"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Predict"))

	var req types.PredictCrowdRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	prediction, err := h.service.Predict(ctx, req)
	if err != nil {
		span.RecordError(err)
		l.ErrorContext(ctx, "Crowd prediction failed", slog.Any("error", err))
		api.ServiceErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, prediction)
}

// BestTimes scans the next 24 hours for the quietest and busiest slots.
func (h *Handler) BestTimes(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CrowdHandler").Start(r.Context(), "BestTimes", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/crowd/best-times"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "BestTimes"))

	var req types.BestTimesRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.PlaceID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Place ID is required")
		return
	}
	placeID, err := uuid.Parse(req.PlaceID)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid place ID format")
		return
	}

	best, err := h.service.BestTimes(ctx, placeID)
	if err != nil {
		span.RecordError(err)
		l.ErrorContext(ctx, "Best times scan failed", slog.Any("error", err))
		api.ServiceErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, best)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CrowdHandler").Start(r.Context(), "History", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/crowd/history"),
	))
	defer span.End()

	raw := r.URL.Query().Get("placeId")
	if raw == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Place ID is required")
		return
	}
	placeID, err := uuid.Parse(raw)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid place ID format")
		return
	}

	records, err := h.service.History(ctx, placeID, api.QueryInt(r, "days", 7))
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "Failed to load crowd history", slog.Any("error", err))
		api.ServiceErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, records)
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CrowdHandler").Start(r.Context(), "Record", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/crowd/record"),
	))
	defer span.End()

	var req types.RecordCrowdRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.service.Record(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "Failed to record crowd observation", slog.Any("error", err))
		api.ServiceErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, rec)
}
