package notification

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

// Every route of this resource shares the {id} segment. It holds a user id
// for the per-user routes and a notification id elsewhere.
const idParam = "id"

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
	ctx, span := otel.Tracer("NotificationHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return span, r.WithContext(ctx)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, op string, err error) {
	span.RecordError(err)
	if api.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Notification request failed", slog.String("handler", op), slog.Any("error", err))
	}
	api.ServiceErrorResponse(w, r, err)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "ListNotifications", "/api/notifications/{userId}")
	defer span.End()

	userID, err := api.URLParamUUID(r, idParam)
	if err != nil {
		h.fail(w, r, span, "ListNotifications", err)
		return
	}
	page, err := h.service.List(r.Context(), userID, api.QueryInt(r, "limit", defaultPageSize), api.QueryInt(r, "skip", 0))
	if err != nil {
		h.fail(w, r, span, "ListNotifications", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, page)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "MarkRead", "/api/notifications/{id}/read")
	defer span.End()

	id, err := api.URLParamUUID(r, idParam)
	if err != nil {
		h.fail(w, r, span, "MarkRead", err)
		return
	}
	n, err := h.service.MarkRead(r.Context(), id)
	if err != nil {
		h.fail(w, r, span, "MarkRead", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, n)
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "MarkAllRead", "/api/notifications/{userId}/read-all")
	defer span.End()

	userID, err := api.URLParamUUID(r, idParam)
	if err != nil {
		h.fail(w, r, span, "MarkAllRead", err)
		return
	}
	if err := h.service.MarkAllRead(r.Context(), userID); err != nil {
		h.fail(w, r, span, "MarkAllRead", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"message": "All notifications marked as read"})
}

func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "CreateNotification", "/api/notifications")
	defer span.End()

	var req types.CreateNotificationRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, span, "CreateNotification", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, n)
}

func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "DeleteNotification", "/api/notifications/{id}")
	defer span.End()

	id, err := api.URLParamUUID(r, idParam)
	if err != nil {
		h.fail(w, r, span, "DeleteNotification", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, span, "DeleteNotification", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"message": "Notification deleted successfully"})
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "UnreadCount", "/api/notifications/{userId}/unread-count")
	defer span.End()

	userID, err := api.URLParamUUID(r, idParam)
	if err != nil {
		h.fail(w, r, span, "UnreadCount", err)
		return
	}
	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		h.fail(w, r, span, "UnreadCount", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]int{"unreadCount": count})
}
