package user

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	appMiddleware "github.com/FACorreiaa/go-crowd-planner/app/middleware"
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
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return span, r.WithContext(ctx)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, op string, err error) {
	span.RecordError(err)
	if api.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "User request failed", slog.String("handler", op), slog.Any("error", err))
	}
	api.ServiceErrorResponse(w, r, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, span trace.Span, dst any) bool {
	if err := api.DecodeJSONBody(w, r, dst); err != nil {
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "Register", "/api/users/register")
	defer span.End()

	var req types.RegisterRequest
	if !h.decode(w, r, span, &req) {
		return
	}
	resp, created, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, span, "Register", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	api.WriteJSONResponse(w, r, status, resp)
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "VerifyOTP", "/api/users/verify-otp")
	defer span.End()

	var req types.VerifyOTPRequest
	if !h.decode(w, r, span, &req) {
		return
	}
	resp, err := h.service.VerifyOTP(r.Context(), req)
	if err != nil {
		h.fail(w, r, span, "VerifyOTP", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "ResendOTP", "/api/users/resend-otp")
	defer span.End()

	var req types.ResendOTPRequest
	if !h.decode(w, r, span, &req) {
		return
	}
	resp, err := h.service.ResendOTP(r.Context(), req)
	if err != nil {
		h.fail(w, r, span, "ResendOTP", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]any{"message": resp.Message, "userId": resp.UserID})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "Login", "/api/users/login")
	defer span.End()

	var req types.LoginRequest
	if !h.decode(w, r, span, &req) {
		return
	}
	resp, err := h.service.Login(r.Context(), req)
	var unverified *UnverifiedError
	switch {
	case errors.As(err, &unverified):
		api.WriteJSONResponse(w, r, http.StatusUnauthorized, map[string]any{
			"error":             unverified.Error(),
			"userId":            unverified.UserID,
			"needsVerification": true,
		})
		return
	case err != nil:
		h.fail(w, r, span, "Login", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetProfile", "/api/users/{id}")
	defer span.End()

	id, err := api.URLParamUUID(r, "id")
	if err != nil {
		h.fail(w, r, span, "GetProfile", err)
		return
	}
	callerID, _ := appMiddleware.GetUserIDFromContext(r.Context())
	profile, err := h.service.GetProfile(r.Context(), callerID, id)
	if err != nil {
		h.fail(w, r, span, "GetProfile", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "UpdateProfile", "/api/users/{id}")
	defer span.End()

	id, err := api.URLParamUUID(r, "id")
	if err != nil {
		h.fail(w, r, span, "UpdateProfile", err)
		return
	}
	var req types.UpdateProfileRequest
	if !h.decode(w, r, span, &req) {
		return
	}
	callerID, _ := appMiddleware.GetUserIDFromContext(r.Context())
	profile, err := h.service.UpdateProfile(r.Context(), callerID, id, req)
	if err != nil {
		h.fail(w, r, span, "UpdateProfile", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}
