package place

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
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

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, op string, err error) {
	span.RecordError(err)
	if api.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Place request failed", slog.String("handler", op), slog.Any("error", err))
	}
	api.ServiceErrorResponse(w, r, err)
}

func handlerSpan(r *http.Request, name, route string) (trace.Span, *http.Request) {
	ctx, span := otel.Tracer("PlaceHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return span, r.WithContext(ctx)
}

// GetPlacesByCity lists a city's places, most popular first.
func (h *Handler) GetPlacesByCity(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetPlacesByCity", "/api/places/city/{city}")
	defer span.End()

	city := chi.URLParam(r, "city")
	places, err := h.service.ListByCity(r.Context(), city)
	if err != nil {
		h.fail(w, r, span, "GetPlacesByCity", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlaceList{City: city, Count: len(places), Places: places})
}

func (h *Handler) GetPlacesByCategory(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetPlacesByCategory", "/api/places/city/{city}/category/{category}")
	defer span.End()

	city, category := chi.URLParam(r, "city"), chi.URLParam(r, "category")
	places, err := h.service.ByCategory(r.Context(), city, category)
	if err != nil {
		h.fail(w, r, span, "GetPlacesByCategory", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlaceList{City: city, Category: category, Count: len(places), Places: places})
}

func (h *Handler) GetPlacesByTags(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetPlacesByTags", "/api/places/city/{city}/tags")
	defer span.End()

	city := chi.URLParam(r, "city")
	tags := api.SplitCSV(r.URL.Query().Get("tags"))
	places, err := h.service.ByTags(r.Context(), city, tags)
	if err != nil {
		h.fail(w, r, span, "GetPlacesByTags", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlaceList{City: city, Tags: tags, Count: len(places), Places: places})
}

func (h *Handler) GetPlacesByBudget(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetPlacesByBudget", "/api/places/city/{city}/budget/{budget}")
	defer span.End()

	city, budget := chi.URLParam(r, "city"), chi.URLParam(r, "budget")
	places, err := h.service.ByBudget(r.Context(), city, budget)
	if err != nil {
		h.fail(w, r, span, "GetPlacesByBudget", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlaceList{City: city, Budget: budget, Count: len(places), Places: places})
}

func (h *Handler) GetPlacesByCrowdLevel(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetPlacesByCrowdLevel", "/api/places/city/{city}/crowd/{level}")
	defer span.End()

	city, level := chi.URLParam(r, "city"), chi.URLParam(r, "level")
	slot := r.URL.Query().Get("timeSlot")
	places, err := h.service.ByCrowdLevel(r.Context(), city, level, slot)
	if err != nil {
		h.fail(w, r, span, "GetPlacesByCrowdLevel", err)
		return
	}
	if slot == "" {
		slot = defaultCrowdSlot
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlaceList{
		City: city, CrowdLevel: level, TimeSlot: slot, Count: len(places), Places: places,
	})
}

func (h *Handler) GetPopularPlaces(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetPopularPlaces", "/api/places/city/{city}/popular")
	defer span.End()

	city := chi.URLParam(r, "city")
	limit := api.QueryInt(r, "limit", defaultPopular)
	if limit == 0 {
		limit = defaultPopular
	}
	places, err := h.service.Popular(r.Context(), city, limit)
	if err != nil {
		h.fail(w, r, span, "GetPopularPlaces", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlaceList{City: city, Limit: limit, Count: len(places), Places: places})
}

func (h *Handler) GetAllCities(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetAllCities", "/api/places/cities/all")
	defer span.End()

	cities, err := h.service.AllCities(r.Context())
	if err != nil {
		h.fail(w, r, span, "GetAllCities", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.CityList{TotalCities: len(cities), Cities: cities})
}

func (h *Handler) GetCityCategories(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetCityCategories", "/api/places/city/{city}/categories")
	defer span.End()

	city := chi.URLParam(r, "city")
	cats, err := h.service.CityCategories(r.Context(), city)
	if err != nil {
		h.fail(w, r, span, "GetCityCategories", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.CityCategories{City: city, Categories: cats})
}

func (h *Handler) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "SearchPlaces", "/api/places/search")
	defer span.End()

	keyword, city := r.URL.Query().Get("keyword"), r.URL.Query().Get("city")
	places, err := h.service.Search(r.Context(), keyword, city)
	if err != nil {
		h.fail(w, r, span, "SearchPlaces", err)
		return
	}
	if city == "" {
		city = "All"
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlaceList{Keyword: keyword, City: city, Count: len(places), Places: places})
}

func (h *Handler) AdvancedFilter(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "AdvancedFilter", "/api/places/filter/advanced")
	defer span.End()

	q := r.URL.Query()
	filter := types.PlaceFilter{
		City:     q.Get("city"),
		Category: q.Get("category"),
		Tags:     api.SplitCSV(q.Get("tags")),
		Budget:   q.Get("budget"),
	}
	var err error
	if filter.MinRating, err = api.QueryFloat(r, "minRating"); err != nil {
		h.fail(w, r, span, "AdvancedFilter", err)
		return
	}
	if filter.MaxPrice, err = api.QueryFloat(r, "maxPrice"); err != nil {
		h.fail(w, r, span, "AdvancedFilter", err)
		return
	}

	places, err := h.service.Filter(r.Context(), filter)
	if err != nil {
		h.fail(w, r, span, "AdvancedFilter", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlaceList{AppliedFilters: &filter, Count: len(places), Places: places})
}

func (h *Handler) GetPlace(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "GetPlace", "/api/places/{id}")
	defer span.End()

	id, err := api.URLParamUUID(r, "id")
	if err != nil {
		h.fail(w, r, span, "GetPlace", err)
		return
	}
	p, err := h.service.GetPlace(r.Context(), id)
	if err != nil {
		h.fail(w, r, span, "GetPlace", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

func (h *Handler) CreatePlace(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "CreatePlace", "/api/places")
	defer span.End()

	var p types.Place
	if err := api.DecodeJSONBody(w, r, &p); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		h.fail(w, r, span, "CreatePlace", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

func (h *Handler) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "UpdatePlace", "/api/places/{id}")
	defer span.End()

	id, err := api.URLParamUUID(r, "id")
	if err != nil {
		h.fail(w, r, span, "UpdatePlace", err)
		return
	}
	var p types.Place
	if err := api.DecodeJSONBody(w, r, &p); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.service.Update(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, span, "UpdatePlace", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, updated)
}

func (h *Handler) DeletePlace(w http.ResponseWriter, r *http.Request) {
	span, r := handlerSpan(r, "DeletePlace", "/api/places/{id}")
	defer span.End()

	id, err := api.URLParamUUID(r, "id")
	if err != nil {
		h.fail(w, r, span, "DeletePlace", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, span, "DeletePlace", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"message": "Place deleted successfully"})
}
