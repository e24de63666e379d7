package itinerary

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-crowd-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/crowd"
	"github.com/FACorreiaa/go-crowd-planner/internal/push"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

const (
	EventItineraryUpdated = "itinerary-updated"
	ReplanMessage         = "Your itinerary has been updated! Visit low-crowd places first."

	firstSlotHour       = 10
	unknownCrowdScore   = 50
	defaultVisitMinutes = 60
)

type PlaceResolver interface {
	GetPlacesByIDs(ctx context.Context, ids []uuid.UUID) ([]types.Place, error)
}

type NotificationSaver interface {
	Save(ctx context.Context, n types.Notification) (*types.Notification, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Create(ctx context.Context, req types.CreateItineraryRequest) (*types.Itinerary, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Itinerary, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error)
	Update(ctx context.Context, id uuid.UUID, req types.UpdateItineraryRequest) (*types.Itinerary, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Replan re-estimates every stop and reorders the day quietest first.
	Replan(ctx context.Context, id uuid.UUID) (*types.Itinerary, error)
}

type ServiceImpl struct {
	logger        *slog.Logger
	repo          Repository
	places        PlaceResolver
	estimator     crowd.Estimator
	notifications NotificationSaver
	publisher     push.Publisher
	location      *time.Location
	fanOutLimit   int
	now           func() time.Time
}

func NewServiceImpl(
	repo Repository,
	places PlaceResolver,
	estimator crowd.Estimator,
	notifications NotificationSaver,
	publisher push.Publisher,
	location *time.Location,
	fanOutLimit int,
	logger *slog.Logger,
) *ServiceImpl {
	if location == nil {
		location = time.UTC
	}
	return &ServiceImpl{
		logger:        logger,
		repo:          repo,
		places:        places,
		estimator:     estimator,
		notifications: notifications,
		publisher:     publisher,
		location:      location,
		fanOutLimit:   fanOutLimit,
		now:           time.Now,
	}
}

// SlotTime formats the i-th (0-based) stop of the day.
func SlotTime(i int) string {
	return fmt.Sprintf("%d:00", firstSlotHour+i)
}

// plannedHour reads the hour of an "H:MM" planned time.
func plannedHour(planned string, fallback int) int {
	h, _, ok := strings.Cut(planned, ":")
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(h)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func (s *ServiceImpl) atHour(date time.Time, hour int) time.Time {
	d := date.In(s.location)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, s.location)
}

func (s *ServiceImpl) parseDate(raw string) (time.Time, error) {
	t, err := crowd.ParseDateTime(raw, s.location)
	if err != nil {
		return time.Time{}, api.Errorf(api.ErrBadRequest, "invalid date %q", raw)
	}
	t = t.In(s.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location), nil
}

// resolvePlaces loads every referenced place; a missing one is a not-found error.
func (s *ServiceImpl) resolvePlaces(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]types.Place, error) {
	places, err := s.places.GetPlacesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]types.Place, len(places))
	for _, p := range places {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, api.Errorf(api.ErrNotFound, "Place not found: %s", id)
		}
	}
	return byID, nil
}

// attachPlaces fills entry.Place for reads. Places deleted since are left nil.
func (s *ServiceImpl) attachPlaces(ctx context.Context, its ...*types.Itinerary) error {
	var ids []uuid.UUID
	for _, it := range its {
		for _, e := range it.Entries {
			ids = append(ids, e.PlaceID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	places, err := s.places.GetPlacesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]types.Place, len(places))
	for _, p := range places {
		byID[p.ID] = p
	}
	for _, it := range its {
		for i := range it.Entries {
			if p, ok := byID[it.Entries[i].PlaceID]; ok {
				it.Entries[i].Place = &p
			}
		}
	}
	return nil
}

func (s *ServiceImpl) Create(ctx context.Context, req types.CreateItineraryRequest) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Create")
	defer span.End()

	if req.UserID == "" || req.Date == "" || len(req.PlaceIDs) == 0 {
		return nil, api.Errorf(api.ErrBadRequest, "userId, date, and placeIds are required")
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, api.Errorf(api.ErrBadRequest, "invalid userId")
	}
	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(req.PlaceIDs))
	for i, raw := range req.PlaceIDs {
		if ids[i], err = uuid.Parse(raw); err != nil {
			return nil, api.Errorf(api.ErrBadRequest, "invalid place id %q", raw)
		}
	}
	places, err := s.resolvePlaces(ctx, ids)
	if err != nil {
		return nil, err
	}

	queries := make([]crowd.Query, len(ids))
	for i, id := range ids {
		queries[i] = crowd.Query{PlaceID: id, At: s.atHour(date, firstSlotHour+i)}
	}
	outcomes := crowd.EstimateAll(ctx, s.estimator, s.fanOutLimit, queries)

	entries := make([]types.ItineraryEntry, len(ids))
	for i, id := range ids {
		level, score := types.CrowdUnknown, unknownCrowdScore
		if outcomes[i].Err == nil {
			level, score = outcomes[i].Estimate.Level, outcomes[i].Estimate.Score
		}
		duration := places[id].AvgVisitDuration
		if duration <= 0 {
			duration = defaultVisitMinutes
		}
		entries[i] = types.ItineraryEntry{
			PlaceID:        id,
			PlannedTime:    SlotTime(i),
			PredictedCrowd: level,
			CrowdScore:     score,
			VisitDuration:  duration,
			Order:          i + 1,
		}
	}

	created, err := s.repo.Create(ctx, types.Itinerary{UserID: userID, Date: date, Entries: entries})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for i := range created.Entries {
		if p, ok := places[created.Entries[i].PlaceID]; ok {
			created.Entries[i].Place = &p
		}
	}
	return created, nil
}

func (s *ServiceImpl) Get(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachPlaces(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *ServiceImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ptrs := make([]*types.Itinerary, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	if err := s.attachPlaces(ctx, ptrs...); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *ServiceImpl) Update(ctx context.Context, id uuid.UUID, req types.UpdateItineraryRequest) (*types.Itinerary, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Date != nil {
		if it.Date, err = s.parseDate(*req.Date); err != nil {
			return nil, err
		}
	}
	if req.Entries != nil {
		ids := make([]uuid.UUID, len(req.Entries))
		for i, e := range req.Entries {
			if ids[i], err = uuid.Parse(e.PlaceID); err != nil {
				return nil, api.Errorf(api.ErrBadRequest, "invalid place id %q", e.PlaceID)
			}
		}
		places, err := s.resolvePlaces(ctx, ids)
		if err != nil {
			return nil, err
		}
		entries := make([]types.ItineraryEntry, len(req.Entries))
		for i, e := range req.Entries {
			entry := types.ItineraryEntry{
				PlaceID:        ids[i],
				PlannedTime:    e.PlannedTime,
				PredictedCrowd: types.CrowdUnknown,
				CrowdScore:     unknownCrowdScore,
				VisitDuration:  places[ids[i]].AvgVisitDuration,
				Order:          i + 1,
			}
			if entry.PlannedTime == "" {
				entry.PlannedTime = SlotTime(i)
			}
			if e.CrowdScore != nil {
				if *e.CrowdScore < 0 || *e.CrowdScore > 100 {
					return nil, api.Errorf(api.ErrBadRequest, "crowdScore must be between 0 and 100")
				}
				entry.CrowdScore = *e.CrowdScore
				entry.PredictedCrowd = types.LevelFor(*e.CrowdScore)
			}
			if lvl, ok := types.ParseCrowdLevel(e.PredictedCrowd); ok {
				entry.PredictedCrowd = lvl
			}
			if e.VisitDuration != nil && *e.VisitDuration > 0 {
				entry.VisitDuration = *e.VisitDuration
			}
			if entry.VisitDuration <= 0 {
				entry.VisitDuration = defaultVisitMinutes
			}
			entries[i] = entry
		}
		it.Entries = entries
	}
	it.LastUpdated = s.now()

	updated, err := s.repo.Update(ctx, *it)
	if err != nil {
		return nil, err
	}
	if err := s.attachPlaces(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *ServiceImpl) Replan(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Replan", trace.WithAttributes(
		attribute.String("itinerary.id", id.String()),
	))
	defer span.End()
	l := s.logger.With(slog.String("itinerary_id", id.String()))

	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	queries := make([]crowd.Query, len(it.Entries))
	for i, e := range it.Entries {
		queries[i] = crowd.Query{
			PlaceID: e.PlaceID,
			At:      s.atHour(it.Date, plannedHour(e.PlannedTime, firstSlotHour+i)),
		}
	}
	for i, o := range crowd.EstimateAll(ctx, s.estimator, s.fanOutLimit, queries) {
		if o.Err != nil {
			l.WarnContext(ctx, "Keeping previous crowd estimate", slog.Int("entry", i), slog.Any("error", o.Err))
			continue
		}
		it.Entries[i].CrowdScore = o.Estimate.Score
		it.Entries[i].PredictedCrowd = o.Estimate.Level
	}

	// Stable: equal scores keep their previous relative order.
	slices.SortStableFunc(it.Entries, func(a, b types.ItineraryEntry) int {
		return cmp.Compare(a.CrowdScore, b.CrowdScore)
	})
	for i := range it.Entries {
		it.Entries[i].PlannedTime = SlotTime(i)
		it.Entries[i].Order = i + 1
	}
	it.AutoReplanCount++
	it.LastUpdated = s.now()

	updated, err := s.repo.Update(ctx, *it)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	metrics.Get().ReplansTotal.Add(ctx, 1)

	itineraryID := updated.ID
	if _, err := s.notifications.Save(ctx, types.Notification{
		UserID:             updated.UserID,
		Message:            ReplanMessage,
		Type:               types.NotificationItineraryUpdate,
		RelatedItineraryID: &itineraryID,
	}); err != nil {
		l.ErrorContext(ctx, "Failed to store replan notification", slog.Any("error", err))
	}

	push.Notify(ctx, s.publisher, s.logger, push.UserRoom(updated.UserID.String()), EventItineraryUpdated, map[string]any{
		"itineraryId": updated.ID,
		"message":     ReplanMessage,
	})

	if err := s.attachPlaces(ctx, updated); err != nil {
		l.WarnContext(ctx, "Failed to resolve places after replan", slog.Any("error", err))
	}
	l.InfoContext(ctx, "Itinerary replanned", slog.Int("auto_replan_count", updated.AutoReplanCount))
	return updated, nil
}
