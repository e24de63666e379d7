package crowd

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

const bestTimesHorizon = 24

// PlaceFinder resolves a place by id, wrapping api.ErrNotFound when absent.
type PlaceFinder interface {
	GetPlace(ctx context.Context, id uuid.UUID) (*types.Place, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Predict(ctx context.Context, req types.PredictCrowdRequest) (*types.CrowdPrediction, error)
	BestTimes(ctx context.Context, placeID uuid.UUID) (*types.BestTimes, error)
	History(ctx context.Context, placeID uuid.UUID, days int) ([]types.CrowdHistoryRecord, error)
	Record(ctx context.Context, req types.RecordCrowdRequest) (*types.CrowdHistoryRecord, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	places      PlaceFinder
	estimator   Estimator
	location    *time.Location
	fanOutLimit int
	now         func() time.Time
}

func NewServiceImpl(repo Repository, places PlaceFinder, estimator Estimator, location *time.Location, fanOutLimit int, logger *slog.Logger) *ServiceImpl {
	if location == nil {
		location = time.UTC
	}
	return &ServiceImpl{
		logger:      logger,
		repo:        repo,
		places:      places,
		estimator:   estimator,
		location:    location,
		fanOutLimit: fanOutLimit,
		now:         time.Now,
	}
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDateTime accepts RFC 3339 and the common zone-less layouts, the latter read in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, api.Errorf(api.ErrBadRequest, "invalid dateTime %q", s)
}

func (s *ServiceImpl) Predict(ctx context.Context, req types.PredictCrowdRequest) (*types.CrowdPrediction, error) {
	if req.PlaceID == "" || req.DateTime == "" {
		return nil, api.Errorf(api.ErrBadRequest, "placeId and dateTime are required")
	}
	placeID, err := uuid.Parse(req.PlaceID)
	if err != nil {
		return nil, api.Errorf(api.ErrBadRequest, "invalid placeId")
	}
	at, err := ParseDateTime(req.DateTime, s.location)
	if err != nil {
		return nil, err
	}
	if _, err := s.places.GetPlace(ctx, placeID); err != nil {
		return nil, err
	}

	est, err := s.estimator.Estimate(ctx, placeID, at)
	if err != nil {
		return nil, err
	}
	return &types.CrowdPrediction{
		PlaceID:       placeID,
		DateTime:      req.DateTime,
		CrowdEstimate: est,
	}, nil
}

func (s *ServiceImpl) BestTimes(ctx context.Context, placeID uuid.UUID) (*types.BestTimes, error) {
	if _, err := s.places.GetPlace(ctx, placeID); err != nil {
		return nil, err
	}

	local := s.now().In(s.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, s.location)
	queries := make([]Query, bestTimesHorizon)
	for i := range queries {
		queries[i] = Query{PlaceID: placeID, At: start.Add(time.Duration(i) * time.Hour)}
	}

	all := make([]types.TimedEstimate, 0, bestTimesHorizon)
	for i, o := range EstimateAll(ctx, s.estimator, s.fanOutLimit, queries) {
		if o.Err != nil {
			return nil, o.Err
		}
		all = append(all, types.TimedEstimate{Time: queries[i].At, CrowdEstimate: o.Estimate})
	}

	byScore := slices.Clone(all)
	slices.SortStableFunc(byScore, func(a, b types.TimedEstimate) int { return a.Score - b.Score })

	best := slices.Clone(byScore[:3])
	avoid := slices.Clone(byScore[len(byScore)-3:])
	slices.Reverse(avoid)

	return &types.BestTimes{
		PlaceID:        placeID,
		BestTimes:      best,
		AvoidTimes:     avoid,
		AllPredictions: all,
	}, nil
}

func (s *ServiceImpl) History(ctx context.Context, placeID uuid.UUID, days int) ([]types.CrowdHistoryRecord, error) {
	if days <= 0 {
		days = 7
	}
	since := s.now().AddDate(0, 0, -days)
	return s.repo.ListSince(ctx, placeID, since)
}

var slotPattern = regexp.MustCompile(`^(\d{1,2}):00$`)

// NormalizeSlot turns "09:00" into "9:00", the form the estimator looks up.
func NormalizeSlot(slot string) (string, error) {
	m := slotPattern.FindStringSubmatch(strings.TrimSpace(slot))
	if m == nil {
		return "", api.Errorf(api.ErrBadRequest, "timeSlot must look like H:00")
	}
	h, _ := strconv.Atoi(m[1])
	if h > 23 {
		return "", api.Errorf(api.ErrBadRequest, "timeSlot hour out of range")
	}
	return fmt.Sprintf("%d:00", h), nil
}

func (s *ServiceImpl) Record(ctx context.Context, req types.RecordCrowdRequest) (*types.CrowdHistoryRecord, error) {
	placeID, err := uuid.Parse(req.PlaceID)
	if err != nil {
		return nil, api.Errorf(api.ErrBadRequest, "valid placeId is required")
	}
	if !types.ValidDay(req.Day) {
		return nil, api.Errorf(api.ErrBadRequest, "day must be a weekday name")
	}
	slot, err := NormalizeSlot(req.TimeSlot)
	if err != nil {
		return nil, err
	}
	if req.CrowdScore == nil || *req.CrowdScore < 0 || *req.CrowdScore > 100 {
		return nil, api.Errorf(api.ErrBadRequest, "crowdScore between 0 and 100 is required")
	}
	if _, err := s.places.GetPlace(ctx, placeID); err != nil {
		return nil, err
	}

	recordedAt := s.now()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}
	rec := types.CrowdHistoryRecord{
		PlaceID:    placeID,
		Day:        req.Day,
		TimeSlot:   slot,
		CrowdScore: *req.CrowdScore,
		CrowdLevel: types.LevelFor(*req.CrowdScore),
		Weather:    req.Weather,
		Season:     req.Season,
		RecordedAt: recordedAt,
	}
	return s.repo.Save(ctx, rec)
}
