package alternatives

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/crowd"
	"github.com/FACorreiaa/go-crowd-planner/internal/geo"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

// Ranking weights. Fixed policy, not configuration.
const (
	crowdWeight    = 0.6
	distanceWeight = 10.0
	maxResults     = 5

	DefaultRadiusKm       = 5.0
	DefaultNearbyRadiusKm = 2.0
)

// PlaceSource is the read side of the place store the ranker needs.
type PlaceSource interface {
	GetPlace(ctx context.Context, id uuid.UUID) (*types.Place, error)
	ListByCity(ctx context.Context, city string) ([]types.Place, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Alternatives(ctx context.Context, originID uuid.UUID, city string, radiusKm float64) (*types.AlternativesResult, error)
	Nearby(ctx context.Context, city string, origin types.Location, radiusKm float64) ([]types.NearbyPlace, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	places      PlaceSource
	estimator   crowd.Estimator
	fanOutLimit int
	now         func() time.Time
	randScore   func() int
}

func NewServiceImpl(places PlaceSource, estimator crowd.Estimator, fanOutLimit int, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		places:      places,
		estimator:   estimator,
		fanOutLimit: fanOutLimit,
		now:         time.Now,
		randScore:   func() int { return rand.IntN(100) },
	}
}

// RankScore orders candidates; lower is better.
func RankScore(crowdScore int, distanceKm float64) float64 {
	return float64(crowdScore)*crowdWeight + distanceKm*distanceWeight
}

type candidate struct {
	place    types.Place
	distance float64
}

func (s *ServiceImpl) Alternatives(ctx context.Context, originID uuid.UUID, city string, radiusKm float64) (*types.AlternativesResult, error) {
	ctx, span := otel.Tracer("AlternativesService").Start(ctx, "Alternatives", trace.WithAttributes(
		attribute.String("place.id", originID.String()),
		attribute.String("city", city),
	))
	defer span.End()

	if city == "" {
		return nil, api.Errorf(api.ErrBadRequest, "city is required")
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	origin, err := s.places.GetPlace(ctx, originID)
	if err != nil {
		return nil, err
	}

	cityPlaces, err := s.places.ListByCity(ctx, city)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list places in %s: %w", city, err)
	}

	var candidates []candidate
	for _, p := range cityPlaces {
		if p.ID == origin.ID {
			continue
		}
		d := geo.DistanceKm(origin.Location, p.Location)
		if d > radiusKm {
			continue
		}
		candidates = append(candidates, candidate{place: p, distance: d})
	}
	span.SetAttributes(attribute.Int("alternatives.candidates", len(candidates)))

	now := s.now()
	queries := make([]crowd.Query, len(candidates))
	for i, c := range candidates {
		queries[i] = crowd.Query{PlaceID: c.place.ID, At: now}
	}
	outcomes := crowd.EstimateAll(ctx, s.estimator, s.fanOutLimit, queries)

	alternatives := make([]types.Alternative, len(candidates))
	for i, c := range candidates {
		est := outcomes[i].Estimate
		if outcomes[i].Err != nil {
			score := s.randScore()
			est = types.CrowdEstimate{Score: score, Level: types.LevelFor(score), Source: types.SourceFallback}
			s.logger.WarnContext(ctx, "Estimate failed for candidate, using fallback score",
				slog.String("place_id", c.place.ID.String()), slog.Any("error", outcomes[i].Err))
		}
		alternatives[i] = types.Alternative{
			PlaceID:          c.place.ID,
			Name:             c.place.Name,
			Category:         c.place.Category,
			Distance:         roundTo(c.distance, 2),
			Rating:           c.place.Rating,
			CrowdScore:       est.Score,
			CrowdLevel:       est.Level,
			EntryFee:         c.place.EntryFee,
			AvgVisitDuration: c.place.AvgVisitDuration,
			Location:         c.place.Location,
		}
	}

	// Rank on the unrounded distance so the ordering matches the radius check.
	ranks := make([]float64, len(candidates))
	for i := range candidates {
		ranks[i] = RankScore(alternatives[i].CrowdScore, candidates[i].distance)
	}
	idx := make([]int, len(alternatives))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(ranks[a], ranks[b]) })
	if len(idx) > maxResults {
		idx = idx[:maxResults]
	}
	ranked := make([]types.Alternative, 0, len(idx))
	for _, i := range idx {
		ranked = append(ranked, alternatives[i])
	}

	return &types.AlternativesResult{
		OriginalPlace: origin,
		Alternatives:  ranked,
		City:          city,
	}, nil
}

func (s *ServiceImpl) Nearby(ctx context.Context, city string, origin types.Location, radiusKm float64) ([]types.NearbyPlace, error) {
	ctx, span := otel.Tracer("AlternativesService").Start(ctx, "Nearby", trace.WithAttributes(
		attribute.String("city", city),
	))
	defer span.End()

	if city == "" {
		return nil, api.Errorf(api.ErrBadRequest, "city is required")
	}
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}

	cityPlaces, err := s.places.ListByCity(ctx, city)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list places in %s: %w", city, err)
	}

	nearby := []types.NearbyPlace{}
	for _, p := range cityPlaces {
		d := geo.DistanceKm(origin, p.Location)
		if d <= radiusKm {
			nearby = append(nearby, types.NearbyPlace{Place: p, Distance: d})
		}
	}
	slices.SortStableFunc(nearby, func(a, b types.NearbyPlace) int { return cmp.Compare(a.Distance, b.Distance) })
	for i := range nearby {
		nearby[i].Distance = roundTo(nearby[i].Distance, 2)
	}
	return nearby, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
