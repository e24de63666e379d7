package crowd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-crowd-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

// HistoryLookup returns the most recent observation for a place, day and slot,
// or an error wrapping api.ErrNotFound.
type HistoryLookup interface {
	FindRecord(ctx context.Context, placeID uuid.UUID, day, timeSlot string) (*types.CrowdHistoryRecord, error)
}

// Estimator produces a crowd estimate for a place at a given instant.
// It only fails when ctx is done.
type Estimator interface {
	Estimate(ctx context.Context, placeID uuid.UUID, at time.Time) (types.CrowdEstimate, error)
}

type EstimatorImpl struct {
	history   HistoryLookup
	predictor Predictor
	location  *time.Location
	randScore func() int
	logger    *slog.Logger
}

var _ Estimator = (*EstimatorImpl)(nil)

type EstimatorOption func(*EstimatorImpl)

// WithLocation sets the zone used to derive day names and hour slots.
func WithLocation(loc *time.Location) EstimatorOption {
	return func(e *EstimatorImpl) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithRandom replaces the fallback score source. fn must return values in [0, 100).
func WithRandom(fn func() int) EstimatorOption {
	return func(e *EstimatorImpl) { e.randScore = fn }
}

func NewEstimator(history HistoryLookup, predictor Predictor, logger *slog.Logger, opts ...EstimatorOption) *EstimatorImpl {
	e := &EstimatorImpl{
		history:   history,
		predictor: predictor,
		location:  time.UTC,
		randScore: func() int { return rand.IntN(100) },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DaySlot returns the English weekday name and "H:00" slot of t.
func DaySlot(t time.Time) (string, string) {
	return t.Weekday().String(), fmt.Sprintf("%d:00", t.Hour())
}

func (e *EstimatorImpl) Estimate(ctx context.Context, placeID uuid.UUID, at time.Time) (types.CrowdEstimate, error) {
	ctx, span := otel.Tracer("CrowdEstimator").Start(ctx, "Estimate", trace.WithAttributes(
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return types.CrowdEstimate{}, err
	}

	local := at.In(e.location)
	day, slot := DaySlot(local)

	if e.history != nil {
		rec, err := e.history.FindRecord(ctx, placeID, day, slot)
		switch {
		case err == nil && rec != nil:
			return e.done(ctx, span, types.CrowdEstimate{
				Score:  rec.CrowdScore,
				Level:  types.LevelFor(rec.CrowdScore),
				Source: types.SourceHistorical,
			}), nil
		case err != nil && !errors.Is(err, api.ErrNotFound):
			if ctx.Err() != nil {
				return types.CrowdEstimate{}, ctx.Err()
			}
			e.logger.WarnContext(ctx, "Crowd history lookup failed",
				slog.String("place_id", placeID.String()), slog.Any("error", err))
		}
	}

	if e.predictor != nil {
		p, err := e.predictor.Predict(ctx, FeaturesAt(local))
		if err == nil {
			return e.done(ctx, span, types.CrowdEstimate{
				Score:  p.Score,
				Level:  p.Level,
				Source: types.SourceModel,
			}), nil
		}
		if ctx.Err() != nil {
			return types.CrowdEstimate{}, ctx.Err()
		}
		e.logger.WarnContext(ctx, "Crowd predictor unavailable, using fallback",
			slog.String("place_id", placeID.String()), slog.Any("error", err))
	}

	score := e.randScore()
	return e.done(ctx, span, types.CrowdEstimate{
		Score:  score,
		Level:  types.LevelFor(score),
		Source: types.SourceFallback,
	}), nil
}

func (e *EstimatorImpl) done(ctx context.Context, span trace.Span, est types.CrowdEstimate) types.CrowdEstimate {
	span.SetAttributes(
		attribute.String("crowd.source", string(est.Source)),
		attribute.Int("crowd.score", est.Score),
	)
	metrics.Get().CrowdEstimatesTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", string(est.Source))))
	return est
}

// Query is one (place, instant) pair to estimate.
type Query struct {
	PlaceID uuid.UUID
	At      time.Time
}

// Outcome holds the estimate for the Query at the same index.
type Outcome struct {
	Estimate types.CrowdEstimate
	Err      error
}

// EstimateAll runs the queries with at most limit estimates in flight.
// Outcomes keep query order; a failed query does not cancel the others.
func EstimateAll(ctx context.Context, est Estimator, limit int, queries []Query) []Outcome {
	out := make([]Outcome, len(queries))
	if limit <= 0 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, q := range queries {
		g.Go(func() error {
			e, err := est.Estimate(ctx, q.PlaceID, q.At)
			out[i] = Outcome{Estimate: e, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
