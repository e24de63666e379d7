package crowd

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

type MockHistoryLookup struct {
	mock.Mock
}

func (m *MockHistoryLookup) FindRecord(ctx context.Context, placeID uuid.UUID, day, timeSlot string) (*types.CrowdHistoryRecord, error) {
	args := m.Called(ctx, placeID, day, timeSlot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CrowdHistoryRecord), args.Error(1)
}

type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(ctx context.Context, f Features) (*Prediction, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Prediction), args.Error(1)
}

var notFound = fmt.Errorf("no crowd history: %w", api.ErrNotFound)

func TestEstimate(t *testing.T) {
	placeID := uuid.New()
	// 2025-06-02 is a Monday.
	monday1830 := time.Date(2025, 6, 2, 18, 30, 0, 0, time.UTC)

	t.Run("historical record wins", func(t *testing.T) {
		history := new(MockHistoryLookup)
		predictor := new(MockPredictor)
		history.On("FindRecord", mock.Anything, placeID, "Monday", "18:00").
			Return(&types.CrowdHistoryRecord{PlaceID: placeID, Day: "Monday", TimeSlot: "18:00", CrowdScore: 85}, nil).Once()

		est, err := NewEstimator(history, predictor, testLogger()).Estimate(context.Background(), placeID, monday1830)
		require.NoError(t, err)
		assert.Equal(t, types.CrowdEstimate{Score: 85, Level: types.CrowdVeryHigh, Source: types.SourceHistorical}, est)
		history.AssertExpectations(t)
		predictor.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
	})

	t.Run("model when no history", func(t *testing.T) {
		history := new(MockHistoryLookup)
		predictor := new(MockPredictor)
		history.On("FindRecord", mock.Anything, placeID, "Monday", "18:00").Return(nil, notFound).Once()
		predictor.On("Predict", mock.Anything, Features{Hour: 18, Weekday: 1}).
			Return(&Prediction{Score: 30, Level: types.CrowdMedium}, nil).Once()

		est, err := NewEstimator(history, predictor, testLogger()).Estimate(context.Background(), placeID, monday1830)
		require.NoError(t, err)
		assert.Equal(t, types.CrowdEstimate{Score: 30, Level: types.CrowdMedium, Source: types.SourceModel}, est)
		history.AssertExpectations(t)
		predictor.AssertExpectations(t)
	})

	t.Run("fallback when predictor fails", func(t *testing.T) {
		history := new(MockHistoryLookup)
		predictor := new(MockPredictor)
		history.On("FindRecord", mock.Anything, placeID, "Monday", "18:00").Return(nil, notFound).Once()
		predictor.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

		est, err := NewEstimator(history, predictor, testLogger()).Estimate(context.Background(), placeID, monday1830)
		require.NoError(t, err)
		assert.Equal(t, types.SourceFallback, est.Source)
		assert.GreaterOrEqual(t, est.Score, 0)
		assert.Less(t, est.Score, 100)
		assert.Equal(t, types.LevelFor(est.Score), est.Level)
	})

	t.Run("fallback uses injected source", func(t *testing.T) {
		history := new(MockHistoryLookup)
		predictor := new(MockPredictor)
		history.On("FindRecord", mock.Anything, placeID, mock.Anything, mock.Anything).Return(nil, notFound)
		predictor.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		e := NewEstimator(history, predictor, testLogger(), WithRandom(func() int { return 60 }))
		est, err := e.Estimate(context.Background(), placeID, monday1830)
		require.NoError(t, err)
		assert.Equal(t, types.CrowdEstimate{Score: 60, Level: types.CrowdHigh, Source: types.SourceFallback}, est)
	})

	t.Run("history error falls through to model", func(t *testing.T) {
		history := new(MockHistoryLookup)
		predictor := new(MockPredictor)
		history.On("FindRecord", mock.Anything, placeID, "Monday", "18:00").Return(nil, errors.New("db down")).Once()
		predictor.On("Predict", mock.Anything, mock.Anything).Return(&Prediction{Score: 20, Level: types.CrowdLow}, nil).Once()

		est, err := NewEstimator(history, predictor, testLogger()).Estimate(context.Background(), placeID, monday1830)
		require.NoError(t, err)
		assert.Equal(t, types.SourceModel, est.Source)
	})

	t.Run("day and slot follow the configured location", func(t *testing.T) {
		history := new(MockHistoryLookup)
		loc := time.FixedZone("UTC+5:30", 5*3600+1800)
		// 20:00 UTC Monday is 01:30 Tuesday at +05:30.
		at := time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC)
		history.On("FindRecord", mock.Anything, placeID, "Tuesday", "1:00").
			Return(&types.CrowdHistoryRecord{CrowdScore: 5}, nil).Once()

		est, err := NewEstimator(history, nil, testLogger(), WithLocation(loc)).Estimate(context.Background(), placeID, at)
		require.NoError(t, err)
		assert.Equal(t, types.CrowdLow, est.Level)
		history.AssertExpectations(t)
	})

	t.Run("cancelled context is the only error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewEstimator(new(MockHistoryLookup), new(MockPredictor), testLogger()).Estimate(ctx, placeID, monday1830)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDaySlot(t *testing.T) {
	day, slot := DaySlot(time.Date(2025, 6, 8, 7, 59, 0, 0, time.UTC))
	assert.Equal(t, "Sunday", day)
	assert.Equal(t, "7:00", slot)
}

type estimatorFunc func(ctx context.Context, placeID uuid.UUID, at time.Time) (types.CrowdEstimate, error)

func (f estimatorFunc) Estimate(ctx context.Context, placeID uuid.UUID, at time.Time) (types.CrowdEstimate, error) {
	return f(ctx, placeID, at)
}

func TestEstimateAll(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	failing := ids[1]
	est := estimatorFunc(func(ctx context.Context, placeID uuid.UUID, at time.Time) (types.CrowdEstimate, error) {
		if placeID == failing {
			return types.CrowdEstimate{}, errors.New("boom")
		}
		return types.CrowdEstimate{Score: at.Hour(), Source: types.SourceModel}, nil
	})

	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	queries := []Query{
		{PlaceID: ids[0], At: base},
		{PlaceID: ids[1], At: base.Add(time.Hour)},
		{PlaceID: ids[2], At: base.Add(2 * time.Hour)},
	}

	out := EstimateAll(context.Background(), est, 2, queries)
	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, 10, out[0].Estimate.Score)
	assert.Error(t, out[1].Err)
	assert.NoError(t, out[2].Err)
	assert.Equal(t, 12, out[2].Estimate.Score)
}
