package crowd

import (
	"context"
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

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindRecord(ctx context.Context, placeID uuid.UUID, day, timeSlot string) (*types.CrowdHistoryRecord, error) {
	args := m.Called(ctx, placeID, day, timeSlot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CrowdHistoryRecord), args.Error(1)
}

func (m *MockRepository) ListSince(ctx context.Context, placeID uuid.UUID, since time.Time) ([]types.CrowdHistoryRecord, error) {
	args := m.Called(ctx, placeID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CrowdHistoryRecord), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, rec types.CrowdHistoryRecord) (*types.CrowdHistoryRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CrowdHistoryRecord), args.Error(1)
}

type MockPlaceFinder struct {
	mock.Mock
}

func (m *MockPlaceFinder) GetPlace(ctx context.Context, id uuid.UUID) (*types.Place, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Place), args.Error(1)
}

func setupService(est Estimator) (*ServiceImpl, *MockRepository, *MockPlaceFinder) {
	repo := new(MockRepository)
	places := new(MockPlaceFinder)
	return NewServiceImpl(repo, places, est, time.UTC, 4, testLogger()), repo, places
}

func TestPredict(t *testing.T) {
	placeID := uuid.New()
	fixed := estimatorFunc(func(ctx context.Context, id uuid.UUID, at time.Time) (types.CrowdEstimate, error) {
		return types.CrowdEstimate{Score: at.Hour(), Level: types.LevelFor(at.Hour()), Source: types.SourceModel}, nil
	})

	t.Run("success echoes dateTime", func(t *testing.T) {
		svc, _, places := setupService(fixed)
		places.On("GetPlace", mock.Anything, placeID).Return(&types.Place{ID: placeID}, nil).Once()

		got, err := svc.Predict(context.Background(), types.PredictCrowdRequest{PlaceID: placeID.String(), DateTime: "2025-06-02T18:45"})
		require.NoError(t, err)
		assert.Equal(t, placeID, got.PlaceID)
		assert.Equal(t, "2025-06-02T18:45", got.DateTime)
		assert.Equal(t, 18, got.Score)
		assert.Equal(t, types.SourceModel, got.Source)
		places.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc, _, _ := setupService(fixed)
		_, err := svc.Predict(context.Background(), types.PredictCrowdRequest{PlaceID: placeID.String()})
		assert.ErrorIs(t, err, api.ErrBadRequest)
	})

	t.Run("unparsable dateTime", func(t *testing.T) {
		svc, _, _ := setupService(fixed)
		_, err := svc.Predict(context.Background(), types.PredictCrowdRequest{PlaceID: placeID.String(), DateTime: "tomorrow"})
		assert.ErrorIs(t, err, api.ErrBadRequest)
	})

	t.Run("unknown place", func(t *testing.T) {
		svc, _, places := setupService(fixed)
		places.On("GetPlace", mock.Anything, placeID).Return(nil, fmt.Errorf("place: %w", api.ErrNotFound)).Once()
		_, err := svc.Predict(context.Background(), types.PredictCrowdRequest{PlaceID: placeID.String(), DateTime: "2025-06-02"})
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestBestTimes(t *testing.T) {
	placeID := uuid.New()
	// Score by hour: quiet at 3..5, busiest at 18..20.
	scores := map[int]int{3: 2, 4: 1, 5: 3, 18: 99, 19: 97, 20: 98}
	est := estimatorFunc(func(ctx context.Context, id uuid.UUID, at time.Time) (types.CrowdEstimate, error) {
		s, ok := scores[at.Hour()]
		if !ok {
			s = 50
		}
		return types.CrowdEstimate{Score: s, Level: types.LevelFor(s), Source: types.SourceModel}, nil
	})

	svc, _, places := setupService(est)
	svc.now = func() time.Time { return time.Date(2025, 6, 2, 9, 17, 0, 0, time.UTC) }
	places.On("GetPlace", mock.Anything, placeID).Return(&types.Place{ID: placeID}, nil).Once()

	got, err := svc.BestTimes(context.Background(), placeID)
	require.NoError(t, err)

	require.Len(t, got.AllPredictions, 24)
	for i := 1; i < len(got.AllPredictions); i++ {
		assert.True(t, got.AllPredictions[i].Time.After(got.AllPredictions[i-1].Time), "predictions must be chronological")
	}
	assert.Equal(t, 9, got.AllPredictions[0].Time.Hour())

	hours := func(ts []types.TimedEstimate) []int {
		out := make([]int, len(ts))
		for i, te := range ts {
			out[i] = te.Time.Hour()
		}
		return out
	}
	assert.Equal(t, []int{4, 3, 5}, hours(got.BestTimes))
	assert.Equal(t, []int{18, 20, 19}, hours(got.AvoidTimes))
}

func TestBestTimesHalfHourZone(t *testing.T) {
	placeID := uuid.New()
	ist := time.FixedZone("IST", 5*3600+30*60)
	est := estimatorFunc(func(ctx context.Context, id uuid.UUID, at time.Time) (types.CrowdEstimate, error) {
		return types.CrowdEstimate{Score: 50, Level: types.CrowdMedium, Source: types.SourceModel}, nil
	})
	places := new(MockPlaceFinder)
	svc := NewServiceImpl(new(MockRepository), places, est, ist, 4, testLogger())
	// 09:17 UTC is 14:47 in IST
	svc.now = func() time.Time { return time.Date(2025, 6, 2, 9, 17, 0, 0, time.UTC) }
	places.On("GetPlace", mock.Anything, placeID).Return(&types.Place{ID: placeID}, nil).Once()

	got, err := svc.BestTimes(context.Background(), placeID)
	require.NoError(t, err)
	require.Len(t, got.AllPredictions, 24)
	first := got.AllPredictions[0].Time.In(ist)
	assert.Equal(t, 14, first.Hour())
	for _, te := range got.AllPredictions {
		assert.Zero(t, te.Time.In(ist).Minute(), "slot must start on the local hour")
	}
}

func TestRecord(t *testing.T) {
	placeID := uuid.New()
	score := func(v int) *int { return &v }

	t.Run("level recomputed and slot normalised", func(t *testing.T) {
		svc, repo, places := setupService(nil)
		places.On("GetPlace", mock.Anything, placeID).Return(&types.Place{ID: placeID}, nil).Once()
		repo.On("Save", mock.Anything, mock.MatchedBy(func(rec types.CrowdHistoryRecord) bool {
			return rec.CrowdLevel == types.CrowdHigh && rec.TimeSlot == "9:00" && rec.Day == "Friday"
		})).Return(&types.CrowdHistoryRecord{ID: uuid.New(), CrowdLevel: types.CrowdHigh}, nil).Once()

		rec, err := svc.Record(context.Background(), types.RecordCrowdRequest{
			PlaceID: placeID.String(), Day: "Friday", TimeSlot: "09:00", CrowdScore: score(70),
		})
		require.NoError(t, err)
		assert.Equal(t, types.CrowdHigh, rec.CrowdLevel)
		repo.AssertExpectations(t)
	})

	invalid := []struct {
		name string
		req  types.RecordCrowdRequest
	}{
		{"bad place id", types.RecordCrowdRequest{PlaceID: "x", Day: "Monday", TimeSlot: "9:00", CrowdScore: score(1)}},
		{"bad day", types.RecordCrowdRequest{PlaceID: placeID.String(), Day: "Funday", TimeSlot: "9:00", CrowdScore: score(1)}},
		{"bad slot", types.RecordCrowdRequest{PlaceID: placeID.String(), Day: "Monday", TimeSlot: "morning", CrowdScore: score(1)}},
		{"hour out of range", types.RecordCrowdRequest{PlaceID: placeID.String(), Day: "Monday", TimeSlot: "25:00", CrowdScore: score(1)}},
		{"missing score", types.RecordCrowdRequest{PlaceID: placeID.String(), Day: "Monday", TimeSlot: "9:00"}},
		{"score too high", types.RecordCrowdRequest{PlaceID: placeID.String(), Day: "Monday", TimeSlot: "9:00", CrowdScore: score(101)}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := setupService(nil)
			_, err := svc.Record(context.Background(), tt.req)
			assert.ErrorIs(t, err, api.ErrBadRequest)
			repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestHistory(t *testing.T) {
	placeID := uuid.New()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	svc, repo, _ := setupService(nil)
	svc.now = func() time.Time { return now }

	repo.On("ListSince", mock.Anything, placeID, now.AddDate(0, 0, -7)).Return([]types.CrowdHistoryRecord{}, nil).Once()
	_, err := svc.History(context.Background(), placeID, 0)
	require.NoError(t, err)

	repo.On("ListSince", mock.Anything, placeID, now.AddDate(0, 0, -3)).Return([]types.CrowdHistoryRecord{}, nil).Once()
	_, err = svc.History(context.Background(), placeID, 3)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
