package place

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

var placeCols = []string{
	"id", "name", "city", "state", "category", "tags", "description", "lat", "lng", "address",
	"open_time", "close_time", "avg_visit_duration", "entry_fee", "best_time_to_visit", "ideal_season",
	"rating", "popularity_score", "budget_range", "avg_cost", "nearby_transport", "recommended_for",
	"crowd_pattern", "images", "image_url", "facilities", "created_at",
}

func placeRow(rows *pgxmock.Rows, id uuid.UUID, name string, pattern any) *pgxmock.Rows {
	return rows.AddRow(
		id, name, "Mumbai", "Maharashtra", types.CategoryMonument, []string{"history"}, "desc",
		18.92, 72.83, "Apollo Bandar", "06:00", "22:00", 45, (*float64)(nil), []string{"morning"},
		[]string{"winter"}, 4.6, 95.0, "Low", 0.0, []string{"Bus"}, []string{"Families"},
		pattern, []string{}, "", []string{}, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	)
}

func newRepo(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRepository(pool, logger), pool
}

func TestRepositoryGetPlace(t *testing.T) {
	repo, pool := newRepo(t)
	id := uuid.New()

	pool.ExpectQuery("FROM places WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(placeRow(pgxmock.NewRows(placeCols), id, "Gateway of India",
			[]byte(`{"weekday":{"morning":30,"afternoon":60,"evening":80},"weekend":{"morning":50,"afternoon":85,"evening":90}}`)))

	p, err := repo.GetPlace(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Gateway of India", p.Name)
	assert.Equal(t, types.Location{Lat: 18.92, Lng: 72.83}, p.Location)
	assert.Nil(t, p.EntryFee)
	require.NotNil(t, p.CrowdPattern)
	assert.Equal(t, 85, p.CrowdPattern.Weekend.Afternoon)

	missing := uuid.New()
	pool.ExpectQuery("FROM places WHERE id = \\$1").WithArgs(missing).WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetPlace(context.Background(), missing)
	assert.ErrorIs(t, err, api.ErrNotFound)

	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositoryListBuildsFilter(t *testing.T) {
	repo, pool := newRepo(t)
	minRating := 4.0
	maxPrice := 500.0

	pool.ExpectQuery(regexp.QuoteMeta("WHERE city = $1 AND category = $2 AND tags && $3 AND rating >= $4 AND avg_cost <= $5 ORDER BY rating DESC, popularity_score DESC LIMIT $6")).
		WithArgs("Mumbai", "Monument", []string{"history"}, 4.0, 500.0, 50).
		WillReturnRows(placeRow(pgxmock.NewRows(placeCols), uuid.New(), "Gateway of India", nil))

	places, err := repo.List(context.Background(), types.PlaceFilter{
		City: "Mumbai", Category: "Monument", Tags: []string{"history"},
		MinRating: &minRating, MaxPrice: &maxPrice, Limit: 50,
	})
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Nil(t, places[0].CrowdPattern)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositorySearchEscapesPattern(t *testing.T) {
	repo, pool := newRepo(t)

	pool.ExpectQuery("ILIKE").
		WithArgs(`%100\%%`, "Goa", 20).
		WillReturnRows(pgxmock.NewRows(placeCols))

	places, err := repo.Search(context.Background(), "100%", "Goa", 20)
	require.NoError(t, err)
	assert.Empty(t, places)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositoryCitySummaries(t *testing.T) {
	repo, pool := newRepo(t)

	pool.ExpectQuery("GROUP BY city").
		WillReturnRows(pgxmock.NewRows([]string{"city", "count", "categories", "avg"}).
			AddRow("Mumbai", 12, []string{"Beach", "Monument"}, 4.4).
			AddRow("Goa", 5, []string{"Beach"}, 4.1))

	cities, err := repo.CitySummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.CitySummary{
		{Name: "Mumbai", PlaceCount: 12, Categories: []string{"Beach", "Monument"}, AvgRating: 4.4},
		{Name: "Goa", PlaceCount: 5, Categories: []string{"Beach"}, AvgRating: 4.1},
	}, cities)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositoryDelete(t *testing.T) {
	repo, pool := newRepo(t)
	id := uuid.New()

	pool.ExpectExec("DELETE FROM places").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), id))

	pool.ExpectExec("DELETE FROM places").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), api.ErrNotFound)

	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositoryCreate(t *testing.T) {
	repo, pool := newRepo(t)
	id := uuid.New()
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	pool.ExpectQuery("INSERT INTO places").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, created))

	p, err := repo.Create(context.Background(), types.Place{Name: "Fort", City: "Jaipur", Category: types.CategoryHeritage})
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, pool.ExpectationsWereMet())
}
