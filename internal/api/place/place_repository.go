package place

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-crowd-planner/app/db"
	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	GetPlace(ctx context.Context, id uuid.UUID) (*types.Place, error)
	GetPlacesByIDs(ctx context.Context, ids []uuid.UUID) ([]types.Place, error)
	ListByCity(ctx context.Context, city string) ([]types.Place, error)
	Popular(ctx context.Context, city string, limit int) ([]types.Place, error)
	// List applies every non-zero field of filter, best rated first.
	List(ctx context.Context, filter types.PlaceFilter) ([]types.Place, error)
	Search(ctx context.Context, keyword, city string, limit int) ([]types.Place, error)
	CitySummaries(ctx context.Context) ([]types.CitySummary, error)
	CityCategories(ctx context.Context, city string) ([]types.CategoryCount, error)
	Create(ctx context.Context, p types.Place) (*types.Place, error)
	Update(ctx context.Context, id uuid.UUID, p types.Place) (*types.Place, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool database.DB
}

func NewRepository(pgpool database.DB, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

const placeColumns = `id, name, city, state, category, tags, description, lat, lng, address,
        open_time, close_time, avg_visit_duration, entry_fee, best_time_to_visit, ideal_season,
        rating, popularity_score, budget_range, avg_cost, nearby_transport, recommended_for,
        crowd_pattern, images, image_url, facilities, created_at`

func scanPlace(row pgx.Row) (types.Place, error) {
	var p types.Place
	var pattern []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.City, &p.State, &p.Category, &p.Tags, &p.Description,
		&p.Location.Lat, &p.Location.Lng, &p.Address, &p.OpenTime, &p.CloseTime,
		&p.AvgVisitDuration, &p.EntryFee, &p.BestTimeToVisit, &p.IdealSeason,
		&p.Rating, &p.PopularityScore, &p.BudgetRange, &p.AvgCost, &p.NearbyTransport,
		&p.RecommendedFor, &pattern, &p.Images, &p.ImageURL, &p.Facilities, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if len(pattern) > 0 {
		var cp types.CrowdPattern
		if err := json.Unmarshal(pattern, &cp); err != nil {
			return p, fmt.Errorf("failed to decode crowd pattern: %w", err)
		}
		p.CrowdPattern = &cp
	}
	return p, nil
}

func (r *RepositoryImpl) queryPlaces(ctx context.Context, span trace.Span, query string, args ...any) ([]types.Place, error) {
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	places := []types.Place{}
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan place row: %w", err)
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating place rows: %w", err)
	}
	span.SetAttributes(attribute.Int("places.count", len(places)))
	return places, nil
}

func startSpan(ctx context.Context, name, operation string) (context.Context, trace.Span) {
	return otel.Tracer("PlaceRepository").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "places"),
	))
}

func (r *RepositoryImpl) GetPlace(ctx context.Context, id uuid.UUID) (*types.Place, error) {
	ctx, span := startSpan(ctx, "GetPlace", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.String("place.id", id.String()))

	p, err := scanPlace(r.pgpool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.Errorf(api.ErrNotFound, "Place not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to get place %s: %w", id, err)
	}
	return &p, nil
}

func (r *RepositoryImpl) GetPlacesByIDs(ctx context.Context, ids []uuid.UUID) ([]types.Place, error) {
	ctx, span := startSpan(ctx, "GetPlacesByIDs", "SELECT")
	defer span.End()

	if len(ids) == 0 {
		return []types.Place{}, nil
	}
	return r.queryPlaces(ctx, span, `SELECT `+placeColumns+` FROM places WHERE id = ANY($1)`, ids)
}

func (r *RepositoryImpl) ListByCity(ctx context.Context, city string) ([]types.Place, error) {
	ctx, span := startSpan(ctx, "ListByCity", "SELECT")
	defer span.End()

	return r.queryPlaces(ctx, span,
		`SELECT `+placeColumns+` FROM places WHERE city = $1 ORDER BY popularity_score DESC, created_at`, city)
}

func (r *RepositoryImpl) Popular(ctx context.Context, city string, limit int) ([]types.Place, error) {
	ctx, span := startSpan(ctx, "Popular", "SELECT")
	defer span.End()

	return r.queryPlaces(ctx, span,
		`SELECT `+placeColumns+` FROM places WHERE city = $1
        ORDER BY popularity_score DESC, rating DESC LIMIT $2`, city, limit)
}

func (r *RepositoryImpl) List(ctx context.Context, filter types.PlaceFilter) ([]types.Place, error) {
	ctx, span := startSpan(ctx, "List", "SELECT")
	defer span.End()

	var where []string
	var args []any
	argID := 1
	add := func(clause string, v any) {
		where = append(where, fmt.Sprintf(clause, argID))
		args = append(args, v)
		argID++
	}

	if filter.City != "" {
		add("city = $%d", filter.City)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if len(filter.Tags) > 0 {
		add("tags && $%d", filter.Tags)
	}
	if filter.Budget != "" {
		add("budget_range = $%d", filter.Budget)
	}
	if filter.MinRating != nil {
		add("rating >= $%d", *filter.MinRating)
	}
	if filter.MaxPrice != nil {
		add("avg_cost <= $%d", *filter.MaxPrice)
	}

	query := `SELECT ` + placeColumns + ` FROM places`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rating DESC, popularity_score DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
	}

	return r.queryPlaces(ctx, span, query, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *RepositoryImpl) Search(ctx context.Context, keyword, city string, limit int) ([]types.Place, error) {
	ctx, span := startSpan(ctx, "Search", "SELECT")
	defer span.End()

	pattern := "%" + likeEscaper.Replace(keyword) + "%"
	query := `SELECT ` + placeColumns + ` FROM places
        WHERE (name ILIKE $1 OR description ILIKE $1
               OR EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE $1))`
	args := []any{pattern}
	if city != "" {
		query += " AND city = $2"
		args = append(args, city)
	}
	query += fmt.Sprintf(" ORDER BY rating DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	return r.queryPlaces(ctx, span, query, args...)
}

func (r *RepositoryImpl) CitySummaries(ctx context.Context) ([]types.CitySummary, error) {
	ctx, span := startSpan(ctx, "CitySummaries", "SELECT")
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
        SELECT city, COUNT(*)::int, ARRAY_AGG(DISTINCT category ORDER BY category),
               ROUND(AVG(rating)::numeric, 1)::float8
        FROM places
        GROUP BY city
        ORDER BY COUNT(*) DESC, city`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to aggregate cities: %w", err)
	}
	defer rows.Close()

	cities := []types.CitySummary{}
	for rows.Next() {
		var c types.CitySummary
		if err := rows.Scan(&c.Name, &c.PlaceCount, &c.Categories, &c.AvgRating); err != nil {
			return nil, fmt.Errorf("failed to scan city summary: %w", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating city summaries: %w", err)
	}
	return cities, nil
}

func (r *RepositoryImpl) CityCategories(ctx context.Context, city string) ([]types.CategoryCount, error) {
	ctx, span := startSpan(ctx, "CityCategories", "SELECT")
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
        SELECT category, COUNT(*)::int
        FROM places
        WHERE city = $1
        GROUP BY category
        ORDER BY COUNT(*) DESC, category`, city)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	defer rows.Close()

	out := []types.CategoryCount{}
	for rows.Next() {
		var c types.CategoryCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}
	return out, nil
}

func patternArg(cp *types.CrowdPattern) (any, error) {
	if cp == nil {
		return nil, nil
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode crowd pattern: %w", err)
	}
	return b, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func placeArgs(p types.Place) ([]any, error) {
	pattern, err := patternArg(p.CrowdPattern)
	if err != nil {
		return nil, err
	}
	return []any{
		p.Name, p.City, p.State, p.Category, nonNil(p.Tags), p.Description,
		p.Location.Lat, p.Location.Lng, p.Address, p.OpenTime, p.CloseTime,
		p.AvgVisitDuration, p.EntryFee, nonNil(p.BestTimeToVisit), nonNil(p.IdealSeason),
		p.Rating, p.PopularityScore, p.BudgetRange, p.AvgCost, nonNil(p.NearbyTransport),
		nonNil(p.RecommendedFor), pattern, nonNil(p.Images), p.ImageURL, nonNil(p.Facilities),
	}, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, p types.Place) (*types.Place, error) {
	ctx, span := startSpan(ctx, "Create", "INSERT")
	defer span.End()

	args, err := placeArgs(p)
	if err != nil {
		return nil, err
	}
	query := `
        INSERT INTO places (name, city, state, category, tags, description, lat, lng, address,
            open_time, close_time, avg_visit_duration, entry_fee, best_time_to_visit, ideal_season,
            rating, popularity_score, budget_range, avg_cost, nearby_transport, recommended_for,
            crowd_pattern, images, image_url, facilities)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
            $18, $19, $20, $21, $22, $23, $24, $25)
        RETURNING id, created_at`

	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("failed to insert place: %w", err)
	}
	span.SetAttributes(attribute.String("place.id", p.ID.String()))
	r.logger.InfoContext(ctx, "Place created", slog.String("place_id", p.ID.String()), slog.String("city", p.City))
	return &p, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, id uuid.UUID, p types.Place) (*types.Place, error) {
	ctx, span := startSpan(ctx, "Update", "UPDATE")
	defer span.End()
	span.SetAttributes(attribute.String("place.id", id.String()))

	args, err := placeArgs(p)
	if err != nil {
		return nil, err
	}
	args = append(args, id)
	query := `
        UPDATE places SET name = $1, city = $2, state = $3, category = $4, tags = $5,
            description = $6, lat = $7, lng = $8, address = $9, open_time = $10, close_time = $11,
            avg_visit_duration = $12, entry_fee = $13, best_time_to_visit = $14, ideal_season = $15,
            rating = $16, popularity_score = $17, budget_range = $18, avg_cost = $19,
            nearby_transport = $20, recommended_for = $21, crowd_pattern = $22, images = $23,
            image_url = $24, facilities = $25
        WHERE id = $26
        RETURNING created_at`

	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.Errorf(api.ErrNotFound, "Place not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return nil, fmt.Errorf("failed to update place: %w", err)
	}
	p.ID = id
	return &p, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := startSpan(ctx, "Delete", "DELETE")
	defer span.End()
	span.SetAttributes(attribute.String("place.id", id.String()))

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM places WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return fmt.Errorf("failed to delete place: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.Errorf(api.ErrNotFound, "Place not found")
	}
	return nil
}
