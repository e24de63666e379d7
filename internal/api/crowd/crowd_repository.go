package crowd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

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
	HistoryLookup
	ListSince(ctx context.Context, placeID uuid.UUID, since time.Time) ([]types.CrowdHistoryRecord, error)
	Save(ctx context.Context, rec types.CrowdHistoryRecord) (*types.CrowdHistoryRecord, error)
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

const historyColumns = `id, place_id, day, time_slot, crowd_score, crowd_level, weather, season, recorded_at`

func (r *RepositoryImpl) FindRecord(ctx context.Context, placeID uuid.UUID, day, timeSlot string) (*types.CrowdHistoryRecord, error) {
	ctx, span := otel.Tracer("CrowdRepository").Start(ctx, "FindRecord", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "crowd_history"),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()

	query := `SELECT ` + historyColumns + `
        FROM crowd_history
        WHERE place_id = $1 AND day = $2 AND time_slot = $3
        ORDER BY recorded_at DESC
        LIMIT 1`

	var rec types.CrowdHistoryRecord
	err := r.pgpool.QueryRow(ctx, query, placeID, day, timeSlot).Scan(
		&rec.ID, &rec.PlaceID, &rec.Day, &rec.TimeSlot, &rec.CrowdScore,
		&rec.CrowdLevel, &rec.Weather, &rec.Season, &rec.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no crowd history for %s %s: %w", day, timeSlot, api.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to query crowd history: %w", err)
	}
	return &rec, nil
}

func (r *RepositoryImpl) ListSince(ctx context.Context, placeID uuid.UUID, since time.Time) ([]types.CrowdHistoryRecord, error) {
	ctx, span := otel.Tracer("CrowdRepository").Start(ctx, "ListSince", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "crowd_history"),
		attribute.String("place.id", placeID.String()),
	))
	defer span.End()

	query := `SELECT ` + historyColumns + `
        FROM crowd_history
        WHERE place_id = $1 AND recorded_at >= $2
        ORDER BY recorded_at DESC`

	rows, err := r.pgpool.Query(ctx, query, placeID, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to query crowd history: %w", err)
	}
	defer rows.Close()

	records := []types.CrowdHistoryRecord{}
	for rows.Next() {
		var rec types.CrowdHistoryRecord
		if err := rows.Scan(
			&rec.ID, &rec.PlaceID, &rec.Day, &rec.TimeSlot, &rec.CrowdScore,
			&rec.CrowdLevel, &rec.Weather, &rec.Season, &rec.RecordedAt,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan crowd history row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating crowd history rows: %w", err)
	}
	span.SetAttributes(attribute.Int("crowd.history.count", len(records)))
	return records, nil
}

func (r *RepositoryImpl) Save(ctx context.Context, rec types.CrowdHistoryRecord) (*types.CrowdHistoryRecord, error) {
	ctx, span := otel.Tracer("CrowdRepository").Start(ctx, "Save", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "crowd_history"),
	))
	defer span.End()

	query := `
        INSERT INTO crowd_history (place_id, day, time_slot, crowd_score, crowd_level, weather, season, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id`

	if err := r.pgpool.QueryRow(ctx, query,
		rec.PlaceID, rec.Day, rec.TimeSlot, rec.CrowdScore, rec.CrowdLevel,
		rec.Weather, rec.Season, rec.RecordedAt,
	).Scan(&rec.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("failed to insert crowd history: %w", err)
	}
	r.logger.DebugContext(ctx, "Crowd observation recorded",
		slog.String("place_id", rec.PlaceID.String()), slog.Int("score", rec.CrowdScore))
	return &rec, nil
}
