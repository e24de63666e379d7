package itinerary

import (
	"context"
	"encoding/json"
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
	Create(ctx context.Context, it types.Itinerary) (*types.Itinerary, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Itinerary, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error)
	// Update writes it only if the stored version still equals it.Version.
	// A lost race yields api.ErrConflict.
	Update(ctx context.Context, it types.Itinerary) (*types.Itinerary, error)
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

// storedEntry is the JSONB shape of an entry; the resolved place is never persisted.
type storedEntry struct {
	PlaceID        uuid.UUID        `json:"placeId"`
	PlannedTime    string           `json:"plannedTime"`
	PredictedCrowd types.CrowdLevel `json:"predictedCrowd"`
	CrowdScore     int              `json:"crowdScore"`
	VisitDuration  int              `json:"visitDuration"`
	Order          int              `json:"order"`
}

func encodeEntries(entries []types.ItineraryEntry) ([]byte, error) {
	stored := make([]storedEntry, len(entries))
	for i, e := range entries {
		stored[i] = storedEntry{
			PlaceID:        e.PlaceID,
			PlannedTime:    e.PlannedTime,
			PredictedCrowd: e.PredictedCrowd,
			CrowdScore:     e.CrowdScore,
			VisitDuration:  e.VisitDuration,
			Order:          e.Order,
		}
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode itinerary entries: %w", err)
	}
	return b, nil
}

func decodeEntries(raw []byte) ([]types.ItineraryEntry, error) {
	var stored []storedEntry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &stored); err != nil {
			return nil, fmt.Errorf("failed to decode itinerary entries: %w", err)
		}
	}
	entries := make([]types.ItineraryEntry, len(stored))
	for i, s := range stored {
		entries[i] = types.ItineraryEntry{
			PlaceID:        s.PlaceID,
			PlannedTime:    s.PlannedTime,
			PredictedCrowd: s.PredictedCrowd,
			CrowdScore:     s.CrowdScore,
			VisitDuration:  s.VisitDuration,
			Order:          s.Order,
		}
	}
	return entries, nil
}

const itineraryColumns = `id, user_id, trip_date, entries, auto_replan_count, version, last_updated, created_at`

func scanItinerary(row pgx.Row) (types.Itinerary, error) {
	var it types.Itinerary
	var raw []byte
	if err := row.Scan(&it.ID, &it.UserID, &it.Date, &raw, &it.AutoReplanCount, &it.Version, &it.LastUpdated, &it.CreatedAt); err != nil {
		return it, err
	}
	entries, err := decodeEntries(raw)
	if err != nil {
		return it, err
	}
	it.Entries = entries
	return it, nil
}

func startSpan(ctx context.Context, name, operation string) (context.Context, trace.Span) {
	return otel.Tracer("ItineraryRepository").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "itineraries"),
	))
}

func (r *RepositoryImpl) Create(ctx context.Context, it types.Itinerary) (*types.Itinerary, error) {
	ctx, span := startSpan(ctx, "Create", "INSERT")
	defer span.End()

	raw, err := encodeEntries(it.Entries)
	if err != nil {
		return nil, err
	}
	query := `
        INSERT INTO itineraries (user_id, trip_date, entries)
        VALUES ($1, $2, $3)
        RETURNING ` + itineraryColumns

	created, err := scanItinerary(r.pgpool.QueryRow(ctx, query, it.UserID, it.Date, raw))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("failed to insert itinerary: %w", err)
	}
	span.SetAttributes(attribute.String("itinerary.id", created.ID.String()))
	return &created, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	ctx, span := startSpan(ctx, "Get", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.String("itinerary.id", id.String()))

	it, err := scanItinerary(r.pgpool.QueryRow(ctx, `SELECT `+itineraryColumns+` FROM itineraries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.Errorf(api.ErrNotFound, "Itinerary not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}
	return &it, nil
}

func (r *RepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error) {
	ctx, span := startSpan(ctx, "ListByUser", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.String("db.user.id", userID.String()))

	rows, err := r.pgpool.Query(ctx,
		`SELECT `+itineraryColumns+` FROM itineraries WHERE user_id = $1 ORDER BY trip_date DESC, created_at DESC`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to query itineraries: %w", err)
	}
	defer rows.Close()

	list := []types.Itinerary{}
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan itinerary: %w", err)
		}
		list = append(list, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating itineraries: %w", err)
	}
	return list, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, it types.Itinerary) (*types.Itinerary, error) {
	ctx, span := startSpan(ctx, "Update", "UPDATE")
	defer span.End()
	span.SetAttributes(
		attribute.String("itinerary.id", it.ID.String()),
		attribute.Int("itinerary.version", it.Version),
	)

	raw, err := encodeEntries(it.Entries)
	if err != nil {
		return nil, err
	}
	if it.LastUpdated.IsZero() {
		it.LastUpdated = time.Now()
	}
	query := `
        UPDATE itineraries
        SET trip_date = $1, entries = $2, auto_replan_count = $3, last_updated = $4, version = version + 1
        WHERE id = $5 AND version = $6
        RETURNING ` + itineraryColumns

	updated, err := scanItinerary(r.pgpool.QueryRow(ctx, query,
		it.Date, raw, it.AutoReplanCount, it.LastUpdated, it.ID, it.Version))
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return nil, fmt.Errorf("failed to update itinerary: %w", err)
	}

	var exists bool
	if err := r.pgpool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM itineraries WHERE id = $1)`, it.ID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check itinerary: %w", err)
	}
	if !exists {
		return nil, api.Errorf(api.ErrNotFound, "Itinerary not found")
	}
	span.SetStatus(codes.Error, "version conflict")
	r.logger.WarnContext(ctx, "Itinerary changed concurrently",
		slog.String("itinerary_id", it.ID.String()), slog.Int("version", it.Version))
	return nil, api.Errorf(api.ErrConflict, "Itinerary was modified by another request, please retry")
}

func (r *RepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := startSpan(ctx, "Delete", "DELETE")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM itineraries WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete itinerary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.Errorf(api.ErrNotFound, "Itinerary not found")
	}
	return nil
}
