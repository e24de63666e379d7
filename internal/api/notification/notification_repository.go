package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

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
	Create(ctx context.Context, n types.Notification) (*types.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, skip int) ([]types.Notification, int, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*types.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
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

const notificationColumns = `id, user_id, message, type, related_place_id, related_itinerary_id, is_read, created_at`

func scanNotification(row pgx.Row) (types.Notification, error) {
	var n types.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.RelatedPlaceID, &n.RelatedItineraryID, &n.IsRead, &n.CreatedAt)
	return n, err
}

func startSpan(ctx context.Context, name, operation string) (context.Context, trace.Span) {
	return otel.Tracer("NotificationRepository").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "notifications"),
	))
}

func (r *RepositoryImpl) Create(ctx context.Context, n types.Notification) (*types.Notification, error) {
	ctx, span := startSpan(ctx, "Create", "INSERT")
	defer span.End()

	query := `
        INSERT INTO notifications (user_id, message, type, related_place_id, related_itinerary_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + notificationColumns

	created, err := scanNotification(r.pgpool.QueryRow(ctx, query,
		n.UserID, n.Message, n.Type, n.RelatedPlaceID, n.RelatedItineraryID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}
	return &created, nil
}

func (r *RepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID, limit, skip int) ([]types.Notification, int, error) {
	ctx, span := startSpan(ctx, "ListByUser", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.String("db.user.id", userID.String()))

	var total int
	if err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, `
        SELECT `+notificationColumns+`
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`, userID, limit, skip)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, 0, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	list := []types.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating notifications: %w", err)
	}
	return list, total, nil
}

func (r *RepositoryImpl) MarkRead(ctx context.Context, id uuid.UUID) (*types.Notification, error) {
	ctx, span := startSpan(ctx, "MarkRead", "UPDATE")
	defer span.End()

	n, err := scanNotification(r.pgpool.QueryRow(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 RETURNING `+notificationColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.Errorf(api.ErrNotFound, "Notification not found")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return &n, nil
}

func (r *RepositoryImpl) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, span := startSpan(ctx, "MarkAllRead", "UPDATE")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := startSpan(ctx, "Delete", "DELETE")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.Errorf(api.ErrNotFound, "Notification not found")
	}
	return nil
}

func (r *RepositoryImpl) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, span := startSpan(ctx, "UnreadCount", "SELECT")
	defer span.End()

	var count int
	if err := r.pgpool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&count); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
