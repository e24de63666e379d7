package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

// Repository defines the contract for account persistence.
type Repository interface {
	// Create inserts a new unverified account. A duplicate email yields api.ErrEmailTaken.
	Create(ctx context.Context, u types.User) (*types.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	// ReplaceUnverified overwrites the details of an account that never confirmed its OTP.
	ReplaceUnverified(ctx context.Context, u types.User) (*types.User, error)
	SetOTP(ctx context.Context, id uuid.UUID, otp string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id uuid.UUID) (*types.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name *string, preferences []string) (*types.User, error)
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

const userColumns = `id, name, email, password_hash, preferences, is_verified, otp, otp_expires_at, created_at`

func scanUser(row pgx.Row) (types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Preferences, &u.IsVerified, &u.OTP, &u.OTPExpiresAt, &u.CreatedAt)
	if u.Preferences == nil {
		u.Preferences = []string{}
	}
	return u, err
}

func startSpan(ctx context.Context, name, operation string) (context.Context, trace.Span) {
	return otel.Tracer("UserRepository").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "users"),
	))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *RepositoryImpl) Create(ctx context.Context, u types.User) (*types.User, error) {
	ctx, span := startSpan(ctx, "Create", "INSERT")
	defer span.End()

	query := `
        INSERT INTO users (name, email, password_hash, preferences, otp, otp_expires_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + userColumns

	created, err := scanUser(r.pgpool.QueryRow(ctx, query,
		u.Name, u.Email, u.PasswordHash, nonNil(u.Preferences), u.OTP, u.OTPExpiresAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			return nil, api.Errorf(api.ErrEmailTaken, "Email already exists")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	span.SetAttributes(attribute.String("db.user.id", created.ID.String()))
	return &created, nil
}

func (r *RepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	ctx, span := startSpan(ctx, "GetByID", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.String("db.user.id", id.String()))

	u, err := scanUser(r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.Errorf(api.ErrNotFound, "User not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *RepositoryImpl) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := startSpan(ctx, "GetByEmail", "SELECT")
	defer span.End()

	u, err := scanUser(r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.Errorf(api.ErrNotFound, "User not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

func (r *RepositoryImpl) ReplaceUnverified(ctx context.Context, u types.User) (*types.User, error) {
	ctx, span := startSpan(ctx, "ReplaceUnverified", "UPDATE")
	defer span.End()
	span.SetAttributes(attribute.String("db.user.id", u.ID.String()))

	query := `
        UPDATE users
        SET name = $1, password_hash = $2, preferences = $3, otp = $4, otp_expires_at = $5
        WHERE id = $6 AND is_verified = FALSE
        RETURNING ` + userColumns

	updated, err := scanUser(r.pgpool.QueryRow(ctx, query,
		u.Name, u.PasswordHash, nonNil(u.Preferences), u.OTP, u.OTPExpiresAt, u.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// verified in the meantime
			return nil, api.Errorf(api.ErrEmailTaken, "Email already exists")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return nil, fmt.Errorf("failed to update unverified user: %w", err)
	}
	return &updated, nil
}

func (r *RepositoryImpl) SetOTP(ctx context.Context, id uuid.UUID, otp string, expiresAt time.Time) error {
	ctx, span := startSpan(ctx, "SetOTP", "UPDATE")
	defer span.End()
	span.SetAttributes(attribute.String("db.user.id", id.String()))

	tag, err := r.pgpool.Exec(ctx, `UPDATE users SET otp = $1, otp_expires_at = $2 WHERE id = $3`, otp, expiresAt, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to store otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.Errorf(api.ErrNotFound, "User not found")
	}
	return nil
}

func (r *RepositoryImpl) MarkVerified(ctx context.Context, id uuid.UUID) (*types.User, error) {
	ctx, span := startSpan(ctx, "MarkVerified", "UPDATE")
	defer span.End()
	span.SetAttributes(attribute.String("db.user.id", id.String()))

	query := `
        UPDATE users SET is_verified = TRUE, otp = '', otp_expires_at = NULL
        WHERE id = $1
        RETURNING ` + userColumns

	u, err := scanUser(r.pgpool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.Errorf(api.ErrNotFound, "User not found")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}
	return &u, nil
}

func (r *RepositoryImpl) UpdateProfile(ctx context.Context, id uuid.UUID, name *string, preferences []string) (*types.User, error) {
	ctx, span := startSpan(ctx, "UpdateProfile", "UPDATE")
	defer span.End()
	span.SetAttributes(attribute.String("db.user.id", id.String()))

	// NULL keeps the stored value
	query := `
        UPDATE users
        SET name = COALESCE($1, name), preferences = COALESCE($2, preferences)
        WHERE id = $3
        RETURNING ` + userColumns

	u, err := scanUser(r.pgpool.QueryRow(ctx, query, name, preferences, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.Errorf(api.ErrNotFound, "User not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	r.logger.DebugContext(ctx, "Profile updated", slog.String("user_id", id.String()))
	return &u, nil
}
