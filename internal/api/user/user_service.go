package user

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-crowd-planner/config"
	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

const (
	otpDigits = 6
	otpTTL    = 10 * time.Minute

	MsgOTPSent = "OTP sent to your email"
)

// UnverifiedError is returned by Login for accounts that still need OTP confirmation.
type UnverifiedError struct {
	UserID uuid.UUID
}

func (e *UnverifiedError) Error() string {
	return "Email not verified. Please verify your email first."
}

func (e *UnverifiedError) Unwrap() error { return api.ErrUnverified }

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Register returns created=false when an unverified account was refreshed instead of inserted.
	Register(ctx context.Context, req types.RegisterRequest) (resp *types.RegisterResponse, created bool, err error)
	VerifyOTP(ctx context.Context, req types.VerifyOTPRequest) (*types.AuthResponse, error)
	ResendOTP(ctx context.Context, req types.ResendOTPRequest) (*types.RegisterResponse, error)
	Login(ctx context.Context, req types.LoginRequest) (*types.AuthResponse, error)
	GetProfile(ctx context.Context, callerID string, id uuid.UUID) (*types.UserProfile, error)
	UpdateProfile(ctx context.Context, callerID string, id uuid.UUID, req types.UpdateProfileRequest) (*types.UserProfile, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	mailer   Mailer
	jwt      config.JWTConfig
	hashCost int
	now      func() time.Time
	newOTP   func() (string, error)
}

func NewServiceImpl(repo Repository, mailer Mailer, jwtCfg config.JWTConfig, logger *slog.Logger) *ServiceImpl {
	if jwtCfg.TTL == 0 {
		jwtCfg.TTL = 7 * 24 * time.Hour
	}
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		mailer:   mailer,
		jwt:      jwtCfg,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		newOTP:   GenerateOTP,
	}
}

// GenerateOTP returns a uniformly random 6 digit code with no leading zero.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()+100000), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IssueToken signs an access token for u.
func (s *ServiceImpl) IssueToken(u *types.User) (string, error) {
	now := s.now()
	claims := types.Claims{
		UserID: u.ID.String(),
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    s.jwt.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwt.TTL)),
		},
	}
	if s.jwt.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.jwt.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *ServiceImpl) sendOTP(ctx context.Context, u *types.User) {
	if err := s.mailer.SendOTP(ctx, u.Email, u.Name, u.OTP); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send OTP email", slog.String("user_id", u.ID.String()), slog.Any("error", err))
	}
}

func (s *ServiceImpl) Register(ctx context.Context, req types.RegisterRequest) (*types.RegisterResponse, bool, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "Register")
	defer span.End()

	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if name == "" || email == "" || req.Password == "" {
		return nil, false, api.Errorf(api.ErrBadRequest, "name, email, and password are required")
	}
	if len(req.Password) < 6 {
		return nil, false, api.Errorf(api.ErrBadRequest, "Password must be at least 6 characters")
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return nil, false, err
	}
	if existing != nil && existing.IsVerified {
		return nil, false, api.Errorf(api.ErrEmailTaken, "Email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}
	otp, err := s.newOTP()
	if err != nil {
		return nil, false, err
	}
	expires := s.now().Add(otpTTL)
	u := types.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Preferences:  req.Preferences,
		OTP:          otp,
		OTPExpiresAt: &expires,
	}

	var saved *types.User
	created := existing == nil
	if created {
		saved, err = s.repo.Create(ctx, u)
	} else {
		u.ID = existing.ID
		saved, err = s.repo.ReplaceUnverified(ctx, u)
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	span.SetAttributes(attribute.String("user.id", saved.ID.String()), attribute.Bool("user.created", created))

	s.sendOTP(ctx, saved)
	return &types.RegisterResponse{Message: MsgOTPSent, UserID: saved.ID, Email: saved.Email}, created, nil
}

func (s *ServiceImpl) VerifyOTP(ctx context.Context, req types.VerifyOTPRequest) (*types.AuthResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "VerifyOTP")
	defer span.End()

	if req.UserID == "" || req.OTP == "" {
		return nil, api.Errorf(api.ErrBadRequest, "userId and otp are required")
	}
	id, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, api.Errorf(api.ErrNotFound, "User not found")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case u.IsVerified:
		return nil, api.Errorf(api.ErrBadRequest, "User already verified")
	case u.OTP == "" || u.OTPExpiresAt == nil:
		return nil, api.Errorf(api.ErrBadRequest, "OTP not found. Please register again.")
	case s.now().After(*u.OTPExpiresAt):
		return nil, api.Errorf(api.ErrBadRequest, "OTP expired. Please request a new one.")
	case subtle.ConstantTimeCompare([]byte(u.OTP), []byte(strings.TrimSpace(req.OTP))) != 1:
		return nil, api.Errorf(api.ErrBadRequest, "Invalid OTP")
	}

	verified, err := s.repo.MarkVerified(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.mailer.SendWelcome(ctx, verified.Email, verified.Name); err != nil {
		s.logger.WarnContext(ctx, "Failed to send welcome email", slog.String("user_id", id.String()), slog.Any("error", err))
	}

	token, err := s.IssueToken(verified)
	if err != nil {
		return nil, err
	}
	return &types.AuthResponse{Message: "Email verified successfully", User: verified.Profile(), Token: token}, nil
}

func (s *ServiceImpl) ResendOTP(ctx context.Context, req types.ResendOTPRequest) (*types.RegisterResponse, error) {
	if req.UserID == "" {
		return nil, api.Errorf(api.ErrBadRequest, "userId is required")
	}
	id, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, api.Errorf(api.ErrNotFound, "User not found")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsVerified {
		return nil, api.Errorf(api.ErrBadRequest, "User already verified")
	}

	otp, err := s.newOTP()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(otpTTL)
	if err := s.repo.SetOTP(ctx, id, otp, expires); err != nil {
		return nil, err
	}
	u.OTP, u.OTPExpiresAt = otp, &expires
	s.sendOTP(ctx, u)
	return &types.RegisterResponse{Message: MsgOTPSent, UserID: u.ID, Email: u.Email}, nil
}

func (s *ServiceImpl) Login(ctx context.Context, req types.LoginRequest) (*types.AuthResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "Login")
	defer span.End()

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, api.Errorf(api.ErrBadRequest, "email and password are required")
	}
	invalid := api.Errorf(api.ErrUnauthenticated, "Invalid email or password")

	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, api.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !u.IsVerified {
		return nil, &UnverifiedError{UserID: u.ID}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		span.AddEvent("invalid credentials", trace.WithAttributes(attribute.String("user.id", u.ID.String())))
		return nil, invalid
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return nil, err
	}
	return &types.AuthResponse{User: u.Profile(), Token: token}, nil
}

func checkSelf(callerID string, id uuid.UUID) error {
	if callerID != id.String() {
		return api.Errorf(api.ErrForbidden, "You can only access your own profile")
	}
	return nil
}

func (s *ServiceImpl) GetProfile(ctx context.Context, callerID string, id uuid.UUID) (*types.UserProfile, error) {
	if err := checkSelf(callerID, id); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

func (s *ServiceImpl) UpdateProfile(ctx context.Context, callerID string, id uuid.UUID, req types.UpdateProfileRequest) (*types.UserProfile, error) {
	if err := checkSelf(callerID, id); err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, api.Errorf(api.ErrBadRequest, "name must not be empty")
		}
		req.Name = &name
	}
	u, err := s.repo.UpdateProfile(ctx, id, req.Name, req.Preferences)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}
