package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/push"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

const (
	EventNewNotification = "new-notification"
	defaultPageSize      = 20
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Create validates and stores a notification, then pushes it to the owner.
	Create(ctx context.Context, req types.CreateNotificationRequest) (*types.Notification, error)
	// Save stores a notification built by another component without pushing it.
	Save(ctx context.Context, n types.Notification) (*types.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, skip int) (*types.NotificationPage, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*types.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	repo      Repository
	publisher push.Publisher
}

func NewServiceImpl(repo Repository, publisher push.Publisher, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		publisher: publisher,
	}
}

func optionalID(raw, field string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, api.Errorf(api.ErrBadRequest, "invalid %s", field)
	}
	return &id, nil
}

func (s *ServiceImpl) Create(ctx context.Context, req types.CreateNotificationRequest) (*types.Notification, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, api.Errorf(api.ErrBadRequest, "valid userId is required")
	}
	if req.Message == "" {
		return nil, api.Errorf(api.ErrBadRequest, "message is required")
	}
	kind := types.NotificationType(req.Type)
	if !kind.Valid() {
		return nil, api.Errorf(api.ErrBadRequest, "invalid notification type %q", req.Type)
	}
	placeID, err := optionalID(req.RelatedPlace, "relatedPlace")
	if err != nil {
		return nil, err
	}
	itineraryID, err := optionalID(req.RelatedItinerary, "relatedItinerary")
	if err != nil {
		return nil, err
	}

	n, err := s.Save(ctx, types.Notification{
		UserID:             userID,
		Message:            req.Message,
		Type:               kind,
		RelatedPlaceID:     placeID,
		RelatedItineraryID: itineraryID,
	})
	if err != nil {
		return nil, err
	}

	push.Notify(ctx, s.publisher, s.logger, push.UserRoom(n.UserID.String()), EventNewNotification, n)
	return n, nil
}

func (s *ServiceImpl) Save(ctx context.Context, n types.Notification) (*types.Notification, error) {
	return s.repo.Create(ctx, n)
}

func (s *ServiceImpl) List(ctx context.Context, userID uuid.UUID, limit, skip int) (*types.NotificationPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if skip < 0 {
		skip = 0
	}
	list, total, err := s.repo.ListByUser(ctx, userID, limit, skip)
	if err != nil {
		return nil, err
	}
	return &types.NotificationPage{
		Notifications: list,
		Total:         total,
		HasMore:       skip+limit < total,
	}, nil
}

func (s *ServiceImpl) MarkRead(ctx context.Context, id uuid.UUID) (*types.Notification, error) {
	return s.repo.MarkRead(ctx, id)
}

func (s *ServiceImpl) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Notifications marked read", slog.String("user_id", userID.String()), slog.Int64("count", n))
	return nil
}

func (s *ServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *ServiceImpl) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}
