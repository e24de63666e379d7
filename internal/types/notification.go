package types

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationCrowdAlert            NotificationType = "crowd-alert"
	NotificationBestTime              NotificationType = "best-time"
	NotificationItineraryUpdate       NotificationType = "itinerary-update"
	NotificationAlternativeSuggestion NotificationType = "alternative-suggestion"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationCrowdAlert, NotificationBestTime, NotificationItineraryUpdate, NotificationAlternativeSuggestion:
		return true
	}
	return false
}

type Notification struct {
	ID                 uuid.UUID        `json:"id"`
	UserID             uuid.UUID        `json:"userId"`
	Message            string           `json:"message"`
	Type               NotificationType `json:"type"`
	RelatedPlaceID     *uuid.UUID       `json:"relatedPlace,omitempty"`
	RelatedItineraryID *uuid.UUID       `json:"relatedItinerary,omitempty"`
	IsRead             bool             `json:"isRead"`
	CreatedAt          time.Time        `json:"createdAt"`
}

type CreateNotificationRequest struct {
	UserID           string `json:"userId"`
	Message          string `json:"message"`
	Type             string `json:"type"`
	RelatedPlace     string `json:"relatedPlace,omitempty"`
	RelatedItinerary string `json:"relatedItinerary,omitempty"`
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"hasMore"`
}
