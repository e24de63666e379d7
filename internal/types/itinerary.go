package types

import (
	"time"

	"github.com/google/uuid"
)

type ItineraryEntry struct {
	PlaceID        uuid.UUID  `json:"placeId"`
	Place          *Place     `json:"place,omitempty"`
	PlannedTime    string     `json:"plannedTime"`
	PredictedCrowd CrowdLevel `json:"predictedCrowd"`
	CrowdScore     int        `json:"crowdScore"`
	VisitDuration  int        `json:"visitDuration"`
	Order          int        `json:"order"`
}

type Itinerary struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"userId"`
	Date            time.Time        `json:"date"`
	Entries         []ItineraryEntry `json:"places"`
	AutoReplanCount int              `json:"autoReplanCount"`
	Version         int              `json:"version"`
	LastUpdated     time.Time        `json:"lastUpdated"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type CreateItineraryRequest struct {
	UserID   string   `json:"userId"`
	Date     string   `json:"date"`
	PlaceIDs []string `json:"placeIds"`
}

type UpdateItineraryEntry struct {
	PlaceID        string `json:"placeId"`
	PlannedTime    string `json:"plannedTime"`
	PredictedCrowd string `json:"predictedCrowd,omitempty"`
	CrowdScore     *int   `json:"crowdScore,omitempty"`
	VisitDuration  *int   `json:"visitDuration,omitempty"`
}

// UpdateItineraryRequest edits the date and/or replaces the entries. Nil fields are left unchanged.
type UpdateItineraryRequest struct {
	Date    *string                `json:"date,omitempty"`
	Entries []UpdateItineraryEntry `json:"places,omitempty"`
}
