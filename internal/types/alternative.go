package types

import "github.com/google/uuid"

type AlternativesRequest struct {
	PlaceID string   `json:"placeId"`
	City    string   `json:"city"`
	Radius  *float64 `json:"radius,omitempty"`
}

// Alternative is a ranked candidate near the original place.
type Alternative struct {
	PlaceID          uuid.UUID  `json:"placeId"`
	Name             string     `json:"name"`
	Category         Category   `json:"category"`
	Distance         float64    `json:"distance"`
	Rating           float64    `json:"rating"`
	CrowdScore       int        `json:"crowdScore"`
	CrowdLevel       CrowdLevel `json:"crowdLevel"`
	EntryFee         *float64   `json:"entryFee"`
	AvgVisitDuration int        `json:"avgVisitDuration"`
	Location         Location   `json:"location"`
}

type AlternativesResult struct {
	OriginalPlace *Place        `json:"originalPlace"`
	Alternatives  []Alternative `json:"alternatives"`
	City          string        `json:"city"`
}
