package types

import (
	"time"

	"github.com/google/uuid"
)

type CrowdLevel string

const (
	CrowdLow      CrowdLevel = "Low"
	CrowdMedium   CrowdLevel = "Medium"
	CrowdHigh     CrowdLevel = "High"
	CrowdVeryHigh CrowdLevel = "Very High"
	// CrowdUnknown marks itinerary entries created without any estimate.
	CrowdUnknown CrowdLevel = "Unknown"
)

// LevelFor buckets a 0..100 crowd score.
func LevelFor(score int) CrowdLevel {
	switch {
	case score <= 25:
		return CrowdLow
	case score <= 50:
		return CrowdMedium
	case score <= 75:
		return CrowdHigh
	default:
		return CrowdVeryHigh
	}
}

// ParseCrowdLevel accepts the four bucket labels only.
func ParseCrowdLevel(s string) (CrowdLevel, bool) {
	switch l := CrowdLevel(s); l {
	case CrowdLow, CrowdMedium, CrowdHigh, CrowdVeryHigh:
		return l, true
	}
	return "", false
}

type EstimateSource string

const (
	SourceHistorical EstimateSource = "historical"
	SourceModel      EstimateSource = "model"
	SourceFallback   EstimateSource = "fallback"
)

// CrowdEstimate is the result of estimating one place at one point in time.
type CrowdEstimate struct {
	Score  int            `json:"crowdScore"`
	Level  CrowdLevel     `json:"crowdLevel"`
	Source EstimateSource `json:"source"`
}

var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ValidDay reports whether d is a full English weekday name.
func ValidDay(d string) bool {
	for _, w := range Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

type CrowdHistoryRecord struct {
	ID         uuid.UUID  `json:"id"`
	PlaceID    uuid.UUID  `json:"placeId"`
	Day        string     `json:"day"`
	TimeSlot   string     `json:"timeSlot"`
	CrowdScore int        `json:"crowdScore"`
	CrowdLevel CrowdLevel `json:"crowdLevel"`
	Weather    string     `json:"weather"`
	Season     string     `json:"season"`
	RecordedAt time.Time  `json:"recordedAt"`
}

type PredictCrowdRequest struct {
	PlaceID  string `json:"placeId"`
	DateTime string `json:"dateTime"`
}

type CrowdPrediction struct {
	PlaceID  uuid.UUID `json:"placeId"`
	DateTime string    `json:"dateTime"`
	CrowdEstimate
}

type BestTimesRequest struct {
	PlaceID string `json:"placeId"`
}

type TimedEstimate struct {
	Time time.Time `json:"time"`
	CrowdEstimate
}

type BestTimes struct {
	PlaceID        uuid.UUID       `json:"placeId"`
	BestTimes      []TimedEstimate `json:"bestTimes"`
	AvoidTimes     []TimedEstimate `json:"avoidTimes"`
	AllPredictions []TimedEstimate `json:"allPredictions"`
}

type RecordCrowdRequest struct {
	PlaceID    string     `json:"placeId"`
	Day        string     `json:"day"`
	TimeSlot   string     `json:"timeSlot"`
	CrowdScore *int       `json:"crowdScore"`
	Weather    string     `json:"weather,omitempty"`
	Season     string     `json:"season,omitempty"`
	RecordedAt *time.Time `json:"recordedAt,omitempty"`
}
