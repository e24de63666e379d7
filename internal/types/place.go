package types

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryMonument      Category = "Monument"
	CategoryBeach         Category = "Beach"
	CategoryPark          Category = "Park"
	CategoryMuseum        Category = "Museum"
	CategoryTemple        Category = "Temple"
	CategoryMarket        Category = "Market"
	CategoryFood          Category = "Food"
	CategoryHotel         Category = "Hotel"
	CategoryHeritage      Category = "Heritage"
	CategoryEntertainment Category = "Entertainment"
	CategoryOther         Category = "Other"
)

var categories = map[Category]struct{}{
	CategoryMonument: {}, CategoryBeach: {}, CategoryPark: {}, CategoryMuseum: {},
	CategoryTemple: {}, CategoryMarket: {}, CategoryFood: {}, CategoryHotel: {},
	CategoryHeritage: {}, CategoryEntertainment: {}, CategoryOther: {},
}

// Valid reports whether c is one of the enumerated place categories.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// BudgetRange values accepted for Place.BudgetRange. Empty means unset.
var BudgetRanges = []string{"Low", "Medium", "High"}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CrowdSlots holds a 0..100 crowd value per part of the day.
type CrowdSlots struct {
	Morning   int `json:"morning"`
	Afternoon int `json:"afternoon"`
	Evening   int `json:"evening"`
}

// Slot returns the value for "morning", "afternoon" or "evening".
func (s CrowdSlots) Slot(name string) (int, bool) {
	switch name {
	case "morning":
		return s.Morning, true
	case "afternoon":
		return s.Afternoon, true
	case "evening":
		return s.Evening, true
	}
	return 0, false
}

type CrowdPattern struct {
	Weekday CrowdSlots `json:"weekday"`
	Weekend CrowdSlots `json:"weekend"`
}

type Place struct {
	ID               uuid.UUID     `json:"id"`
	Name             string        `json:"name"`
	City             string        `json:"city"`
	State            string        `json:"state"`
	Category         Category      `json:"category"`
	Tags             []string      `json:"tags"`
	Description      string        `json:"description"`
	Location         Location      `json:"location"`
	Address          string        `json:"address"`
	OpenTime         string        `json:"openTime"`
	CloseTime        string        `json:"closeTime"`
	AvgVisitDuration int           `json:"avgVisitDuration"`
	EntryFee         *float64      `json:"entryFee"`
	BestTimeToVisit  []string      `json:"bestTimeToVisit"`
	IdealSeason      []string      `json:"idealSeason"`
	Rating           float64       `json:"rating"`
	PopularityScore  float64       `json:"popularityScore"`
	BudgetRange      string        `json:"budgetRange,omitempty"`
	AvgCost          float64       `json:"avgCost"`
	NearbyTransport  []string      `json:"nearbyTransport"`
	RecommendedFor   []string      `json:"recommendedFor"`
	CrowdPattern     *CrowdPattern `json:"crowdPattern,omitempty"`
	Images           []string      `json:"images"`
	ImageURL         string        `json:"imageUrl"`
	Facilities       []string      `json:"facilities"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// PlaceFilter narrows place listings. Zero values are ignored.
type PlaceFilter struct {
	City      string   `json:"city,omitempty"`
	Category  string   `json:"category,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Budget    string   `json:"budget,omitempty"`
	MinRating *float64 `json:"minRating,omitempty"`
	MaxPrice  *float64 `json:"maxPrice,omitempty"`
	Limit     int      `json:"-"`
}

// CitySummary aggregates the places of one city.
type CitySummary struct {
	Name       string   `json:"name"`
	PlaceCount int      `json:"placeCount"`
	Categories []string `json:"categories"`
	AvgRating  float64  `json:"avgRating"`
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NearbyPlace is a place annotated with its distance in kilometres from a reference point.
type NearbyPlace struct {
	Place
	Distance float64 `json:"distance"`
}

// PlaceList is the envelope returned by the city listing endpoints.
type PlaceList struct {
	City           string       `json:"city,omitempty"`
	Category       string       `json:"category,omitempty"`
	Tags           []string     `json:"tags,omitempty"`
	Budget         string       `json:"budget,omitempty"`
	CrowdLevel     string       `json:"crowdLevel,omitempty"`
	TimeSlot       string       `json:"timeSlot,omitempty"`
	Keyword        string       `json:"keyword,omitempty"`
	Limit          int          `json:"limit,omitempty"`
	AppliedFilters *PlaceFilter `json:"appliedFilters,omitempty"`
	Count          int          `json:"count"`
	Places         []Place      `json:"places"`
}

type CityList struct {
	TotalCities int           `json:"totalCities"`
	Cities      []CitySummary `json:"cities"`
}

type CityCategories struct {
	City       string          `json:"city"`
	Categories []CategoryCount `json:"categories"`
}
