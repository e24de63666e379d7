package place

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

const (
	citiesCacheKey   = "cities:all"
	searchLimit      = 20
	filterLimit      = 50
	defaultPopular   = 10
	defaultCrowdSlot = "afternoon"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	GetPlace(ctx context.Context, id uuid.UUID) (*types.Place, error)
	GetPlacesByIDs(ctx context.Context, ids []uuid.UUID) ([]types.Place, error)
	ListByCity(ctx context.Context, city string) ([]types.Place, error)
	ByCategory(ctx context.Context, city, category string) ([]types.Place, error)
	ByTags(ctx context.Context, city string, tags []string) ([]types.Place, error)
	ByBudget(ctx context.Context, city, budget string) ([]types.Place, error)
	ByCrowdLevel(ctx context.Context, city, level, timeSlot string) ([]types.Place, error)
	Popular(ctx context.Context, city string, limit int) ([]types.Place, error)
	Search(ctx context.Context, keyword, city string) ([]types.Place, error)
	Filter(ctx context.Context, filter types.PlaceFilter) ([]types.Place, error)
	AllCities(ctx context.Context) ([]types.CitySummary, error)
	CityCategories(ctx context.Context, city string) ([]types.CategoryCount, error)
	Create(ctx context.Context, p types.Place) (*types.Place, error)
	Update(ctx context.Context, id uuid.UUID, p types.Place) (*types.Place, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	cache  *cache.Cache
}

func NewServiceImpl(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(10*time.Minute, 30*time.Minute),
	}
}

func (s *ServiceImpl) GetPlace(ctx context.Context, id uuid.UUID) (*types.Place, error) {
	return s.repo.GetPlace(ctx, id)
}

func (s *ServiceImpl) GetPlacesByIDs(ctx context.Context, ids []uuid.UUID) ([]types.Place, error) {
	return s.repo.GetPlacesByIDs(ctx, ids)
}

func (s *ServiceImpl) ListByCity(ctx context.Context, city string) ([]types.Place, error) {
	if city == "" {
		return nil, api.Errorf(api.ErrBadRequest, "City parameter is required")
	}
	return s.repo.ListByCity(ctx, city)
}

func (s *ServiceImpl) ByCategory(ctx context.Context, city, category string) ([]types.Place, error) {
	places, err := s.repo.List(ctx, types.PlaceFilter{City: city, Category: category})
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, api.Errorf(api.ErrNotFound, "No %s places found in %s", category, city)
	}
	return places, nil
}

func (s *ServiceImpl) ByTags(ctx context.Context, city string, tags []string) ([]types.Place, error) {
	if len(tags) == 0 {
		return nil, api.Errorf(api.ErrBadRequest, "Tags parameter is required")
	}
	places, err := s.repo.List(ctx, types.PlaceFilter{City: city, Tags: tags})
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, api.Errorf(api.ErrNotFound, "No places found with tags: %s", strings.Join(tags, ", "))
	}
	return places, nil
}

func validBudget(b string) bool {
	return slices.Contains(types.BudgetRanges, b)
}

func (s *ServiceImpl) ByBudget(ctx context.Context, city, budget string) ([]types.Place, error) {
	if !validBudget(budget) {
		return nil, api.Errorf(api.ErrBadRequest, "Invalid budget. Use: Low, Medium, or High")
	}
	places, err := s.repo.List(ctx, types.PlaceFilter{City: city, Budget: budget})
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, api.Errorf(api.ErrNotFound, "No %s budget places found in %s", budget, city)
	}
	return places, nil
}

// crowdMatches buckets the mean of the weekday and weekend values for slot.
// Places without a pattern always match.
func crowdMatches(p types.Place, level, slot string) bool {
	if p.CrowdPattern == nil {
		return true
	}
	wd, _ := p.CrowdPattern.Weekday.Slot(slot)
	we, _ := p.CrowdPattern.Weekend.Slot(slot)
	score := float64(wd+we) / 2
	switch level {
	case "low":
		return score < 40
	case "medium":
		return score >= 40 && score < 70
	default:
		return score >= 70
	}
}

func (s *ServiceImpl) ByCrowdLevel(ctx context.Context, city, level, timeSlot string) ([]types.Place, error) {
	level = strings.ToLower(level)
	if level != "low" && level != "medium" && level != "high" {
		return nil, api.Errorf(api.ErrBadRequest, "Invalid level. Use: low, medium, or high")
	}
	slot := strings.ToLower(timeSlot)
	if slot == "" {
		slot = defaultCrowdSlot
	}
	if _, ok := (types.CrowdSlots{}).Slot(slot); !ok {
		return nil, api.Errorf(api.ErrBadRequest, "timeSlot parameter required. Use: morning, afternoon, or evening")
	}

	places, err := s.repo.ListByCity(ctx, city)
	if err != nil {
		return nil, err
	}
	out := []types.Place{}
	for _, p := range places {
		if crowdMatches(p, level, slot) {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b types.Place) int { return cmp.Compare(b.Rating, a.Rating) })
	return out, nil
}

func (s *ServiceImpl) Popular(ctx context.Context, city string, limit int) ([]types.Place, error) {
	if limit <= 0 {
		limit = defaultPopular
	}
	places, err := s.repo.Popular(ctx, city, limit)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, api.Errorf(api.ErrNotFound, "City not found")
	}
	return places, nil
}

func (s *ServiceImpl) Search(ctx context.Context, keyword, city string) ([]types.Place, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, api.Errorf(api.ErrBadRequest, "Search keyword is required")
	}
	return s.repo.Search(ctx, keyword, city, searchLimit)
}

func (s *ServiceImpl) Filter(ctx context.Context, filter types.PlaceFilter) ([]types.Place, error) {
	if filter.City == "" {
		return nil, api.Errorf(api.ErrBadRequest, "City is required")
	}
	filter.Limit = filterLimit
	places, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, api.Errorf(api.ErrNotFound, "No places match your criteria")
	}
	return places, nil
}

func (s *ServiceImpl) AllCities(ctx context.Context) ([]types.CitySummary, error) {
	if cached, ok := s.cache.Get(citiesCacheKey); ok {
		return cached.([]types.CitySummary), nil
	}
	cities, err := s.repo.CitySummaries(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(citiesCacheKey, cities, cache.DefaultExpiration)
	return cities, nil
}

func (s *ServiceImpl) CityCategories(ctx context.Context, city string) ([]types.CategoryCount, error) {
	cats, err := s.repo.CityCategories(ctx, city)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, api.Errorf(api.ErrNotFound, "City not found")
	}
	return cats, nil
}

// Validate checks a place before it is written and fills in defaults.
func Validate(p *types.Place) error {
	p.Name = strings.TrimSpace(p.Name)
	p.City = strings.TrimSpace(p.City)
	if p.Name == "" || p.City == "" {
		return api.Errorf(api.ErrBadRequest, "name and city are required")
	}
	if p.Location.Lat < -90 || p.Location.Lat > 90 || p.Location.Lng < -180 || p.Location.Lng > 180 {
		return api.Errorf(api.ErrBadRequest, "location is out of range")
	}
	if p.Category == "" {
		p.Category = types.CategoryOther
	}
	if !p.Category.Valid() {
		return api.Errorf(api.ErrBadRequest, "invalid category %q", p.Category)
	}
	if p.Rating < 0 || p.Rating > 5 {
		return api.Errorf(api.ErrBadRequest, "rating must be between 0 and 5")
	}
	if p.EntryFee != nil && *p.EntryFee < 0 {
		return api.Errorf(api.ErrBadRequest, "entryFee must not be negative")
	}
	if p.BudgetRange != "" && !validBudget(p.BudgetRange) {
		return api.Errorf(api.ErrBadRequest, "invalid budgetRange %q", p.BudgetRange)
	}
	if p.AvgVisitDuration <= 0 {
		p.AvgVisitDuration = 60
	}
	if cp := p.CrowdPattern; cp != nil {
		for _, v := range []int{
			cp.Weekday.Morning, cp.Weekday.Afternoon, cp.Weekday.Evening,
			cp.Weekend.Morning, cp.Weekend.Afternoon, cp.Weekend.Evening,
		} {
			if v < 0 || v > 100 {
				return api.Errorf(api.ErrBadRequest, "crowdPattern values must be between 0 and 100")
			}
		}
	}
	return nil
}

func (s *ServiceImpl) Create(ctx context.Context, p types.Place) (*types.Place, error) {
	if err := Validate(&p); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(citiesCacheKey)
	return created, nil
}

func (s *ServiceImpl) Update(ctx context.Context, id uuid.UUID, p types.Place) (*types.Place, error) {
	if err := Validate(&p); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(citiesCacheKey)
	return updated, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete place %s: %w", id, err)
	}
	s.cache.Delete(citiesCacheKey)
	return nil
}
