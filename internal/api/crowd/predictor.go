package crowd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/FACorreiaa/go-crowd-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-crowd-planner/config"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

// Features is the request body of POST /predict.
type Features struct {
	Hour    int  `json:"hour"`
	Weekday int  `json:"weekday"`
	Weekend bool `json:"weekend"`
	Holiday bool `json:"holiday"`
}

// FeaturesAt derives the model features for t. Weekday follows time.Weekday (0 = Sunday).
// Holiday is always false.
func FeaturesAt(t time.Time) Features {
	wd := t.Weekday()
	return Features{
		Hour:    t.Hour(),
		Weekday: int(wd),
		Weekend: wd == time.Saturday || wd == time.Sunday,
		Holiday: false,
	}
}

type Prediction struct {
	Score int
	Level types.CrowdLevel
}

// Predictor is the external crowd model.
type Predictor interface {
	Predict(ctx context.Context, f Features) (*Prediction, error)
}

type predictResponse struct {
	CrowdScore *float64 `json:"crowd_score"`
	CrowdLevel string   `json:"crowd_level"`
}

// HTTPPredictor calls the model service through a circuit breaker.
type HTTPPredictor struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[*Prediction]
	logger  *slog.Logger
}

var _ Predictor = (*HTTPPredictor)(nil)

func NewHTTPPredictor(cfg config.CrowdConfig, logger *slog.Logger) *HTTPPredictor {
	c := resty.New().
		SetBaseURL(cfg.PredictorURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.PredictorTimeout)

	failures := cfg.BreakerFailures
	settings := gobreaker.Settings{
		Name:        "crowd-predictor",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &HTTPPredictor{
		client:  c,
		breaker: gobreaker.NewCircuitBreaker[*Prediction](settings),
		logger:  logger,
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, f Features) (*Prediction, error) {
	return p.breaker.Execute(func() (*Prediction, error) {
		start := time.Now()
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(&f).
			Post("/predict")
		metrics.Get().PredictorDurationSeconds.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("predictor request: %w", err)
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("predictor status %d", resp.StatusCode())
		}
		return parsePrediction(resp.Body())
	})
}

// parsePrediction validates the model payload. An unknown level is re-derived from the score.
func parsePrediction(body []byte) (*Prediction, error) {
	var out predictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode predictor response: %w", err)
	}
	if out.CrowdScore == nil {
		return nil, errors.New("predictor response missing crowd_score")
	}
	score := int(math.Round(*out.CrowdScore))
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("predictor crowd_score %d out of range", score)
	}
	level, ok := types.ParseCrowdLevel(out.CrowdLevel)
	if !ok {
		level = types.LevelFor(score)
	}
	return &Prediction{Score: score, Level: level}, nil
}
