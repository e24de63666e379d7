package container

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	database "github.com/FACorreiaa/go-crowd-planner/app/db"
	appMiddleware "github.com/FACorreiaa/go-crowd-planner/app/middleware"
	"github.com/FACorreiaa/go-crowd-planner/config"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/alternatives"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/crowd"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/itinerary"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/notification"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/place"
	"github.com/FACorreiaa/go-crowd-planner/internal/api/user"
	"github.com/FACorreiaa/go-crowd-planner/internal/push"
	"github.com/FACorreiaa/go-crowd-planner/internal/router"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client

	Hub   *push.Hub
	Relay *push.RedisRelay

	CrowdHandler        *crowd.Handler
	PlaceHandler        *place.Handler
	AlternativesHandler *alternatives.Handler
	ItineraryHandler    *itinerary.Handler
	NotificationHandler *notification.Handler
	UserHandler         *user.Handler
	PushHandler         http.Handler
}

// NewContainer initializes and returns a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: logger, Pool: pool}

	location, err := cfg.CrowdLocation()
	if err != nil {
		c.Close()
		return nil, err
	}

	// push: the local hub always delivers; redis relays between instances when enabled
	c.Hub = push.NewHub(logger)
	var publisher push.Publisher = c.Hub
	if rc := cfg.Push.Redis; rc.Enabled {
		c.Redis = redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", rc.Addr, err)
		}
		c.Relay = push.NewRedisRelay(c.Redis, rc.Channel, c.Hub, logger)
		publisher = c.Relay
		logger.Info("Push events relayed through redis", slog.String("channel", rc.Channel))
	}
	c.PushHandler = push.NewHandler(c.Hub, cfg.Server.AllowedOrigins, logger)

	placeRepo := place.NewRepository(pool, logger)
	placeService := place.NewServiceImpl(placeRepo, logger)
	c.PlaceHandler = place.NewHandler(placeService, logger)

	crowdRepo := crowd.NewRepository(pool, logger)
	var predictor crowd.Predictor
	if cfg.Crowd.PredictorURL != "" {
		predictor = crowd.NewHTTPPredictor(cfg.Crowd, logger)
	} else {
		logger.Warn("No crowd predictor configured, estimates fall back to history or random scores")
	}
	estimator := crowd.NewEstimator(crowdRepo, predictor, logger, crowd.WithLocation(location))
	crowdService := crowd.NewServiceImpl(crowdRepo, placeService, estimator, location, cfg.Crowd.FanOutLimit, logger)
	c.CrowdHandler = crowd.NewHandler(crowdService, logger)

	alternativesService := alternatives.NewServiceImpl(placeService, estimator, cfg.Crowd.FanOutLimit, logger)
	c.AlternativesHandler = alternatives.NewHandler(alternativesService, logger)

	notificationRepo := notification.NewRepository(pool, logger)
	notificationService := notification.NewServiceImpl(notificationRepo, publisher, logger)
	c.NotificationHandler = notification.NewHandler(notificationService, logger)

	itineraryRepo := itinerary.NewRepository(pool, logger)
	itineraryService := itinerary.NewServiceImpl(itineraryRepo, placeService, estimator,
		notificationService, publisher, location, cfg.Crowd.FanOutLimit, logger)
	c.ItineraryHandler = itinerary.NewHandler(itineraryService, logger)

	userRepo := user.NewRepository(pool, logger)
	userService := user.NewServiceImpl(userRepo, user.NewMailer(cfg.SMTP, logger), cfg.JWT, logger)
	c.UserHandler = user.NewHandler(userService, logger)

	return c, nil
}

// RouterConfig wires the handlers into the HTTP routes.
func (c *Container) RouterConfig() *router.Config {
	limiter := appMiddleware.NewRateLimiter(c.Config.RateLimit.RequestsPerMinute, c.Config.RateLimit.Burst, c.Logger)
	return &router.Config{
		CrowdHandler:           c.CrowdHandler,
		PlaceHandler:           c.PlaceHandler,
		AlternativesHandler:    c.AlternativesHandler,
		ItineraryHandler:       c.ItineraryHandler,
		NotificationHandler:    c.NotificationHandler,
		UserHandler:            c.UserHandler,
		PushHandler:            c.PushHandler,
		AuthenticateMiddleware: appMiddleware.Authenticate(c.Logger, c.Config.JWT),
		AuthRateLimit:          limiter.Limit,
		AllowedOrigins:         c.Config.Server.AllowedOrigins,
	}
}

// Run drives the push hub and, when configured, the redis subscription until ctx is done.
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Hub.Run(ctx)
		return nil
	})
	if c.Relay != nil {
		g.Go(func() error {
			c.Relay.Run(ctx)
			return nil
		})
	}
	return g.Wait()
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations() error {
	dbConfig, err := database.NewDatabaseConfig(c.Config, c.Logger)
	if err != nil {
		return err
	}
	return database.RunMigrations(dbConfig.ConnectionURL, c.Logger)
}
