package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	Password          string `mapstructure:"password"`
	Port              string `mapstructure:"port"`
	Username          string `mapstructure:"username"`
	DB                string `mapstructure:"db"`
	SSLMODE           string `mapstructure:"SSLMODE"`
	MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
}

type JWTConfig struct {
	SecretKey string        `mapstructure:"secretKey"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// CrowdConfig drives the crowd estimator and its prediction client.
type CrowdConfig struct {
	PredictorURL     string        `mapstructure:"predictorURL"`
	PredictorTimeout time.Duration `mapstructure:"predictorTimeout"`
	BreakerFailures  uint32        `mapstructure:"breakerFailures"`
	BreakerTimeout   time.Duration `mapstructure:"breakerTimeout"`
	FanOutLimit      int           `mapstructure:"fanOutLimit"`
	Location         string        `mapstructure:"location"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres PostgresConfig `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort       string        `mapstructure:"HTTPPort"`
		Timeout        time.Duration `mapstructure:"HTTPTimeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	JWT       JWTConfig   `mapstructure:"jwt"`
	Crowd     CrowdConfig `mapstructure:"crowd"`
	SMTP      SMTPConfig  `mapstructure:"smtp"`
	Push      struct {
		Redis RedisConfig `mapstructure:"redis"`
	} `mapstructure:"push"`
	RateLimit struct {
		RequestsPerMinute int `mapstructure:"requestsPerMinute"`
		Burst             int `mapstructure:"burst"`
	} `mapstructure:"ratelimit"`
	Observability struct {
		ServiceName string `mapstructure:"serviceName"`
	} `mapstructure:"observability"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// CROWD_PREDICTORURL, JWT_SECRETKEY, etc. override the file values
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	config.applyDefaults()
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPPort == "" {
		c.Server.HTTPPort = "5000"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 60 * time.Second
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 7 * 24 * time.Hour
	}
	if c.Crowd.PredictorTimeout == 0 {
		c.Crowd.PredictorTimeout = 3 * time.Second
	}
	if c.Crowd.BreakerFailures == 0 {
		c.Crowd.BreakerFailures = 5
	}
	if c.Crowd.BreakerTimeout == 0 {
		c.Crowd.BreakerTimeout = 30 * time.Second
	}
	if c.Crowd.FanOutLimit <= 0 {
		c.Crowd.FanOutLimit = 8
	}
	if c.Crowd.Location == "" {
		c.Crowd.Location = "UTC"
	}
	if c.Push.Redis.Channel == "" {
		c.Push.Redis.Channel = "push-events"
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = 30
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "go-crowd-planner"
	}
}

// CrowdLocation resolves the time zone used to derive weekday and hour slots.
func (c *Config) CrowdLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Crowd.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid crowd.location %q: %w", c.Crowd.Location, err)
	}
	return loc, nil
}
