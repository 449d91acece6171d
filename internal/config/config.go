package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds pi360-service settings. Values come from an optional YAML
// file; environment variables override the file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Geocode GeocodeConfig `yaml:"geocode"`
	Pusher  PusherConfig  `yaml:"pusher"`
	Locator LocatorConfig `yaml:"locator"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// APIConfig points at the remote PHP backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`
	SeedPath    string `yaml:"seed_path"`
}

type GeocodeConfig struct {
	// sqlite, postgres, redis or none
	Cache     string        `yaml:"cache"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisTTL  time.Duration `yaml:"redis_ttl"`
	ORSAPIKey string        `yaml:"ors_api_key"`
	Country   string        `yaml:"country"`
}

type PusherConfig struct {
	Key           string `yaml:"key"`
	Cluster       string `yaml:"cluster"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

type LocatorConfig struct {
	RadiusMiles float64 `yaml:"radius_miles"`
	MaxResults  int     `yaml:"max_results"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8080"},
		API:     APIConfig{Timeout: 15 * time.Second},
		Storage: StorageConfig{DBPath: "data/app.db", SeedPath: "data/seeds/service_locations.json"},
		Geocode: GeocodeConfig{Cache: "sqlite", RedisAddr: "localhost:6379", RedisTTL: 30 * 24 * time.Hour, Country: "US"},
		Pusher:  PusherConfig{Cluster: "us2", ChannelPrefix: "user-"},
		Locator: LocatorConfig{RadiusMiles: 25},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (a missing file is not an error) over the defaults and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("load config: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("load config: parse %q: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.API.BaseURL, "PI360_API_BASE_URL")
	setString(&c.API.Token, "PI360_TOKEN")
	setString(&c.Storage.DBPath, "DB_PATH")
	setString(&c.Storage.DatabaseURL, "DATABASE_URL")
	setString(&c.Storage.SeedPath, "SEED_PATH")
	setString(&c.Geocode.Cache, "GEOCODE_CACHE")
	setString(&c.Geocode.RedisAddr, "REDIS_ADDR")
	setString(&c.Geocode.ORSAPIKey, "ORS_API_KEY")
	setString(&c.Pusher.Key, "PUSHER_KEY")
	setString(&c.Pusher.Cluster, "PUSHER_CLUSTER")
	setString(&c.Pusher.ChannelPrefix, "PUSHER_CHANNEL_PREFIX")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := strings.TrimSpace(os.Getenv("PI360_API_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PI360_API_TIMEOUT: %w", err)
		}
		c.API.Timeout = d
	}
	if v := strings.TrimSpace(os.Getenv("LOCATOR_RADIUS_MILES")); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LOCATOR_RADIUS_MILES: %w", err)
		}
		c.Locator.RadiusMiles = r
	}
	if v := strings.TrimSpace(os.Getenv("LOCATOR_MAX_RESULTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOCATOR_MAX_RESULTS: %w", err)
		}
		c.Locator.MaxResults = n
	}

	return nil
}

func (c *Config) Validate() error {
	switch c.Geocode.Cache {
	case "sqlite", "postgres", "redis", "none":
	default:
		return fmt.Errorf("geocode cache %q: must be one of sqlite, postgres, redis, none", c.Geocode.Cache)
	}
	if c.Geocode.Cache == "postgres" && strings.TrimSpace(c.Storage.DatabaseURL) == "" {
		return errors.New("geocode cache postgres requires DATABASE_URL")
	}
	if c.Locator.RadiusMiles <= 0 {
		return fmt.Errorf("locator radius must be > 0, got %v", c.Locator.RadiusMiles)
	}
	if c.Locator.MaxResults < 0 {
		return fmt.Errorf("locator max results must be >= 0, got %d", c.Locator.MaxResults)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Get returns the environment value for key or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
