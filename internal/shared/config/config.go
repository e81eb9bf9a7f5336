package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Routing      RoutingConfig
	Realtime     RealtimeConfig
	EventStore   EventStoreConfig
	CapacityFeed CapacityFeedConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret string
}

// RoutingConfig holds settings for the external driving-time provider.
type RoutingConfig struct {
	// BaseURL of the routing API, e.g. https://api.geoapify.com/v1/routing
	BaseURL string
	// APIKey sent with every request
	APIKey string
	// TimeoutSeconds bounds each ETA lookup; on timeout the lookup degrades
	TimeoutSeconds int
}

// RealtimeConfig holds settings for the in-process emergency feed.
type RealtimeConfig struct {
	// HeartbeatSeconds is the SSE keep-alive interval
	HeartbeatSeconds int
}

// EventStoreConfig holds configuration for the optional domain event journal
// (EventStoreDB / KurrentDB).
type EventStoreConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

// CapacityFeedConfig configures the optional hospital-information-system
// capacity adapter (SQL Server).
type CapacityFeedConfig struct {
	Enabled             bool
	Host                string
	Port                int
	User                string
	Password            string
	Database            string
	SSLMode             string
	Table               string
	PollIntervalSeconds int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "dispatch"),
			Password: getEnv("DB_PASSWORD", "dispatch"),
			Database: getEnv("DB_NAME", "dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Routing: RoutingConfig{
			BaseURL:        getEnv("ROUTING_URL", "https://api.geoapify.com/v1/routing"),
			APIKey:         getEnv("ROUTING_API_KEY", ""),
			TimeoutSeconds: getEnvInt("ROUTING_TIMEOUT_SECONDS", 5),
		},
		Realtime: RealtimeConfig{
			HeartbeatSeconds: getEnvInt("REALTIME_HEARTBEAT_SECONDS", 15),
		},
		EventStore: EventStoreConfig{
			Enabled:  getEnvBool("EVENTSTORE_ENABLED", false),
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		CapacityFeed: CapacityFeedConfig{
			Enabled:             getEnvBool("CAPACITY_FEED_ENABLED", false),
			Host:                getEnv("CAPACITY_FEED_HOST", "localhost"),
			Port:                getEnvInt("CAPACITY_FEED_PORT", 1433),
			User:                getEnv("CAPACITY_FEED_USER", ""),
			Password:            getEnv("CAPACITY_FEED_PASSWORD", ""),
			Database:            getEnv("CAPACITY_FEED_DB", "his"),
			SSLMode:             getEnv("CAPACITY_FEED_SSLMODE", "disable"),
			Table:               getEnv("CAPACITY_FEED_TABLE", "dbo.WardCapacity"),
			PollIntervalSeconds: getEnvInt("CAPACITY_FEED_POLL_SECONDS", 60),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
