package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Offer dispatch modes.
const (
	DispatchAsync    = "async"
	DispatchBlocking = "blocking"
)

var (
	DefaultAgentTimeout     = 10 * time.Second
	DefaultOfferDelay       = 5 * time.Second
	DefaultRetryMaxElapsed  = 2 * time.Minute
	DefaultKafkaTopic       = "idmanager.issuance.events"
	DefaultSiteURL          = "http://localhost:8080"
	DefaultRedisPoolSize    = 10
	DefaultRedisDialTimeout = 5 * time.Second
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	Environment   string
	AdminAPIToken string
	SiteURL       string

	Agent    AgentConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Offers   OfferConfig

	// CredentialCrafters binds credential definition ids to crafter names,
	// e.g. "cred-def-1=issue_date,cred-def-2=issue_date".
	CredentialCrafters string
}

type AgentConfig struct {
	URL            string
	TransportURL   string
	AuthToken      string
	WebhooksAPIKey string
	Timeout        time.Duration
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

type OfferConfig struct {
	Delay           time.Duration
	DispatchMode    string
	RetryMaxElapsed time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Malformed durations fall back to their defaults.
func FromEnv() Server {
	return Server{
		Addr:          envOr("ID_MANAGER_ADDR", ":8080"),
		Environment:   envOr("ENVIRONMENT", "development"),
		AdminAPIToken: os.Getenv("ADMIN_API_TOKEN"),
		SiteURL:       strings.TrimRight(envOr("SITE_URL", DefaultSiteURL), "/"),
		Agent: AgentConfig{
			URL:            os.Getenv("ACA_PY_URL"),
			TransportURL:   os.Getenv("ACA_PY_TRANSPORT_URL"),
			AuthToken:      os.Getenv("ACA_PY_AUTH_TOKEN"),
			WebhooksAPIKey: os.Getenv("ACA_PY_WEBHOOKS_API_KEY"),
			Timeout:        durationOr("ACA_PY_TIMEOUT", DefaultAgentTimeout),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     DefaultRedisPoolSize,
			MinIdleConns: 2,
			DialTimeout:  DefaultRedisDialTimeout,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   envOr("KAFKA_TOPIC", DefaultKafkaTopic),
		},
		Offers: OfferConfig{
			Delay:           durationOr("OFFER_DELAY", DefaultOfferDelay),
			DispatchMode:    strings.ToLower(envOr("OFFER_DISPATCH_MODE", DispatchAsync)),
			RetryMaxElapsed: durationOr("OFFER_RETRY_MAX_ELAPSED", DefaultRetryMaxElapsed),
		},
		CredentialCrafters: os.Getenv("CREDENTIAL_CRAFTERS"),
	}
}

// Validate reports settings the server cannot start with.
func (s Server) Validate() error {
	if s.Agent.URL == "" {
		return fmt.Errorf("ACA_PY_URL is required")
	}
	if s.AdminAPIToken == "" && s.Environment == "production" {
		return fmt.Errorf("ADMIN_API_TOKEN is required in production")
	}
	switch s.Offers.DispatchMode {
	case DispatchAsync, DispatchBlocking:
	default:
		return fmt.Errorf("OFFER_DISPATCH_MODE must be %q or %q, got %q", DispatchAsync, DispatchBlocking, s.Offers.DispatchMode)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
