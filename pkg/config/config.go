package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Resilience ResilienceConfig
	Timeout    TimeoutConfig
	Geocoding  GeocodingConfig
	Routing    RoutingConfig
	Fare       FareConfig
	Session    SessionConfig
	EventBus   EventBusConfig
	Tracing    TracingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	WindowSeconds     int
	DefaultLimit      int
	DefaultBurst      int
	AnonymousLimit    int
	AnonymousBurst    int
	RedisPrefix       string
	EndpointOverrides map[string]EndpointRateLimitConfig
}

// EndpointRateLimitConfig allows customizing limits per endpoint.
// "Session" limits apply to callers presenting a session header, "anonymous" to bare IPs.
type EndpointRateLimitConfig struct {
	SessionLimit   int `json:"session_limit"`
	SessionBurst   int `json:"session_burst"`
	AnonymousLimit int `json:"anonymous_limit"`
	AnonymousBurst int `json:"anonymous_burst"`
	WindowSeconds  int `json:"window_seconds"`
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// GeocodingConfig selects and configures the address lookup provider
type GeocodingConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Language string
}

// RoutingConfig selects and configures the directions provider
type RoutingConfig struct {
	Provider        string
	APIKey          string
	BaseURL         string
	Profile         string
	Locale          string
	CustomModelJSON string
	CustomModelFile string
}

// FareConfig selects the fare strategy and its parameters
type FareConfig struct {
	Strategy          string
	BaseFare          float64
	PerKm             float64
	PerMinute         float64
	ExtraPassengerFee float64
	PredictorURL      string
	PredictorAPIKey   string
}

// SessionConfig controls how quote sessions are identified and retained
type SessionConfig struct {
	Header         string
	IdleTTLMinutes int
	MaxSessions    int
}

// EventBusConfig holds NATS JetStream settings for quote events
type EventBusConfig struct {
	Enabled    bool
	URL        string
	StreamName string
}

// TracingConfig holds OpenTelemetry exporter settings
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 40),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", false),
			WindowSeconds:  getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			DefaultLimit:   getEnvAsInt("RATE_LIMIT_DEFAULT_LIMIT", 60),
			DefaultBurst:   getEnvAsInt("RATE_LIMIT_DEFAULT_BURST", 20),
			AnonymousLimit: getEnvAsInt("RATE_LIMIT_ANON_LIMIT", 30),
			AnonymousBurst: getEnvAsInt("RATE_LIMIT_ANON_BURST", 10),
			RedisPrefix:    getEnv("RATE_LIMIT_REDIS_PREFIX", "rate-limit"),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Timeout: TimeoutConfig{
			GeocodeTimeoutMs:      getEnvAsInt("GEOCODE_TIMEOUT_MS", DefaultGeocodeTimeoutMs),
			RouteTimeoutMs:        getEnvAsInt("ROUTE_TIMEOUT_MS", DefaultRouteTimeoutMs),
			FareTimeoutMs:         getEnvAsInt("FARE_TIMEOUT_MS", DefaultFareTimeoutMs),
			RedisOperationTimeout: getEnvAsInt("REDIS_OPERATION_TIMEOUT", DefaultRedisOperationTimeout),
			DefaultRequestTimeout: getEnvAsInt("DEFAULT_REQUEST_TIMEOUT", DefaultRequestTimeout),
		},
		Geocoding: GeocodingConfig{
			Provider: strings.ToLower(getEnv("GEOCODING_PROVIDER", "opencage")),
			APIKey:   getEnv("GEOCODING_API_KEY", ""),
			BaseURL:  getEnv("GEOCODING_BASE_URL", ""),
			Language: getEnv("GEOCODING_LANGUAGE", "en"),
		},
		Routing: RoutingConfig{
			Provider:        strings.ToLower(getEnv("ROUTING_PROVIDER", "graphhopper")),
			APIKey:          getEnv("ROUTING_API_KEY", ""),
			BaseURL:         getEnv("ROUTING_BASE_URL", ""),
			Profile:         getEnv("ROUTING_PROFILE", "car"),
			Locale:          getEnv("ROUTING_LOCALE", "en"),
			CustomModelJSON: getEnv("ROUTING_CUSTOM_MODEL", ""),
			CustomModelFile: getEnv("ROUTING_CUSTOM_MODEL_FILE", ""),
		},
		Fare: FareConfig{
			Strategy:          strings.ToLower(getEnv("FARE_STRATEGY", "formula")),
			BaseFare:          getEnvAsFloat("FARE_BASE", 2.50),
			PerKm:             getEnvAsFloat("FARE_PER_KM", 1.25),
			PerMinute:         getEnvAsFloat("FARE_PER_MINUTE", 0.50),
			ExtraPassengerFee: getEnvAsFloat("FARE_EXTRA_PASSENGER", 0.75),
			PredictorURL:      getEnv("FARE_PREDICTOR_URL", ""),
			PredictorAPIKey:   getEnv("FARE_PREDICTOR_API_KEY", ""),
		},
		Session: SessionConfig{
			Header:         getEnv("SESSION_HEADER", "X-Session-ID"),
			IdleTTLMinutes: getEnvAsInt("SESSION_IDLE_TTL_MINUTES", 30),
			MaxSessions:    getEnvAsInt("SESSION_MAX", 10000),
		},
		EventBus: EventBusConfig{
			Enabled:    getEnvAsBool("NATS_ENABLED", false),
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName: getEnv("NATS_STREAM", "QUOTES"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0),
		},
	}

	if overrides := getEnv("RATE_LIMIT_ENDPOINTS", ""); overrides != "" {
		var endpointConfig map[string]EndpointRateLimitConfig
		if err := json.Unmarshal([]byte(overrides), &endpointConfig); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_ENDPOINTS value: %w", err)
		}
		cfg.RateLimit.EndpointOverrides = endpointConfig
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if routeOverrides := getEnv("ROUTE_TIMEOUT_OVERRIDES", ""); routeOverrides != "" {
		var overrides map[string]int
		if err := json.Unmarshal([]byte(routeOverrides), &overrides); err != nil {
			return nil, fmt.Errorf("invalid ROUTE_TIMEOUT_OVERRIDES value: %w", err)
		}
		cfg.Timeout.RouteOverrides = make(map[string]int, len(overrides))
		for route, seconds := range overrides {
			if seconds <= 0 {
				continue
			}
			cfg.Timeout.RouteOverrides[route] = seconds
		}
	}

	if err := cfg.Timeout.validate(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = int((time.Minute).Seconds())
	}

	if cfg.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}

	if cfg.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.IntervalSeconds = 60
	}

	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	}

	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}

	if cfg.Session.IdleTTLMinutes <= 0 {
		cfg.Session.IdleTTLMinutes = 30
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Geocoding.Provider {
	case "opencage", "google":
	default:
		return fmt.Errorf("GEOCODING_PROVIDER %q is not supported (opencage, google)", c.Geocoding.Provider)
	}

	switch c.Routing.Provider {
	case "graphhopper", "osrm", "google":
	default:
		return fmt.Errorf("ROUTING_PROVIDER %q is not supported (graphhopper, osrm, google)", c.Routing.Provider)
	}

	switch c.Fare.Strategy {
	case "formula":
		if c.Fare.BaseFare < 0 || c.Fare.PerKm < 0 || c.Fare.PerMinute < 0 || c.Fare.ExtraPassengerFee < 0 {
			return fmt.Errorf("fare rates must be non-negative")
		}
	case "remote":
		if c.Fare.PredictorURL == "" {
			return fmt.Errorf("FARE_PREDICTOR_URL is required when FARE_STRATEGY=remote")
		}
	default:
		return fmt.Errorf("FARE_STRATEGY %q is not supported (formula, remote)", c.Fare.Strategy)
	}

	return nil
}

// Close releases resources held by the configuration. It exists so callers can
// defer it uniformly; the env-backed config holds nothing today.
func (c *Config) Close() {}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if c.ServiceOverrides != nil {
		if override, ok := c.ServiceOverrides[service]; ok {
			if override.FailureThreshold > 0 {
				settings.FailureThreshold = override.FailureThreshold
			}
			if override.SuccessThreshold > 0 {
				settings.SuccessThreshold = override.SuccessThreshold
			}
			if override.TimeoutSeconds > 0 {
				settings.TimeoutSeconds = override.TimeoutSeconds
			}
			if override.IntervalSeconds > 0 {
				settings.IntervalSeconds = override.IntervalSeconds
			}
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IdleTTL returns how long an untouched session is retained
func (c SessionConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLMinutes) * time.Minute
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Window returns the configured rate limit window duration
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}
