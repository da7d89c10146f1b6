package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Email       EmailConfig     `yaml:"email"`
	Event       EventConfig     `yaml:"event"`
	Logging     LoggingConfig   `yaml:"logging"`
	CORS        CORSConfig      `yaml:"cors"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Tracing     TracingConfig   `yaml:"tracing"`
	Environment string          `yaml:"environment"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects the participant store. Driver is "sqlite" or "memory".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type EmailConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Provider     string `yaml:"provider"` // "smtp" or "resend"
	From         string `yaml:"from"`
	ResendAPIKey string `yaml:"resend_api_key"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
}

// EventConfig describes the event printed on certificates.
type EventConfig struct {
	Name      string `yaml:"name"`
	Hours     int    `yaml:"hours"`
	Signatory string `yaml:"signatory"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CORSConfig struct {
	AllowedOrigins  []string `yaml:"allowed_origins"`
	AllowAllOrigins bool     `yaml:"allow_all_origins"`
}

type RateLimitConfig struct {
	PublicPerMinute   int      `yaml:"public_per_minute"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 10000,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/participants.db",
		},
		Email: EmailConfig{
			Enabled:  false,
			Provider: "smtp",
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Event: EventConfig{
			Name:      "Event",
			Hours:     8,
			Signatory: "Event Coordination",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: 60,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			ServiceName: "attendance",
			SampleRate:  1.0,
		},
		Environment: "development",
	}
}

// Load reads configuration from environment variables on top of Defaults.
func Load() (Config, error) {
	cfg := Defaults()
	applyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with any environment variable that is set. Values
// already in cfg act as fallbacks.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	// PORT is injected by most PaaS runtimes; SERVER_PORT wins when both are set.
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)

	cfg.Database.Driver = strings.ToLower(getEnv("DATABASE_DRIVER", cfg.Database.Driver))
	cfg.Database.Path = getEnv("DATABASE_PATH", cfg.Database.Path)

	cfg.Email.Enabled = getEnvBool("EMAIL_ENABLED", cfg.Email.Enabled)
	cfg.Email.Provider = strings.ToLower(getEnv("EMAIL_PROVIDER", cfg.Email.Provider))
	cfg.Email.From = getEnv("EMAIL_FROM", cfg.Email.From)
	cfg.Email.ResendAPIKey = getEnv("RESEND_API_KEY", cfg.Email.ResendAPIKey)
	cfg.Email.SMTPHost = getEnv("SMTP_HOST", cfg.Email.SMTPHost)
	cfg.Email.SMTPPort = getEnvInt("SMTP_PORT", cfg.Email.SMTPPort)
	cfg.Email.SMTPUser = getEnv("SMTP_USER", cfg.Email.SMTPUser)
	cfg.Email.SMTPPassword = getEnv("SMTP_PASSWORD", cfg.Email.SMTPPassword)

	cfg.Event.Name = getEnv("EVENT_NAME", cfg.Event.Name)
	cfg.Event.Hours = getEnvInt("EVENT_HOURS", cfg.Event.Hours)
	cfg.Event.Signatory = getEnv("EVENT_SIGNATORY", cfg.Event.Signatory)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}

	cfg.RateLimit.PublicPerMinute = getEnvInt("RATE_LIMIT_PUBLIC", cfg.RateLimit.PublicPerMinute)
	if cidrs := os.Getenv("TRUSTED_PROXY_CIDRS"); cidrs != "" {
		cfg.RateLimit.TrustedProxyCIDRs = splitList(cidrs)
	}

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.Database.Path) == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or memory, got %q", cfg.Database.Driver)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Email.Enabled {
		if cfg.Email.From == "" {
			return fmt.Errorf("EMAIL_FROM is required when EMAIL_ENABLED is true")
		}
		switch cfg.Email.Provider {
		case "resend":
			if cfg.Email.ResendAPIKey == "" {
				return fmt.Errorf("RESEND_API_KEY is required for the resend provider")
			}
		case "smtp":
			if cfg.Email.SMTPUser == "" || cfg.Email.SMTPPassword == "" {
				return fmt.Errorf("SMTP_USER and SMTP_PASSWORD are required for the smtp provider")
			}
		default:
			return fmt.Errorf("EMAIL_PROVIDER must be smtp or resend, got %q", cfg.Email.Provider)
		}
	}

	if cfg.Event.Hours <= 0 {
		return fmt.Errorf("EVENT_HOURS must be positive, got %d", cfg.Event.Hours)
	}

	switch cfg.Environment {
	case "development", "test":
		cfg.CORS.AllowAllOrigins = true
	default:
		cfg.CORS.AllowAllOrigins = false
		if len(cfg.CORS.AllowedOrigins) == 0 {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS is required in %s", cfg.Environment)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
