package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	TokenStoreFile   = "file"
	TokenStoreSQLite = "sqlite"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

type Config struct {
	Profile string `env:"APP_PROFILE,default=dev"`

	APIBaseURL     string        `env:"API_BASE_URL,default=http://localhost:8081/api"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT,default=20s"`
	RefreshPath    string        `env:"API_REFRESH_PATH,default=/auth/token/refresh/"`
	UserAgent      string        `env:"HTTP_USER_AGENT,default=learning-portal-client"`
	UIAddr         string        `env:"UI_ADDR,default=127.0.0.1:5173"`
	EnableOTelHTTP bool          `env:"OTEL_HTTP_ENABLED,default=false"`

	ShutdownTimeout              time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	ShutdownObservabilityTimeout time.Duration `env:"SHUTDOWN_OBSERVABILITY_TIMEOUT,default=3s"`

	TokenStore      string `env:"TOKEN_STORE,default=file"`
	TokenStorageKey string `env:"TOKEN_STORAGE_KEY,default=auth_tokens"`
	TokenFileDir    string `env:"TOKEN_FILE_DIR,default=.portal"`
	TokenSQLitePath string `env:"TOKEN_SQLITE_PATH,default=.portal/local_storage.db"`
	RedisAddr       string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB,default=0"`
	RedisKeyPrefix  string `env:"REDIS_KEY_PREFIX,default=portal_session"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	OTELServiceName           string        `env:"OTEL_SERVICE_NAME,default=learning-portal-client"`
	OTELEnvironment           string        `env:"OTEL_ENVIRONMENT,default=local"`
	OTELExporterOTLPEndpoint  string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT,default=localhost:4317"`
	OTELExporterOTLPInsecure  bool          `env:"OTEL_EXPORTER_OTLP_INSECURE,default=true"`
	OTELMetricsEnabled        bool          `env:"OTEL_METRICS_ENABLED,default=false"`
	OTELTracingEnabled        bool          `env:"OTEL_TRACING_ENABLED,default=false"`
	OTELLogsEnabled           bool          `env:"OTEL_LOGS_ENABLED,default=false"`
	OTELMetricsExportInterval time.Duration `env:"OTEL_METRICS_EXPORT_INTERVAL,default=15s"`
	OTELTraceSamplingRatio    float64       `env:"OTEL_TRACE_SAMPLING_RATIO,default=1"`

	DevAPI DevAPIConfig `env:", prefix=DEVAPI_"`
}

// DevAPIConfig configures the local remote-API emulator.
type DevAPIConfig struct {
	Addr          string        `env:"ADDR,default=127.0.0.1:8081"`
	BasePath      string        `env:"BASE_PATH,default=/api"`
	DatabaseURL   string        `env:"DATABASE_URL,default=file:devapi.db?cache=shared"`
	JWTIssuer     string        `env:"JWT_ISSUER,default=learning-portal-devapi"`
	JWTAudience   string        `env:"JWT_AUDIENCE,default=learning-portal"`
	AccessSecret  string        `env:"JWT_ACCESS_SECRET,default=devapi-access-secret-change-me-0123"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET,default=devapi-refresh-secret-change-me-012"`
	RefreshPepper string        `env:"REFRESH_TOKEN_PEPPER,default=devapi-pepper"`
	AccessTTL     time.Duration `env:"ACCESS_TTL,default=5m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL,default=168h"`
	RateLimitRPM  int           `env:"RATE_LIMIT_RPM,default=600"`
	CORSOrigins   []string      `env:"CORS_ORIGINS,default=http://127.0.0.1:5173"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	MissCacheTTL  time.Duration `env:"MISS_CACHE_TTL,default=30s"`
	SeedAdmin     string        `env:"SEED_ADMIN_EMAIL"`
	SeedPassword  string        `env:"SEED_ADMIN_PASSWORD"`
}

// Load failures wrap one of these so callers and metrics can tell them apart with errors.Is.
var (
	ErrEnvFile       = errors.New("load env file")
	ErrEnvironment   = errors.New("parse environment")
	ErrInvalidConfig = errors.New("validate config")
)

// Load reads an optional env file, then the process environment.
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		recordLoadOutcome(ctx, "", err)
		return nil, err
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through lookuper; tests use envconfig.MapLookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		err = fmt.Errorf("%w: %w", ErrEnvironment, err)
		recordLoadOutcome(ctx, cfg.Profile, err)
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		recordLoadOutcome(ctx, cfg.Profile, err)
		return nil, err
	}
	recordLoadOutcome(ctx, cfg.Profile, nil)
	return &cfg, nil
}

func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if strings.TrimSpace(f) == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("%w %s: %w", ErrEnvFile, f, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.TokenStore = strings.ToLower(strings.TrimSpace(c.TokenStore))
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	c.DevAPI.BasePath = "/" + strings.Trim(strings.TrimSpace(c.DevAPI.BasePath), "/")
	if c.DevAPI.BasePath == "/" {
		c.DevAPI.BasePath = ""
	}
}

func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("API_BASE_URL scheme must be http or https, got %q", u.Scheme))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.ShutdownTimeout <= 0 || c.ShutdownObservabilityTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT and SHUTDOWN_OBSERVABILITY_TIMEOUT must be positive"))
	}
	if !strings.HasPrefix(c.RefreshPath, "/") {
		errs = append(errs, errors.New("API_REFRESH_PATH must start with /"))
	}
	switch c.TokenStore {
	case TokenStoreFile:
		if c.TokenFileDir == "" {
			errs = append(errs, errors.New("TOKEN_FILE_DIR is required for file token store"))
		}
	case TokenStoreSQLite:
		if c.TokenSQLitePath == "" {
			errs = append(errs, errors.New("TOKEN_SQLITE_PATH is required for sqlite token store"))
		}
	case TokenStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for redis token store"))
		}
	case TokenStoreMemory:
	default:
		errs = append(errs, fmt.Errorf("TOKEN_STORE must be one of file, sqlite, redis, memory, got %q", c.TokenStore))
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLING_RATIO must be within [0,1]"))
	}
	if c.DevAPI.AccessTTL <= 0 || c.DevAPI.RefreshTTL <= 0 {
		errs = append(errs, errors.New("DEVAPI_ACCESS_TTL and DEVAPI_REFRESH_TTL must be positive"))
	}
	if len(c.DevAPI.AccessSecret) < 32 || len(c.DevAPI.RefreshSecret) < 32 {
		errs = append(errs, errors.New("DEVAPI_JWT_ACCESS_SECRET and DEVAPI_JWT_REFRESH_SECRET must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}
