package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Media drivers.
const (
	MediaAuto       = "auto"
	MediaCloudinary = "cloudinary"
	MediaLocal      = "local"
	MediaNone       = "none"
)

// Config is built once at startup and handed to every constructor. Nothing
// in the service reads the environment after Load returns.
type Config struct {
	Env      string
	Addr     string
	LogLevel string

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	JWTSecret   string
	TokenIssuer string
	TokenTTL    time.Duration

	Media Media

	CORSOrigins    []string
	TrustedProxies []string
	MaxPageSize    int
	MaxBodyBytes   int64
	AuthRateBurst  int
	AuthRatePerSec int
}

// Media configures the media gateway.
type Media struct {
	Driver       string
	CloudName    string
	APIKey       string
	APISecret    string
	Folder       string
	UploadDir    string
	MaxBytes     int64
	MaxDimension int
	Timeout      time.Duration
}

// HasCloudinaryCredentials reports whether all three Cloudinary values are present.
func (m Media) HasCloudinaryCredentials() bool {
	return m.CloudName != "" && m.APIKey != "" && m.APISecret != ""
}

// Production reports whether the service runs with production defaults.
func (c *Config) Production() bool {
	return c.Env == "production"
}

var bindings = map[string][]string{
	"env":                 {"APP_ENV", "NODE_ENV"},
	"port":                {"PORT"},
	"http_addr":           {"HTTP_ADDR"},
	"log_level":           {"LOG_LEVEL"},
	"store_driver":        {"STORE_DRIVER"},
	"database_url":        {"DATABASE_URL"},
	"mongo_uri":           {"MONGO_URI", "MONGODB_URI"},
	"mongo_database":      {"MONGO_DATABASE"},
	"jwt_secret":          {"JWT_SECRET"},
	"token_issuer":        {"TOKEN_ISSUER"},
	"token_ttl":           {"TOKEN_TTL"},
	"media_driver":        {"MEDIA_DRIVER"},
	"cloudinary_cloud":    {"CLOUDINARY_CLOUD_NAME"},
	"cloudinary_key":      {"CLOUDINARY_API_KEY"},
	"cloudinary_secret":   {"CLOUDINARY_API_SECRET"},
	"cloudinary_folder":   {"CLOUDINARY_FOLDER"},
	"upload_dir":          {"UPLOAD_DIR"},
	"media_max_bytes":     {"MEDIA_MAX_BYTES"},
	"media_max_dimension": {"MEDIA_MAX_DIMENSION"},
	"media_timeout":       {"MEDIA_TIMEOUT"},
	"cors_origins":        {"CORS_ORIGINS"},
	"trusted_proxies":     {"TRUSTED_PROXIES"},
	"max_page_size":       {"MAX_PAGE_SIZE"},
	"max_body_bytes":      {"MAX_BODY_BYTES"},
	"auth_rate_burst":     {"AUTH_RATE_BURST"},
	"auth_rate_per_sec":   {"AUTH_RATE_PER_SEC"},
}

func defaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "5000")
	v.SetDefault("log_level", "info")
	v.SetDefault("store_driver", StoreMemory)
	v.SetDefault("mongo_database", "blog-app")
	v.SetDefault("token_issuer", "inkwell")
	v.SetDefault("token_ttl", "168h")
	v.SetDefault("media_driver", MediaAuto)
	v.SetDefault("cloudinary_folder", "blog-app")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("media_max_bytes", 5<<20)
	v.SetDefault("media_max_dimension", 1000)
	v.SetDefault("media_timeout", "15s")
	v.SetDefault("max_page_size", 50)
	v.SetDefault("max_body_bytes", 10<<20)
	v.SetDefault("auth_rate_burst", 10)
	v.SetDefault("auth_rate_per_sec", 5)
}

// Load reads an optional .env file followed by the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Existing variables win over the file; a missing file is fine.
		_ = godotenv.Load(f)
	}

	v := viper.New()
	defaults(v)
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{
		Env:           strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		LogLevel:      v.GetString("log_level"),
		StoreDriver:   strings.ToLower(strings.TrimSpace(v.GetString("store_driver"))),
		DatabaseURL:   strings.TrimSpace(v.GetString("database_url")),
		MongoURI:      strings.TrimSpace(v.GetString("mongo_uri")),
		MongoDatabase: strings.TrimSpace(v.GetString("mongo_database")),
		JWTSecret:     strings.TrimSpace(v.GetString("jwt_secret")),
		TokenIssuer:   strings.TrimSpace(v.GetString("token_issuer")),
		TokenTTL:      v.GetDuration("token_ttl"),
		Media: Media{
			Driver:       strings.ToLower(strings.TrimSpace(v.GetString("media_driver"))),
			CloudName:    strings.TrimSpace(v.GetString("cloudinary_cloud")),
			APIKey:       strings.TrimSpace(v.GetString("cloudinary_key")),
			APISecret:    strings.TrimSpace(v.GetString("cloudinary_secret")),
			Folder:       strings.TrimSpace(v.GetString("cloudinary_folder")),
			UploadDir:    strings.TrimSpace(v.GetString("upload_dir")),
			MaxBytes:     v.GetInt64("media_max_bytes"),
			MaxDimension: v.GetInt("media_max_dimension"),
			Timeout:      v.GetDuration("media_timeout"),
		},
		MaxPageSize:    v.GetInt("max_page_size"),
		MaxBodyBytes:   v.GetInt64("max_body_bytes"),
		AuthRateBurst:  v.GetInt("auth_rate_burst"),
		AuthRatePerSec: v.GetInt("auth_rate_per_sec"),
	}

	cfg.Addr = strings.TrimSpace(v.GetString("http_addr"))
	if cfg.Addr == "" {
		cfg.Addr = ":" + strings.TrimPrefix(strings.TrimSpace(v.GetString("port")), ":")
	}

	cfg.TrustedProxies = splitList(v.GetString("trusted_proxies"))
	cfg.CORSOrigins = splitList(v.GetString("cors_origins"))
	if len(cfg.CORSOrigins) == 0 && !cfg.Production() {
		cfg.CORSOrigins = []string{"*"}
	}

	if cfg.Media.Driver == MediaAuto {
		if cfg.Media.HasCloudinaryCredentials() {
			cfg.Media.Driver = MediaCloudinary
		} else {
			cfg.Media.Driver = MediaNone
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.Media.Driver {
	case MediaNone:
	case MediaCloudinary:
		if !c.Media.HasCloudinaryCredentials() {
			errs = append(errs, errors.New("cloudinary media driver needs CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET"))
		}
	case MediaLocal:
		if c.Media.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required for the local media driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MEDIA_DRIVER %q", c.Media.Driver))
	}
	if c.Media.MaxBytes <= 0 || c.Media.MaxDimension <= 0 || c.Media.Timeout <= 0 {
		errs = append(errs, errors.New("media limits must be positive"))
	}
	if c.MaxPageSize < 1 {
		errs = append(errs, errors.New("MAX_PAGE_SIZE must be >= 1"))
	}
	if c.AuthRateBurst < 1 || c.AuthRatePerSec < 1 {
		errs = append(errs, errors.New("auth rate limits must be >= 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
