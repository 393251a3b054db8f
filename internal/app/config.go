package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/catalog-entry/internal/domain/product"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CATALOG_ prefix), flags, or YAML config files.
type Config struct {
	Addr                string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL         string `usage:"PostgreSQL connection URL (CATALOG_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	PlaceholderImageURL string `default:"https://placehold.co/600x400?text=No+Image" usage:"Image shown when a stored URL is unusable" flag:"placeholder-image-url"`
	Storage             StorageConfig
	Limits              LimitsConfig
	Form                FormConfig
	RateLimit           RateLimitConfig
	CORS                CORSConfig
	Graceful            GracefulConfig
}

// StorageConfig locates the OSS bucket that holds product images. Public
// URLs have the form https://{Account}.{Domain}/{Container}/{name}.
type StorageConfig struct {
	Endpoint           string `usage:"OSS endpoint override"`
	Region             string `default:"cn-hangzhou" usage:"OSS region"`
	Account            string `usage:"OSS bucket name"`
	Domain             string `default:"oss-cn-hangzhou.aliyuncs.com" usage:"Public domain of the bucket"`
	Container          string `default:"images" usage:"Key prefix for product images"`
	AccessKeyID        string `usage:"OSS access key ID (falls back to OSS_ACCESS_KEY_ID)"`
	AccessKeySecret    string `usage:"OSS access key secret (falls back to OSS_ACCESS_KEY_SECRET)"`
	CleanupOrphans     bool   `default:"true" usage:"Delete uploaded images of a rolled back product"`
	CleanupConcurrency int    `default:"4" usage:"Parallel deletes during cleanup"`
}

// LimitsConfig holds validation thresholds for submissions.
type LimitsConfig struct {
	MaxImageSizeMB       int `default:"5"`
	MaxDimension         int `default:"2000"`
	MinDimension         int `default:"300"`
	MaxImages            int `default:"5"`
	MaxNameLength        int `default:"100"`
	MaxDescriptionLength int `default:"1000"`
}

// Product converts the thresholds for the validator.
func (c LimitsConfig) Product() product.Limits {
	return product.Limits{
		MaxImageSizeMB:       c.MaxImageSizeMB,
		MaxDimension:         c.MaxDimension,
		MinDimension:         c.MinDimension,
		MaxImages:            c.MaxImages,
		MaxNameLength:        c.MaxNameLength,
		MaxDescriptionLength: c.MaxDescriptionLength,
	}
}

// FormConfig bounds multipart form parsing.
type FormConfig struct {
	MaxMemoryMB int `default:"32" usage:"Form bytes kept in memory before spilling to disk"`
	MaxBodyMB   int `default:"40" usage:"Maximum product submission size"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max     int           `default:"30" usage:"Max requests per window"`
	Window  time.Duration `default:"1m" usage:"Rate limit window duration"`
	Methods []string      `default:"POST" usage:"Limited HTTP methods"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from flags, environment variables and YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(loaderConfig(false))
}

// LoadEnvConfig is LoadConfig without command-line flags, for tools that
// parse their own.
func LoadEnvConfig() (*Config, error) {
	return loadConfig(loaderConfig(true))
}

func loaderConfig(skipFlags bool) aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "CATALOG",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/catalog/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CATALOG_DATABASE_URL or DATABASE_URL")
	}
	if c.Storage.Account == "" {
		return errors.New("storage account is required: set CATALOG_STORAGE_ACCOUNT")
	}
	if c.Limits.MinDimension > c.Limits.MaxDimension {
		return errors.Errorf("limits: min dimension %d exceeds max dimension %d",
			c.Limits.MinDimension, c.Limits.MaxDimension)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the CATALOG_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
