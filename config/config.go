package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Mabdi59/tournapro/models"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	StoreDriver  string
	JWTSecretKey string
	ServerPort   int

	LockTimeout time.Duration
	RedisURL    string

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	Defaults Defaults
}

// Defaults apply to every tournament that does not override them.
type Defaults struct {
	Scoring models.ScoringRules   `yaml:"scoring"`
	Format  models.FormatSettings `yaml:"format"`
}

// LogoStorageEnabled reports whether all R2 settings are present.
func (c *Config) LogoStorageEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
// CONFIG_FILE may point at a YAML file with scoring and format defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StoreDriver:       envOr("STORE_DRIVER", StoreDriverPostgres),
		JWTSecretKey:      os.Getenv("JWT_SECRET_KEY"),
		RedisURL:          os.Getenv("REDIS_URL"),
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		Defaults: Defaults{
			Scoring: models.DefaultScoringRules(),
			Format:  models.DefaultFormatSettings(),
		},
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, cfg.StoreDriver)
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(envOr("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	cfg.LockTimeout, err = time.ParseDuration(envOr("LOCK_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TIMEOUT environment variable: %w", err)
	}
	if cfg.LockTimeout <= 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT must be positive, got %s", cfg.LockTimeout)
	}

	cfg.RateLimitRPS, err = strconv.ParseFloat(envOr("RATE_LIMIT_RPS", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS environment variable: %w", err)
	}
	cfg.RateLimitBurst, err = strconv.Atoi(envOr("RATE_LIMIT_BURST", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST environment variable: %w", err)
	}

	cfg.AllowedOrigins = []string{"*"}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	if err := cfg.applyPointsEnv(); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadDefaultsFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) applyPointsEnv() error {
	for name, dst := range map[string]*int{
		"POINTS_WIN":  &c.Defaults.Scoring.Win,
		"POINTS_DRAW": &c.Defaults.Scoring.Draw,
		"POINTS_LOSS": &c.Defaults.Scoring.Loss,
	} {
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s environment variable: %w", name, err)
		}
		*dst = v
	}
	return nil
}

// loadDefaultsFile overlays the YAML file on top of the current defaults;
// keys missing from the file keep their values.
func (c *Config) loadDefaultsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return c.overlayDefaults(data)
}

func (c *Config) overlayDefaults(data []byte) error {
	var file struct {
		Defaults Defaults `yaml:"defaults"`
	}
	file.Defaults = c.Defaults
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if file.Defaults.Format.Legs < 1 || file.Defaults.Format.Legs > 2 {
		return fmt.Errorf("defaults.format.legs must be 1 or 2, got %d", file.Defaults.Format.Legs)
	}
	c.Defaults = file.Defaults
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
