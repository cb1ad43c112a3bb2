package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingDatabaseURL is the configuration error for an unset DATABASE_URL.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// ErrMissingJWTSecret is returned when the API server has no signing key.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Config holds runtime settings. Values come from an optional YAML file
// named by PICKVS_CONFIG and are overridden by environment variables.
type Config struct {
	DatabaseURL       string        `yaml:"database_url"`
	DatabaseURLPooler string        `yaml:"database_url_pooler"`
	RedisURL          string        `yaml:"redis_url"`
	RESTPort          string        `yaml:"rest_port"`
	JWTSecret         string        `yaml:"jwt_secret"`
	JWTAlgorithm      string        `yaml:"jwt_algorithm"`
	AccessTokenTTL    time.Duration `yaml:"access_token_ttl"`
	CORSOrigins       []string      `yaml:"cors_origins"`
	GameBatchSize     int           `yaml:"game_batch_size"`
	OddsBatchSize     int           `yaml:"odds_batch_size"`
	ImportDir         string        `yaml:"import_dir"`
	Debug             bool          `yaml:"debug"`
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		RESTPort:       "8080",
		JWTAlgorithm:   "HS256",
		AccessTokenTTL: 60 * time.Minute,
		CORSOrigins:    []string{"*"},
		GameBatchSize:  500,
		OddsBatchSize:  1000,
		ImportDir:      "data",
	}
}

// Load reads .env (if present), then the YAML file, then the environment.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("PICKVS_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("DATABASE_URL", &cfg.DatabaseURL)
	str("DATABASE_URL_POOLER", &cfg.DatabaseURLPooler)
	str("REDIS_URL", &cfg.RedisURL)
	str("REST_PORT", &cfg.RESTPort)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("JWT_ALGORITHM", &cfg.JWTAlgorithm)
	str("IMPORT_DIR", &cfg.ImportDir)

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	if v, ok := lookup("ACCESS_TOKEN_EXPIRE_MINUTES"); ok && v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			return fmt.Errorf("invalid ACCESS_TOKEN_EXPIRE_MINUTES %q", v)
		}
		cfg.AccessTokenTTL = time.Duration(minutes) * time.Minute
	}

	for key, dst := range map[string]*int{
		"GAME_BATCH_SIZE": &cfg.GameBatchSize,
		"ODDS_BATCH_SIZE": &cfg.OddsBatchSize,
	} {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid %s %q", key, v)
			}
			*dst = n
		}
	}

	if v, ok := lookup("DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEBUG %q", v)
		}
		cfg.Debug = debug
	}

	return nil
}

// Validate checks settings every binary needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

// ValidateServer additionally checks the API server settings.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.JWTAlgorithm != "HS256" {
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm)
	}
	return nil
}

// LogFlags returns the standard logger flags; debug adds microseconds and
// the calling file.
func (c Config) LogFlags() int {
	if c.Debug {
		return log.LstdFlags | log.Lmicroseconds | log.Lshortfile
	}
	return log.LstdFlags
}

// LoaderDSN prefers the pooled connection string for bulk loads.
func (c Config) LoaderDSN() string {
	if c.DatabaseURLPooler != "" {
		return c.DatabaseURLPooler
	}
	return c.DatabaseURL
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
