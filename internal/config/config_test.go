package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(values map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, envMap(map[string]string{
		"DATABASE_URL":                "postgres://db/pickvs",
		"DATABASE_URL_POOLER":         "postgres://pooler/pickvs",
		"JWT_SECRET":                  "s3cret",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "15",
		"CORS_ORIGINS":                "http://a.test, http://b.test,",
		"GAME_BATCH_SIZE":             "250",
		"DEBUG":                       "true",
		"IMPORT_DIR":                  "/srv/imports",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}

	if cfg.DatabaseURL != "postgres://db/pickvs" || cfg.JWTSecret != "s3cret" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("expected 15m TTL, got %v", cfg.AccessTokenTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.GameBatchSize != 250 || cfg.OddsBatchSize != 1000 {
		t.Errorf("unexpected batch sizes %d/%d", cfg.GameBatchSize, cfg.OddsBatchSize)
	}
	if !cfg.Debug {
		t.Error("expected debug on")
	}
	if cfg.ImportDir != "/srv/imports" {
		t.Errorf("unexpected import dir %q", cfg.ImportDir)
	}
	if cfg.LoaderDSN() != "postgres://pooler/pickvs" {
		t.Errorf("expected pooler DSN, got %s", cfg.LoaderDSN())
	}
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"ACCESS_TOKEN_EXPIRE_MINUTES", "soon"},
		{"ACCESS_TOKEN_EXPIRE_MINUTES", "0"},
		{"GAME_BATCH_SIZE", "-1"},
		{"ODDS_BATCH_SIZE", "lots"},
		{"DEBUG", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := Default()
			if err := applyEnv(&cfg, envMap(map[string]string{tt.key: tt.value})); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingDatabaseURL) {
		t.Fatalf("expected ErrMissingDatabaseURL, got %v", err)
	}

	cfg.DatabaseURL = "postgres://db/pickvs"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.ValidateServer(); !errors.Is(err, ErrMissingJWTSecret) {
		t.Fatalf("expected ErrMissingJWTSecret, got %v", err)
	}

	cfg.JWTSecret = "s3cret"
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.JWTAlgorithm = "RS256"
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("expected unsupported algorithm error")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pickvs.yaml")
	content := `
database_url: postgres://file/pickvs
rest_port: "9090"
access_token_ttl: 30m
odds_batch_size: 2000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PICKVS_CONFIG", path)
	t.Setenv("DATABASE_URL", "postgres://env/pickvs")
	t.Setenv("REST_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DatabaseURL != "postgres://env/pickvs" {
		t.Errorf("environment must override the file, got %s", cfg.DatabaseURL)
	}
	if cfg.RESTPort != "9090" {
		t.Errorf("expected port from file, got %s", cfg.RESTPort)
	}
	if cfg.AccessTokenTTL != 30*time.Minute || cfg.OddsBatchSize != 2000 {
		t.Errorf("unexpected file values %+v", cfg)
	}
	if cfg.GameBatchSize != 500 {
		t.Errorf("expected default game batch, got %d", cfg.GameBatchSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("PICKVS_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLogFlags(t *testing.T) {
	cfg := Default()
	if cfg.ImportDir != "data" {
		t.Errorf("unexpected default import dir %q", cfg.ImportDir)
	}
	if cfg.LogFlags() != log.LstdFlags {
		t.Errorf("expected standard flags, got %d", cfg.LogFlags())
	}

	cfg.Debug = true
	if cfg.LogFlags()&log.Lshortfile == 0 || cfg.LogFlags()&log.Lmicroseconds == 0 {
		t.Errorf("debug flags missing file and microseconds: %d", cfg.LogFlags())
	}
}
