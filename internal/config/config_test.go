package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "")
	t.Setenv("PORT", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("NODE_ENV", "")

	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":5000" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.StoreDriver != StoreMemory {
		t.Fatalf("unexpected store driver %q", cfg.StoreDriver)
	}
	if cfg.TokenTTL != 168*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.TokenTTL)
	}
	if cfg.Media.Driver != MediaNone {
		t.Fatalf("expected media driver none without credentials, got %q", cfg.Media.Driver)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("expected wildcard CORS in development, got %v", cfg.CORSOrigins)
	}
	if cfg.MaxPageSize != 50 {
		t.Fatalf("unexpected max page size %d", cfg.MaxPageSize)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load(noEnvFile(t))
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoadAutoSelectsCloudinary(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")

	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Media.Driver != MediaCloudinary {
		t.Fatalf("expected cloudinary, got %q", cfg.Media.Driver)
	}
	if cfg.Media.Folder != "blog-app" {
		t.Fatalf("unexpected folder %q", cfg.Media.Folder)
	}
}

func TestLoadPostgresNeedsDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := Load(noEnvFile(t))
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("CORS_ORIGINS", "")
	os.Unsetenv("CORS_ORIGINS")
	path := filepath.Join(t.TempDir(), ".env")
	body := "JWT_SECRET=from-file\nCORS_ORIGINS=https://a.example, https://b.example\nPORT=8081\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("CORS_ORIGINS")
		os.Unsetenv("PORT")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTSecret != "from-file" {
		t.Fatalf("unexpected secret %q", cfg.JWTSecret)
	}
	if cfg.Addr != ":8081" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" || cfg.TrustedProxies[1] != "127.0.0.1" {
		t.Fatalf("unexpected trusted proxies %v", cfg.TrustedProxies)
	}
}
