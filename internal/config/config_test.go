package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("port = %s, want 8000", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("dev defaults should validate: %v", err)
	}
}

func TestValidateProductionRequiresDatabase(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADMIN_API_KEY", "k")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("production without DATABASE_URL must not validate")
	}
}

func TestValidateProductionRequiresCredentials(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/triage")
	t.Setenv("ADMIN_API_KEY", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("production without admin credentials must not validate")
	}
}

func TestAuthConfigHashesKey(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("ADMIN_API_KEY", "raw-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ac := cfg.AuthConfig()
	if ac.APIKeyHash == "" || ac.APIKeyHash == "raw-key" {
		t.Errorf("api key must be stored hashed, got %q", ac.APIKeyHash)
	}
}
