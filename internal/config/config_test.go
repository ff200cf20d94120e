package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q, expected 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("default driver = %q, expected sqlite", cfg.Database.Driver)
	}
	if cfg.Membership.DefaultMaxMembers != 50 {
		t.Errorf("default max members = %d, expected 50", cfg.Membership.DefaultMaxMembers)
	}
	if cfg.Membership.InviteTTLDays != 14 || cfg.Membership.RequestTTLDays != 30 {
		t.Errorf("default TTLs = (%d, %d), expected (14, 30)",
			cfg.Membership.InviteTTLDays, cfg.Membership.RequestTTLDays)
	}
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9000"
database:
  driver: postgres
  dsn: "host=db user=app dbname=teamforge"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("port = %q, expected 9000", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, expected postgres", cfg.Database.Driver)
	}
	// Unset sections fall back to defaults.
	if cfg.JWT.ExpireHour != 24 {
		t.Errorf("expire hour = %d, expected 24", cfg.JWT.ExpireHour)
	}
	if cfg.Membership.SweepIntervalMins != 60 {
		t.Errorf("sweep interval = %d, expected 60", cfg.Membership.SweepIntervalMins)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7777")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("LDAP_ENABLED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "7777" {
		t.Errorf("port = %q, expected env override 7777", cfg.Server.Port)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("driver = %q, expected env override mysql", cfg.Database.Driver)
	}
	if cfg.JWT.Secret != "env-secret" {
		t.Errorf("secret = %q, expected env override", cfg.JWT.Secret)
	}
	if !cfg.LDAP.Enabled {
		t.Error("expected LDAP enabled from env")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not: valid"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}
