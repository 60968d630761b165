package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("MAX_IN_FLIGHT", "")
	t.Setenv("LISTINGS_SOURCE", "")

	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr: got %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.MaxInFlight != 1 {
		t.Errorf("MaxInFlight: got %d, want 1", cfg.MaxInFlight)
	}
	if cfg.ListingsSource != "static" {
		t.Errorf("ListingsSource: got %q, want static", cfg.ListingsSource)
	}
	if cfg.NeedsDB() {
		t.Error("default config should not need a database")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MODEL_TYPE", "Linear")
	t.Setenv("MAX_IN_FLIGHT", "4")
	t.Setenv("LISTINGS_SEED", "yes")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("ESTIMATE_LOG_DB", "true")

	cfg := Load()
	if cfg.ModelType != "linear" {
		t.Errorf("ModelType: got %q, want linear", cfg.ModelType)
	}
	if cfg.MaxInFlight != 4 {
		t.Errorf("MaxInFlight: got %d, want 4", cfg.MaxInFlight)
	}
	if !cfg.ListingsSeed {
		t.Error("ListingsSeed should be true")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("CORSOrigins: got %v", cfg.CORSOrigins)
	}
	if !cfg.NeedsDB() {
		t.Error("estimate log in db should need a database")
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		DBDriver:         "postgres",
		PostgresHost:     "db",
		PostgresPort:     "5432",
		PostgresUser:     "u",
		PostgresPassword: "p",
		PostgresDB:       "cars",
		PostgresSSLMode:  "disable",
	}
	want := "host=db port=5432 user=u password=p dbname=cars sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN: got %q, want %q", got, want)
	}

	cfg.DBDSN = "postgres://x"
	if got := cfg.DSN(); got != "postgres://x" {
		t.Errorf("DSN override: got %q", got)
	}
}
