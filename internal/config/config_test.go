package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// allEnvVars lists every variable Load reads, cleared between tests.
var allEnvVars = []string{
	"DATABASE_URL", "HTTP_ADDR", "NATS_URL", "AUTH_TOKEN", "TIMEZONE", "CONFIG",
	"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL", "MAX_TOKENS", "LLM_TIMEOUT", "MAX_RETRIES",
	"WORKERS", "STORE_TIMEOUT", "MAILDIR", "FEEDS", "AUDIT_DIR", "PRUNE_AGE",
	"SYNC_INTERVAL", "SYNC_S3_BUCKET", "SYNC_S3_ENDPOINT", "SYNC_S3_REGION",
	"SYNC_S3_KEY", "SYNC_GIT_REPO", "SYNC_GIT_FILE", "SYNC_GIT_BRANCH",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(Prefix+key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantHTTPAddr string
		wantNATSURL  string
		wantFeeds    int
	}{
		{
			name:         "Defaults",
			env:          map[string]string{},
			wantHTTPAddr: ":8080",
		},
		{
			name: "Custom",
			env: map[string]string{
				"CAMPUSEVENTS_DATABASE_URL": "postgres://db:5432/events",
				"CAMPUSEVENTS_HTTP_ADDR":    ":3000",
				"CAMPUSEVENTS_NATS_URL":     "nats://localhost:4222",
				"CAMPUSEVENTS_FEEDS":        "https://a.example/rss, ,https://b.example/rss",
			},
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
			wantFeeds:    2,
		},
		{
			name:    "BadTimezone",
			env:     map[string]string{"CAMPUSEVENTS_TIMEZONE": "Mars/Olympus"},
			wantErr: true,
		},
		{
			name:    "BadWorkers",
			env:     map[string]string{"CAMPUSEVENTS_WORKERS": "many"},
			wantErr: true,
		},
		{
			name:    "ZeroWorkers",
			env:     map[string]string{"CAMPUSEVENTS_WORKERS": "0"},
			wantErr: true,
		},
		{
			name:    "BadTimeout",
			env:     map[string]string{"CAMPUSEVENTS_LLM_TIMEOUT": "soon"},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["CAMPUSEVENTS_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["CAMPUSEVENTS_DATABASE_URL"])
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
			if len(cfg.Feeds) != tc.wantFeeds {
				t.Errorf("Feeds = %v, want %d entries", cfg.Feeds, tc.wantFeeds)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAllEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.MaxTokens != 3000 || cfg.MaxRetries != 1 || cfg.Workers != 4 {
		t.Errorf("MaxTokens=%d MaxRetries=%d Workers=%d", cfg.MaxTokens, cfg.MaxRetries, cfg.Workers)
	}
	if cfg.LLMTimeout != 60*time.Second || cfg.StoreTimeout != 10*time.Second {
		t.Errorf("LLMTimeout=%v StoreTimeout=%v", cfg.LLMTimeout, cfg.StoreTimeout)
	}
	if cfg.PruneAge != 2*time.Hour {
		t.Errorf("PruneAge = %v, want 2h", cfg.PruneAge)
	}
	if cfg.SyncInterval != 3*time.Minute {
		t.Errorf("SyncInterval = %v, want 3m", cfg.SyncInterval)
	}
	if cfg.SyncS3Key != "campusevents/backup.jsonl" || cfg.SyncGitFile != "events.jsonl" || cfg.SyncGitBranch != "main" {
		t.Errorf("sync defaults: key=%q file=%q branch=%q", cfg.SyncS3Key, cfg.SyncGitFile, cfg.SyncGitBranch)
	}
	if err := cfg.RequireDatabase(); err != ErrNoDatabase {
		t.Errorf("RequireDatabase = %v, want ErrNoDatabase", err)
	}
}

func TestLoadSyncDisabled(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("CAMPUSEVENTS_SYNC_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval = %v, want 0 (disabled)", cfg.SyncInterval)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearAllEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CAMPUSEVENTS_LLM_MODEL=local-model\nCAMPUSEVENTS_HTTP_ADDR=:9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Already-set variables win over the file.
	t.Setenv("CAMPUSEVENTS_HTTP_ADDR", ":7000")
	// Registered so the value from the file is removed after the test.
	t.Setenv("CAMPUSEVENTS_LLM_MODEL", "")
	os.Unsetenv("CAMPUSEVENTS_LLM_MODEL")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLMModel != "local-model" {
		t.Errorf("LLMModel = %q, want value from .env", cfg.LLMModel)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Errorf("HTTPAddr = %q, want environment value", cfg.HTTPAddr)
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(Prefix+tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
