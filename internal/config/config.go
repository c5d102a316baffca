// Package config loads campusevents settings from the environment, an
// optional .env file and an optional TOML or YAML rules file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "CAMPUSEVENTS_"

// ErrNoDatabase is returned by RequireDatabase when no URL is configured.
var ErrNoDatabase = errors.New(Prefix + "DATABASE_URL is required")

type Config struct {
	DatabaseURL string // CAMPUSEVENTS_DATABASE_URL (required by store-backed commands)
	HTTPAddr    string // CAMPUSEVENTS_HTTP_ADDR (default ":8080")
	NATSURL     string // CAMPUSEVENTS_NATS_URL (optional, empty = no bus)
	AuthToken   string // CAMPUSEVENTS_AUTH_TOKEN (optional, empty = auth disabled)
	Timezone    string // CAMPUSEVENTS_TIMEZONE (default "America/New_York")
	RulesPath   string // CAMPUSEVENTS_CONFIG (optional TOML or YAML rules file)

	// Extraction
	LLMBaseURL string        // CAMPUSEVENTS_LLM_BASE_URL (default OpenAI)
	LLMAPIKey  string        // CAMPUSEVENTS_LLM_API_KEY
	LLMModel   string        // CAMPUSEVENTS_LLM_MODEL (default "gpt-4o-mini")
	MaxTokens  int           // CAMPUSEVENTS_MAX_TOKENS (default 3000, words of input)
	LLMTimeout time.Duration // CAMPUSEVENTS_LLM_TIMEOUT (default 60s)
	MaxRetries int           // CAMPUSEVENTS_MAX_RETRIES (default 1)

	// Pipeline
	Workers      int           // CAMPUSEVENTS_WORKERS (default 4)
	StoreTimeout time.Duration // CAMPUSEVENTS_STORE_TIMEOUT (default 10s)
	Maildir      string        // CAMPUSEVENTS_MAILDIR (optional)
	Feeds        []string      // CAMPUSEVENTS_FEEDS (comma-separated RSS URLs)
	AuditDir     string        // CAMPUSEVENTS_AUDIT_DIR (optional, empty = no audit files)
	PruneAge     time.Duration // CAMPUSEVENTS_PRUNE_AGE (default 2h)

	// Sync settings
	SyncInterval   time.Duration // CAMPUSEVENTS_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // CAMPUSEVENTS_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // CAMPUSEVENTS_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // CAMPUSEVENTS_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // CAMPUSEVENTS_SYNC_S3_KEY (default "campusevents/backup.jsonl"; {date} expands to the backup day)
	SyncGitRepo    string        // CAMPUSEVENTS_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // CAMPUSEVENTS_SYNC_GIT_FILE (default "events.jsonl")
	SyncGitBranch  string        // CAMPUSEVENTS_SYNC_GIT_BRANCH (default "main")
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    env("DATABASE_URL"),
		HTTPAddr:       envOrDefault("HTTP_ADDR", ":8080"),
		NATSURL:        env("NATS_URL"),
		AuthToken:      env("AUTH_TOKEN"),
		Timezone:       envOrDefault("TIMEZONE", "America/New_York"),
		RulesPath:      env("CONFIG"),
		LLMBaseURL:     envOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      env("LLM_API_KEY"),
		LLMModel:       envOrDefault("LLM_MODEL", "gpt-4o-mini"),
		Maildir:        env("MAILDIR"),
		Feeds:          splitList(env("FEEDS")),
		AuditDir:       env("AUDIT_DIR"),
		SyncS3Bucket:   env("SYNC_S3_BUCKET"),
		SyncS3Endpoint: env("SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("SYNC_S3_KEY", "campusevents/backup.jsonl"),
		SyncGitRepo:    env("SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("SYNC_GIT_FILE", "events.jsonl"),
		SyncGitBranch:  envOrDefault("SYNC_GIT_BRANCH", "main"),
	}

	var err error
	for _, d := range []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"LLM_TIMEOUT", "60s", &c.LLMTimeout},
		{"STORE_TIMEOUT", "10s", &c.StoreTimeout},
		{"PRUNE_AGE", "2h", &c.PruneAge},
		{"SYNC_INTERVAL", "3m", &c.SyncInterval},
	} {
		if *d.dst, err = time.ParseDuration(envOrDefault(d.key, d.fallback)); err != nil {
			return nil, fmt.Errorf("%s%s: %w", Prefix, d.key, err)
		}
	}
	for _, n := range []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"MAX_TOKENS", 3000, &c.MaxTokens},
		{"MAX_RETRIES", 1, &c.MaxRetries},
		{"WORKERS", 4, &c.Workers},
	} {
		if *n.dst, err = envInt(n.key, n.fallback); err != nil {
			return nil, err
		}
	}
	if c.Workers < 1 {
		return nil, fmt.Errorf("%sWORKERS must be at least 1", Prefix)
	}
	if _, err := c.Location(); err != nil {
		return nil, err
	}
	return c, nil
}

// RequireDatabase reports ErrNoDatabase when DatabaseURL is empty.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrNoDatabase
	}
	return nil
}

// Location loads the configured canonical timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%sTIMEZONE: %w", Prefix, err)
	}
	return loc, nil
}

func env(key string) string {
	return os.Getenv(Prefix + key)
}

func envOrDefault(key, fallback string) string {
	if v := env(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", Prefix, key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
