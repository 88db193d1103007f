package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Server.Port)
	}
	if cfg.Coverage.NameMatchThreshold != 0.75 {
		t.Errorf("expected threshold 0.75, got %v", cfg.Coverage.NameMatchThreshold)
	}
	if cfg.Coverage.FullLoadHours != 40 {
		t.Errorf("expected full load 40, got %v", cfg.Coverage.FullLoadHours)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("expected 30s oracle timeout, got %v", cfg.LLM.Timeout)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9000"
coverage:
  name_match_threshold: 0.8
  timezone: America/New_York
llm:
  timeout: 5s
  providers:
    - name: primary
      provider: openai
      model: gpt-4o-mini
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "gm-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9100" {
		t.Errorf("env should win over file, got port %s", cfg.Server.Port)
	}
	if cfg.Coverage.NameMatchThreshold != 0.8 {
		t.Errorf("expected threshold 0.8, got %v", cfg.Coverage.NameMatchThreshold)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.LLM.Timeout)
	}
	if len(cfg.LLM.Providers) != 2 {
		t.Fatalf("expected file provider plus gemini from env, got %d", len(cfg.LLM.Providers))
	}
	if cfg.LLM.Providers[0].APIKey != "sk-test" || cfg.LLM.Providers[0].Model != "gpt-4o-mini" {
		t.Errorf("expected env key merged into file provider, got %+v", cfg.LLM.Providers[0])
	}
	if cfg.LLM.Providers[1].Provider != "gemini" {
		t.Errorf("expected gemini appended, got %s", cfg.LLM.Providers[1].Provider)
	}
	if cfg.Coverage.Location().String() != "America/New_York" {
		t.Errorf("unexpected location %s", cfg.Coverage.Location())
	}
}

func TestInvalidThresholdFallsBack(t *testing.T) {
	t.Setenv("NAME_MATCH_THRESHOLD", "1.7")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Coverage.NameMatchThreshold != 0.75 {
		t.Errorf("expected fallback 0.75, got %v", cfg.Coverage.NameMatchThreshold)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url      string
		addr     string
		password string
		db       int
	}{
		{"redis://localhost:6379", "localhost:6379", "", 0},
		{"redis://:secret@cache:6380/2", "cache:6380", "secret", 2},
		{"redis://user:pw@10.0.0.1:6379/1", "10.0.0.1:6379", "pw", 1},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			c := DefaultConfig()
			c.parseRedisURL(tt.url)
			if c.Redis.Addr != tt.addr || c.Redis.Password != tt.password || c.Redis.DB != tt.db {
				t.Errorf("got %+v", c.Redis)
			}
		})
	}
}

func TestUnknownTimezoneIsUTC(t *testing.T) {
	c := CoverageConfig{Timezone: "Mars/Olympus"}
	if c.Location() != time.UTC {
		t.Errorf("expected UTC fallback")
	}
}

func TestServerDefaultsAndCORSEnv(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://app.example.com, http://localhost:5173,")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Server.CORSOrigins; len(got) != 2 || got[1] != "http://localhost:5173" {
		t.Errorf("unexpected origins %q", got)
	}
	if cfg.Server.RateLimitRPS != 20 || cfg.Server.RateLimitBurst != 40 || cfg.Server.SyncPerMinute != 2 {
		t.Errorf("unexpected rate limits %+v", cfg.Server)
	}
}

func TestGmailConfigFromEnv(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gmail.Configured() || cfg.Gmail.UserEmail != "me" || cfg.Gmail.SearchDays != 30 {
		t.Errorf("unexpected gmail defaults %+v", cfg.Gmail)
	}

	t.Setenv("GMAIL_CLIENT_ID", "client")
	t.Setenv("GMAIL_CLIENT_SECRET", "secret")
	t.Setenv("GMAIL_REFRESH_TOKEN", "refresh")
	t.Setenv("GMAIL_SEARCH_DAYS", "7")
	cfg, err = Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Gmail.Configured() || cfg.Gmail.SearchDays != 7 {
		t.Errorf("expected gmail configured from env, got %+v", cfg.Gmail)
	}
}
