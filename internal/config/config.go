package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`
	Slack     SlackConfig     `yaml:"slack"`
	Gmail     GmailConfig     `yaml:"gmail"`
	Redis     RedisConfig     `yaml:"redis"`
	Coverage  CoverageConfig  `yaml:"coverage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Seed      SeedConfig      `yaml:"seed"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"` // debug, release, test
	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	SyncPerMinute  int      `yaml:"sync_per_minute"` // time-off syncs per client
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LLMConfig configures the scoring/classification oracle. Providers are tried
// in order until one succeeds.
type LLMConfig struct {
	Providers         []LLMProviderConfig `yaml:"providers"`
	Timeout           time.Duration       `yaml:"timeout"`
	MaxRetries        int                 `yaml:"max_retries"`
	RetryBackoff      time.Duration       `yaml:"retry_backoff"`
	RequestsPerMinute int                 `yaml:"requests_per_minute"`
}

type LLMProviderConfig struct {
	Name        string  `yaml:"name"`
	Provider    string  `yaml:"provider"` // gemini, openai, azure, anthropic, ollama
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type SlackConfig struct {
	BotToken   string `yaml:"bot_token"`
	ChannelID  string `yaml:"channel_id"`
	PingUserID string `yaml:"ping_user_id"`
}

// GmailConfig holds the OAuth client and a stored refresh token for a
// read-only mailbox scan. All three credentials are required.
type GmailConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	UserEmail    string `yaml:"user_email"` // "me" is the authorized account
	SearchDays   int    `yaml:"search_days"`
}

func (g *GmailConfig) Configured() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RefreshToken != ""
}

// RedisConfig for optional async suggestion queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CoverageConfig struct {
	NameMatchThreshold float64 `yaml:"name_match_threshold"`
	FullLoadHours      float64 `yaml:"full_load_hours"`
	Timezone           string  `yaml:"timezone"`
	HolidayCountry     string  `yaml:"holiday_country"`
	WorkStart          string  `yaml:"work_start"` // HH:MM
	WorkEnd            string  `yaml:"work_end"`   // HH:MM
}

type SchedulerConfig struct {
	TimeOffSyncCron  string `yaml:"timeoff_sync_cron"` // empty disables
	TimeOffSyncHours int    `yaml:"timeoff_sync_hours"`
	ReconcileCron    string `yaml:"reconcile_cron"`
	GmailScanCron    string `yaml:"gmail_scan_cron"` // empty disables
}

type SeedConfig struct {
	Enabled bool `yaml:"enabled"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.overrideFromEnv()
	cfg.applyDefaults()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8000",
			Mode:           "debug",
			CORSOrigins:    []string{"http://localhost:3000"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
			SyncPerMinute:  2,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "vantage.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        4,
			RetryBackoff:      2 * time.Second,
			RequestsPerMinute: 15,
		},
		Gmail: GmailConfig{
			UserEmail:  "me",
			SearchDays: 30,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Coverage: CoverageConfig{
			NameMatchThreshold: 0.75,
			FullLoadHours:      40,
			Timezone:           "UTC",
			HolidayCountry:     "NONE",
			WorkStart:          "09:00",
			WorkEnd:            "18:00",
		},
		Scheduler: SchedulerConfig{
			TimeOffSyncHours: 24,
			ReconcileCron:    "5 0 * * *",
		},
		Seed: SeedConfig{
			Enabled: true,
		},
	}
}

// applyDefaults fills values a partial config file may have zeroed.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = def.LLM.Timeout
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = def.LLM.MaxRetries
	}
	if c.LLM.RetryBackoff <= 0 {
		c.LLM.RetryBackoff = def.LLM.RetryBackoff
	}
	if c.Coverage.NameMatchThreshold <= 0 || c.Coverage.NameMatchThreshold > 1 {
		c.Coverage.NameMatchThreshold = def.Coverage.NameMatchThreshold
	}
	if c.Coverage.FullLoadHours <= 0 {
		c.Coverage.FullLoadHours = def.Coverage.FullLoadHours
	}
	if c.Coverage.Timezone == "" {
		c.Coverage.Timezone = def.Coverage.Timezone
	}
	if c.Coverage.WorkStart == "" {
		c.Coverage.WorkStart = def.Coverage.WorkStart
	}
	if c.Coverage.WorkEnd == "" {
		c.Coverage.WorkEnd = def.Coverage.WorkEnd
	}
	if c.Scheduler.TimeOffSyncHours <= 0 {
		c.Scheduler.TimeOffSyncHours = def.Scheduler.TimeOffSyncHours
	}
	if c.Gmail.UserEmail == "" {
		c.Gmail.UserEmail = def.Gmail.UserEmail
	}
	if c.Gmail.SearchDays <= 0 {
		c.Gmail.SearchDays = def.Gmail.SearchDays
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = def.Server.CORSOrigins
	}
	if c.Server.RateLimitRPS <= 0 {
		c.Server.RateLimitRPS = def.Server.RateLimitRPS
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = def.Server.RateLimitBurst
	}
	if c.Server.SyncPerMinute <= 0 {
		c.Server.SyncPerMinute = def.Server.SyncPerMinute
	}
}

// Location returns the configured coverage timezone, falling back to UTC.
func (c *CoverageConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		c.Coverage.Timezone = tz
	}
	if threshold := os.Getenv("NAME_MATCH_THRESHOLD"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			c.Coverage.NameMatchThreshold = v
		}
	}

	// A single provider can be configured entirely from the environment.
	// Gemini is the default, matching the keys most deployments carry.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.upsertProvider("gemini", func(p *LLMProviderConfig) { p.APIKey = key })
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.upsertProvider("openai", func(p *LLMProviderConfig) {
			p.APIKey = key
			if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
				p.BaseURL = baseURL
			}
			if model := os.Getenv("OPENAI_MODEL"); model != "" {
				p.Model = model
			}
		})
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.upsertProvider("anthropic", func(p *LLMProviderConfig) { p.APIKey = key })
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		c.upsertProvider("ollama", func(p *LLMProviderConfig) { p.BaseURL = baseURL })
	}

	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		c.Slack.BotToken = token
	}
	if channel := os.Getenv("SLACK_CHANNEL_ID"); channel != "" {
		c.Slack.ChannelID = channel
	}
	if pingUser := os.Getenv("SLACK_PING_USER_ID"); pingUser != "" {
		c.Slack.PingUserID = pingUser
	}

	if id := os.Getenv("GMAIL_CLIENT_ID"); id != "" {
		c.Gmail.ClientID = id
	}
	if secret := os.Getenv("GMAIL_CLIENT_SECRET"); secret != "" {
		c.Gmail.ClientSecret = secret
	}
	if token := os.Getenv("GMAIL_REFRESH_TOKEN"); token != "" {
		c.Gmail.RefreshToken = token
	}
	if user := os.Getenv("GMAIL_USER_EMAIL"); user != "" {
		c.Gmail.UserEmail = user
	}
	if days := os.Getenv("GMAIL_SEARCH_DAYS"); days != "" {
		if v, err := strconv.Atoi(days); err == nil {
			c.Gmail.SearchDays = v
		}
	}

	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

func (c *Config) upsertProvider(provider string, apply func(p *LLMProviderConfig)) {
	for i := range c.LLM.Providers {
		if c.LLM.Providers[i].Provider == provider {
			apply(&c.LLM.Providers[i])
			return
		}
	}
	p := LLMProviderConfig{Name: provider + "-env", Provider: provider}
	apply(&p)
	c.LLM.Providers = append(c.LLM.Providers, p)
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
