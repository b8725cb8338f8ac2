package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/moicben/calendar-agent/internal/entity"
)

// ErrMissingAPIKey is returned when a command needing the search API has no key.
var ErrMissingAPIKey = errors.New("SERPER_API_KEY is not set")

// ErrMissingAgentCommand is returned when a command needing the agent has none configured.
var ErrMissingAgentCommand = errors.New("AGENT_COMMAND is not set")

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	SerperAPIKey       string  `mapstructure:"SERPER_API_KEY"`
	SerperBaseURL      string  `mapstructure:"SERPER_BASE_URL"`
	SearchCountry      string  `mapstructure:"SEARCH_GL"`
	SearchLanguage     string  `mapstructure:"SEARCH_HL"`
	SearchPageSize     int     `mapstructure:"SEARCH_PAGE_SIZE"`
	SearchRatePerSec   float64 `mapstructure:"SEARCH_RATE_PER_SECOND"`
	SearchCacheTTLSecs int     `mapstructure:"SEARCH_CACHE_TTL_SECONDS"`
	SearchCacheSize    int     `mapstructure:"SEARCH_CACHE_SIZE"`

	RedisAddr          string `mapstructure:"REDIS_ADDR"`
	RedisPassword      string `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int    `mapstructure:"REDIS_DB"`
	HarvestLockTTLSecs int    `mapstructure:"HARVEST_LOCK_TTL_SECONDS"`

	CalendarsDir string `mapstructure:"CALENDARS_DIR"`
	ProxiesFile  string `mapstructure:"PROXIES_FILE"`

	MaxBookingAttempts int    `mapstructure:"MAX_BOOKING_ATTEMPTS"`
	ProxyReuse         bool   `mapstructure:"PROXY_REUSE"`
	BookingParallelism int    `mapstructure:"BOOKING_PARALLELISM"`
	AttemptTimeoutSecs int    `mapstructure:"ATTEMPT_TIMEOUT_SECONDS"`
	Preflight          bool   `mapstructure:"BOOKING_PREFLIGHT"`
	AgentCommand       string `mapstructure:"AGENT_COMMAND"`
	AgentModel         string `mapstructure:"AGENT_MODEL"`
	AgentMaxSteps      int    `mapstructure:"AGENT_MAX_STEPS"`
	AgentTimeoutSecs   int    `mapstructure:"AGENT_TIMEOUT_SECONDS"`
	BrowserHeadless    bool   `mapstructure:"BROWSER_HEADLESS"`
	ChromePath         string `mapstructure:"CHROME_PATH"`

	ContactName           string `mapstructure:"CONTACT_NAME"`
	ContactEmail          string `mapstructure:"CONTACT_EMAIL"`
	ContactPhone          string `mapstructure:"CONTACT_PHONE"`
	ContactWebsite        string `mapstructure:"CONTACT_WEBSITE"`
	ContactCompany        string `mapstructure:"CONTACT_COMPANY"`
	ContactSlotPreference string `mapstructure:"CONTACT_SLOT_PREFERENCE"`
	ContactMeetingType    string `mapstructure:"CONTACT_MEETING_TYPE"`
	ContactMessage        string `mapstructure:"CONTACT_MESSAGE"`
}

var defaults = map[string]any{
	"SERVER_PORT":              "8080",
	"LOG_LEVEL":                "info",
	"SERPER_API_KEY":           "",
	"SERPER_BASE_URL":          "https://google.serper.dev",
	"SEARCH_GL":                "fr",
	"SEARCH_HL":                "fr",
	"SEARCH_PAGE_SIZE":         10,
	"SEARCH_RATE_PER_SECOND":   2.0,
	"SEARCH_CACHE_TTL_SECONDS": 6 * 3600,
	"SEARCH_CACHE_SIZE":        512,
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"HARVEST_LOCK_TTL_SECONDS": 600,
	"CALENDARS_DIR":            "calendars",
	"PROXIES_FILE":             "proxies",
	"MAX_BOOKING_ATTEMPTS":     5,
	"PROXY_REUSE":              true,
	"BOOKING_PARALLELISM":      1,
	"ATTEMPT_TIMEOUT_SECONDS":  600,
	"BOOKING_PREFLIGHT":        true,
	"AGENT_COMMAND":            "",
	"AGENT_MODEL":              "gpt-5-nano",
	"AGENT_MAX_STEPS":          20,
	"AGENT_TIMEOUT_SECONDS":    480,
	"BROWSER_HEADLESS":         true,
	"CHROME_PATH":              "",
	"CONTACT_NAME":             "",
	"CONTACT_EMAIL":            "",
	"CONTACT_PHONE":            "",
	"CONTACT_WEBSITE":          "",
	"CONTACT_COMPANY":          "",
	"CONTACT_SLOT_PREFERENCE":  "Premier créneau disponible dès demain dans les 7 prochains jours",
	"CONTACT_MEETING_TYPE":     "Visio-conférence Google Meet",
	"CONTACT_MESSAGE":          "",
}

// Load reads configuration from an optional .env file and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = v.ReadInConfig()

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration obtained with no file and no environment.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values are coherent. Credentials are checked by the
// commands that need them.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.SearchPageSize < 1 || c.SearchPageSize > 100 {
		return fmt.Errorf("SEARCH_PAGE_SIZE must be between 1 and 100, got %d", c.SearchPageSize)
	}
	if c.SearchRatePerSec < 0 {
		return fmt.Errorf("SEARCH_RATE_PER_SECOND must be >= 0, got %v", c.SearchRatePerSec)
	}
	if c.MaxBookingAttempts < 1 {
		return fmt.Errorf("MAX_BOOKING_ATTEMPTS must be >= 1, got %d", c.MaxBookingAttempts)
	}
	if c.BookingParallelism < 1 {
		return fmt.Errorf("BOOKING_PARALLELISM must be >= 1, got %d", c.BookingParallelism)
	}
	if c.AgentMaxSteps < 1 {
		return fmt.Errorf("AGENT_MAX_STEPS must be >= 1, got %d", c.AgentMaxSteps)
	}
	if c.AttemptTimeoutSecs < 0 || c.AgentTimeoutSecs < 0 || c.SearchCacheTTLSecs < 0 || c.HarvestLockTTLSecs < 0 {
		return errors.New("timeouts and TTLs must be >= 0")
	}
	if c.CalendarsDir == "" {
		return errors.New("CALENDARS_DIR must not be empty")
	}
	return nil
}

// RequireSearch checks the search API credentials.
func (c *Config) RequireSearch() error {
	if strings.TrimSpace(c.SerperAPIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// RequireAgent checks an agent command is configured.
func (c *Config) RequireAgent() error {
	if strings.TrimSpace(c.AgentCommand) == "" {
		return ErrMissingAgentCommand
	}
	return nil
}

// Contact returns the default booking identity.
func (c *Config) Contact() entity.Contact {
	return entity.Contact{
		Name:           c.ContactName,
		Email:          c.ContactEmail,
		Phone:          c.ContactPhone,
		Website:        c.ContactWebsite,
		Company:        c.ContactCompany,
		SlotPreference: c.ContactSlotPreference,
		MeetingType:    c.ContactMeetingType,
		Message:        c.ContactMessage,
	}
}

// HistoricPath is the append-only record of accepted URLs.
func (c *Config) HistoricPath() string { return filepath.Join(c.CalendarsDir, "historic") }

// NewPath holds the URLs discovered by the latest harvest.
func (c *Config) NewPath() string { return filepath.Join(c.CalendarsDir, "new") }

// ProceedPath holds the URLs waiting for a booking attempt.
func (c *Config) ProceedPath() string { return filepath.Join(c.CalendarsDir, "proceed.txt") }

// BookedPath records processed URLs.
func (c *Config) BookedPath() string { return filepath.Join(c.CalendarsDir, "booked") }

// AttemptTimeout is the watchdog for one booking attempt.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSecs) * time.Second
}

// AgentTimeout bounds one agent request.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.AgentTimeoutSecs) * time.Second
}

// SearchCacheTTL is how long search pages are reused.
func (c *Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.SearchCacheTTLSecs) * time.Second
}

// HarvestLockTTL bounds how long a crashed harvest can block the next one.
func (c *Config) HarvestLockTTL() time.Duration {
	return time.Duration(c.HarvestLockTTLSecs) * time.Second
}
