// Package config provides the auto-responder configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned by Load when GOOGLE_API_KEY is not set.
var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY is not set")

// Config holds everything the bot, webhook and supervisor read at startup.
type Config struct {
	APIKey        string
	BotName       string
	CommandPrefix string

	// AllowedNumbers and AdminNumbers are normalized phone numbers.
	AllowedNumbers []string
	AdminNumbers   []string

	Model             string
	Preamble          string // empty means the built-in preamble
	GenerationTimeout time.Duration
	ShowTyping        bool

	StoreDSN      string
	KeepAliveAddr string
	WebhookAddr   string
	QueueSize     int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables. The API key is
// required; everything else has a default.
func Load() (*Config, error) {
	cfg, err := LoadWithoutKey()
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return cfg, nil
}

// LoadWithoutKey is Load for processes that never call the generation
// service themselves, like the supervisor.
func LoadWithoutKey() (*Config, error) {
	cfg := &Config{
		APIKey:            strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
		BotName:           getEnv("BOT_NAME", "WhatsApp AI Bot"),
		CommandPrefix:     getEnv("COMMAND_PREFIX", "!"),
		AllowedNumbers:    getEnvList("ALLOWED_NUMBERS"),
		AdminNumbers:      getEnvList("ADMIN_NUMBERS"),
		Model:             getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		Preamble:          os.Getenv("PROMPT_PREAMBLE"),
		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 0),
		ShowTyping:        getEnvBool("SHOW_TYPING", true),
		StoreDSN:          getEnv("STORE_DSN", "file:whatsapp.db?_foreign_keys=on"),
		KeepAliveAddr:     getEnv("KEEPALIVE_ADDR", ":3000"),
		WebhookAddr:       getEnv("WEBHOOK_ADDR", ":8080"),
		QueueSize:         getEnvInt("DISPATCH_QUEUE_SIZE", 64),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that have no usable zero value.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("GEMINI_MODEL cannot be empty")
	}
	if c.StoreDSN == "" {
		return errors.New("STORE_DSN cannot be empty")
	}
	if c.QueueSize <= 0 {
		return errors.New("DISPATCH_QUEUE_SIZE must be > 0")
	}
	if c.GenerationTimeout < 0 {
		return errors.New("GENERATION_TIMEOUT cannot be negative")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// NormalizePhone removes all non-numeric characters from a phone number.
func NormalizePhone(phone string) string {
	return nonDigit.ReplaceAllString(phone, "")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// getEnvList splits a comma separated list of phone numbers, dropping
// entries that normalize to nothing.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if n := NormalizePhone(part); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
