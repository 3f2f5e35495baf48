package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config is the root configuration for OuraMate.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Telegram TelegramConfig `json:"telegram"`
	Oura     OuraConfig     `json:"oura"`
	AI       AIConfig       `json:"ai"`
	Chat     ChatConfig     `json:"chat"`
	Server   ServerConfig   `json:"server"`
	Report   ReportConfig   `json:"report"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	DBPath   string `json:"dbPath"`
	LogLevel string `json:"logLevel"`
}

type TelegramConfig struct {
	Token     string `json:"token"`
	ChatID    string `json:"chatId"`    // allowed chat; empty = open instance
	PublicURL string `json:"publicUrl"` // base URL the webhook is registered under
	ParseMode string `json:"parseMode"`
}

type OuraConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURL  string `json:"redirectUrl"`
}

type AIConfig struct {
	Model       string `json:"model"`
	APIKey      string `json:"apiKey"`
	BaseURL     string `json:"baseUrl,omitempty"`
	Language    string `json:"language"` // analysis language code (en, zh, ja, ...)
	PromptsFile string `json:"promptsFile,omitempty"`
}

type ChatConfig struct {
	// FreeFormAsk routes non-command text through the /ask path instead
	// of replying with the unknown-command notice.
	FreeFormAsk bool `json:"freeFormAsk"`
	HistoryDays int  `json:"historyDays"`
}

type ServerConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	CronSecret string `json:"cronSecret,omitempty"`
}

type ReportConfig struct {
	Enabled  bool   `json:"enabled"`  // in-process scheduler
	CronExpr string `json:"cronExpr"` // when the in-process scheduler fires
	Hour     int    `json:"hour"`     // target hour for the /cron/daily gate
	Timezone string `json:"timezone"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.ouramate).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ouramate"
	}
	return filepath.Join(home, ".ouramate")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DBPath = ExpandPath(cfg.General.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Chat.HistoryDays < 1 || cfg.Chat.HistoryDays > 30 {
		errs = append(errs, "chat.historyDays must be between 1 and 30")
	}
	if cfg.Report.Hour < 0 || cfg.Report.Hour > 23 {
		errs = append(errs, "report.hour must be between 0 and 23")
	}
	if cfg.Report.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Report.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("report.timezone is not a valid IANA zone: %s", cfg.Report.Timezone))
		}
	}
	switch cfg.Telegram.ParseMode {
	case "", "HTML":
		// valid; plain text or the sanitizer's HTML dialect
	default:
		errs = append(errs, "telegram.parseMode must be empty or HTML")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Sanitize returns a copy with secrets masked for display.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Telegram.Token = MaskSecret(cfg.Telegram.Token)
	out.Oura.ClientSecret = MaskSecret(cfg.Oura.ClientSecret)
	out.AI.APIKey = MaskSecret(cfg.AI.APIKey)
	out.Server.CronSecret = MaskSecret(cfg.Server.CronSecret)
	return &out
}

// MaskSecret redacts a credential for display, keeping just enough of the
// ends to recognize which one it is.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
