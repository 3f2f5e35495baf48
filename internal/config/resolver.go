package config

import (
	"context"
	"strconv"

	"ouramate/internal/domain"
)

// Runtime-overridable keys. Values written to the store through the config
// API take precedence over the loaded config file.
const (
	KeyTelegramToken  = "TELEGRAM_BOT_TOKEN"
	KeyTelegramChatID = "TELEGRAM_CHAT_ID"
	KeyAIModel        = "AI_MODEL"
	KeyAIAPIKey       = "AI_API_KEY"
	KeyAIBaseURL      = "AI_BASE_URL"
	KeyLanguage       = "ANALYSIS_LANGUAGE"
	KeyOuraClientID   = "OURA_CLIENT_ID"
	KeyOuraSecret     = "OURA_CLIENT_SECRET"
	KeyReportHour     = "CRON_SCHEDULE_TIME"
	KeyReportTimezone = "CRON_TIMEZONE"
)

// Keys lists every runtime-overridable key, in display order.
func Keys() []string {
	return []string{
		KeyTelegramToken,
		KeyTelegramChatID,
		KeyAIModel,
		KeyAIAPIKey,
		KeyAIBaseURL,
		KeyLanguage,
		KeyOuraClientID,
		KeyOuraSecret,
		KeyReportHour,
		KeyReportTimezone,
	}
}

// Resolver implements the two-tier precedence rule: a value written to the
// store wins; otherwise the value from the loaded config file applies.
type Resolver struct {
	store    domain.SecretStore
	defaults map[string]string
}

func NewResolver(cfg *Config, store domain.SecretStore) *Resolver {
	return &Resolver{
		store: store,
		defaults: map[string]string{
			KeyTelegramToken:  cfg.Telegram.Token,
			KeyTelegramChatID: cfg.Telegram.ChatID,
			KeyAIModel:        cfg.AI.Model,
			KeyAIAPIKey:       cfg.AI.APIKey,
			KeyAIBaseURL:      cfg.AI.BaseURL,
			KeyLanguage:       cfg.AI.Language,
			KeyOuraClientID:   cfg.Oura.ClientID,
			KeyOuraSecret:     cfg.Oura.ClientSecret,
			KeyReportHour:     strconv.Itoa(cfg.Report.Hour),
			KeyReportTimezone: cfg.Report.Timezone,
		},
	}
}

// Get resolves key. Store errors fall back to the config default: a broken
// store should degrade the bot to file-configured behavior, not crash it.
func (r *Resolver) Get(ctx context.Context, key string) string {
	if r.store != nil {
		if v, err := r.store.Get(ctx, key); err == nil && v != "" {
			return v
		}
	}
	return r.defaults[key]
}

// GetInt resolves key as an integer, returning fallback when unset or
// malformed.
func (r *Resolver) GetInt(ctx context.Context, key string, fallback int) int {
	v := r.Get(ctx, key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
