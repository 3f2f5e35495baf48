package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// webhookAPI extends botAPI with the status call the registrar needs.
type webhookAPI interface {
	botAPI
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
}

// Registrar manages the transport's push-delivery registration.
type Registrar struct {
	bot    webhookAPI
	logger *slog.Logger
}

func NewRegistrar(bot webhookAPI, logger *slog.Logger) *Registrar {
	return &Registrar{bot: bot, logger: logger}
}

// Register points the transport's push delivery at url. Only message
// updates are requested; everything else is noise to this bot.
func (r *Registrar) Register(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	wh.AllowedUpdates = []string{"message"}
	if _, err := r.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	r.logger.Info("webhook registered", "url", url)
	return nil
}

// Deregister removes the push-delivery registration.
func (r *Registrar) Deregister() error {
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	r.logger.Info("webhook deregistered")
	return nil
}

// Status returns the transport's view of the current registration.
func (r *Registrar) Status() (tgbotapi.WebhookInfo, error) {
	info, err := r.bot.GetWebhookInfo()
	if err != nil {
		return tgbotapi.WebhookInfo{}, fmt.Errorf("get webhook info: %w", err)
	}
	return info, nil
}
