package main

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"ouramate/internal/config"
	"ouramate/internal/store"
	"ouramate/internal/telegram"
)

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "setup [url]",
		Short: "Register the webhook (url defaults to the configured public URL)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registrar, cfg, cleanup, err := newRegistrar()
			if err != nil {
				return err
			}
			defer cleanup()

			url := ""
			if len(args) == 1 {
				url = args[0]
			} else if cfg.Telegram.PublicURL != "" {
				url = cfg.Telegram.PublicURL + "/telegram/webhook"
			}
			if url == "" {
				return fmt.Errorf("no URL given and telegram.publicUrl not configured")
			}
			return registrar.Register(url)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove",
		Short: "Deregister the webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			registrar, _, cleanup, err := newRegistrar()
			if err != nil {
				return err
			}
			defer cleanup()
			return registrar.Deregister()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current webhook registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			registrar, _, cleanup, err := newRegistrar()
			if err != nil {
				return err
			}
			defer cleanup()

			info, err := registrar.Status()
			if err != nil {
				return err
			}
			logger.Info("webhook status",
				"url", info.URL,
				"pending_updates", info.PendingUpdateCount,
				"last_error", info.LastErrorMessage,
			)
			return nil
		},
	})

	return cmd
}

func newRegistrar() (*telegram.Registrar, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := store.Open(cfg.General.DBPath, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	resolver := config.NewResolver(cfg, st)
	token := resolver.Get(context.Background(), config.KeyTelegramToken)
	if token == "" {
		st.Close()
		return nil, nil, nil, fmt.Errorf("no Telegram bot token configured")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		st.Close()
		return nil, nil, nil, fmt.Errorf("telegram connect: %w", err)
	}

	return telegram.NewRegistrar(bot, logger), cfg, func() { st.Close() }, nil
}
