package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"ouramate/internal/ai"
	"ouramate/internal/config"
	"ouramate/internal/oura"
	"ouramate/internal/schedule"
	"ouramate/internal/server"
	"ouramate/internal/store"
	"ouramate/internal/telegram"
)

// app bundles the collaborators that don't need a live Telegram connection.
type app struct {
	oura     *oura.Client
	analyzer *ai.Analyzer
}

func newApp(cfg *config.Config, st *store.Store, resolver *config.Resolver) *app {
	prompts := ai.DefaultPrompts()
	if cfg.AI.PromptsFile != "" {
		loaded, err := ai.LoadPrompts(config.ExpandPath(cfg.AI.PromptsFile))
		if err != nil {
			logger.Warn("cannot load prompts file, using defaults", "path", cfg.AI.PromptsFile, "err", err)
		} else {
			prompts = loaded
		}
	}

	return &app{
		oura: oura.New(oura.ClientConfig{
			Resolver: resolver,
			Tokens:   st,
			Logger:   logger,
		}),
		analyzer: ai.NewAnalyzer(ai.AnalyzerConfig{
			Resolver: resolver,
			Prompts:  prompts,
			Logger:   logger,
		}),
	}
}

// newDispatcher wires the full inbound pipeline on top of a live bot client.
func newDispatcher(cfg *config.Config, st *store.Store, resolver *config.Resolver, a *app) (*telegram.Dispatcher, *tgbotapi.BotAPI, error) {
	token := resolver.Get(context.Background(), config.KeyTelegramToken)
	if token == "" {
		return nil, nil, fmt.Errorf("no Telegram bot token configured")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, nil, fmt.Errorf("telegram connect: %w", err)
	}
	logger.Info("telegram connected", "bot", bot.Self.UserName)

	sender := telegram.NewSender(bot, st, logger)
	dispatcher := telegram.NewDispatcher(telegram.DispatcherConfig{
		Resolver:    resolver,
		Source:      a.oura,
		Analyzer:    a.analyzer,
		Sender:      sender,
		Cache:       st,
		FreeFormAsk: cfg.Chat.FreeFormAsk,
		HistoryDays: cfg.Chat.HistoryDays,
		ParseMode:   cfg.Telegram.ParseMode,
		Logger:      logger,
	})
	return dispatcher, bot, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: HTTP server, webhook handler and report scheduler",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reconfigureLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.General.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	resolver := config.NewResolver(cfg, st)
	a := newApp(cfg, st, resolver)

	dispatcher, bot, err := newDispatcher(cfg, st, resolver, a)
	if err != nil {
		return err
	}

	// Register the webhook if a public URL is configured; otherwise the
	// operator is expected to run `ouramate webhook setup` against a
	// tunnel or reverse proxy.
	if cfg.Telegram.PublicURL != "" {
		registrar := telegram.NewRegistrar(bot, logger)
		if err := registrar.Register(cfg.Telegram.PublicURL + "/telegram/webhook"); err != nil {
			logger.Warn("webhook registration failed", "err", err)
		}
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		CronSecret:      cfg.Server.CronSecret,
		Metrics:         cfg.Metrics.Enabled,
		MetricsURL:      cfg.Metrics.Endpoint,
		PublicURL:       cfg.Telegram.PublicURL,
		OuraRedirectURL: cfg.Oura.RedirectURL,
		Resolver:        resolver,
		Store:           st,
		Dispatcher:      dispatcher,
		Oura:            a.oura,
		Logger:          logger,
	})

	if cfg.Report.Enabled {
		sched := schedule.New(schedule.Config{
			Expr:     cfg.Report.CronExpr,
			Resolver: resolver,
			Reporter: dispatcher,
			Logger:   logger,
		})
		go func() {
			if err := sched.Start(ctx); err != nil {
				logger.Error("scheduler error", "err", err)
			}
		}()
	}

	return srv.Start(ctx)
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Generate and send the daily report once, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reconfigureLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(cfg.General.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			resolver := config.NewResolver(cfg, st)
			a := newApp(cfg, st, resolver)
			dispatcher, _, err := newDispatcher(cfg, st, resolver, a)
			if err != nil {
				return err
			}

			chatID := resolver.Get(ctx, config.KeyTelegramChatID)
			if chatID == "" {
				return fmt.Errorf("no chat configured: set TELEGRAM_CHAT_ID")
			}
			if err := dispatcher.DailyReport(ctx, chatID); err != nil {
				return fmt.Errorf("daily report: %w", err)
			}
			logger.Info("daily report sent", "chat_id", chatID)
			return nil
		},
	}
}
