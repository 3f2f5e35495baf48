package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ouramate/internal/config"
	"ouramate/internal/store"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// A .env next to the binary is a convenience for local runs; absence
	// is not an error.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "ouramate",
		Short:   "OuraMate: AI health analysis from your Oura ring, via Telegram",
		Long:    "OuraMate pulls your daily Oura data, has an AI model analyze it, and delivers the result through a Telegram bot.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.ouramate/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(webhookCmd())
	root.AddCommand(configCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// reconfigureLogger applies the configured log level to the process logger.
func reconfigureLogger(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify runtime configuration",
		Long:  "Get, set, and list the runtime-overridable keys. Values are stored in the database and take precedence over the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Get a runtime config value (e.g. AI_MODEL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.General.DBPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			resolver := config.NewResolver(cfg, st)
			fmt.Println(resolver.Get(context.Background(), args[0]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a runtime config value (e.g. AI_MODEL gpt-4o)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.General.DBPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Set(context.Background(), args[0], args[1]); err != nil {
				return fmt.Errorf("save value: %w", err)
			}
			logger.Info("config updated", "key", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the runtime config keys with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.General.DBPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			resolver := config.NewResolver(cfg, st)
			ctx := context.Background()
			for _, key := range config.Keys() {
				fmt.Printf("%s=%s\n", key, config.MaskSecret(resolver.Get(ctx, key)))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)

			st, err := store.Open(cfg.General.DBPath, logger)
			if err != nil {
				logger.Info("store", "path", cfg.General.DBPath, "open", false, "err", err)
				return nil
			}
			defer st.Close()
			logger.Info("store", "path", cfg.General.DBPath, "open", true)

			ctx := context.Background()
			resolver := config.NewResolver(cfg, st)
			app := newApp(cfg, st, resolver)
			logger.Info("oura", "authorized", app.oura.Authorized(ctx))
			logger.Info("ai", "model", app.analyzer.Model(), "provider", app.analyzer.Kind().String())
			return nil
		},
	}
}
