package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DBPath:   "~/.ouramate/ouramate.db",
			LogLevel: "info",
		},
		Telegram: TelegramConfig{
			ParseMode: "HTML",
		},
		Oura: OuraConfig{},
		AI: AIConfig{
			Model:    "gpt-4o",
			Language: "en",
		},
		Chat: ChatConfig{
			FreeFormAsk: false,
			HistoryDays: 7,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Report: ReportConfig{
			Enabled:  false,
			CronExpr: "0 * * * *", // hourly; the hour/timezone gate decides delivery
			Hour:     8,
			Timezone: "Asia/Shanghai",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
