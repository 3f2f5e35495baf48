// Package schedule runs the built-in daily report timer for deployments
// without an external cron hitting /cron/daily.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"ouramate/internal/config"
	"ouramate/internal/metrics"
)

// reporter is the slice of the dispatcher the scheduler needs.
type reporter interface {
	DailyReport(ctx context.Context, chatID string) error
}

// Config configures the scheduler.
type Config struct {
	Expr     string // cron expression, normally hourly
	Resolver *config.Resolver
	Reporter reporter
	Logger   *slog.Logger
}

// Scheduler ticks on a cron expression and fires the daily report when the
// tick lands in the configured hour of the configured timezone. Running the
// expression hourly and gating on the hour keeps the timezone and hour
// runtime-changeable without re-registering the cron entry.
type Scheduler struct {
	cron     *cron.Cron
	expr     string
	resolver *config.Resolver
	reporter reporter
	logger   *slog.Logger
	now      func() time.Time

	lastRun string // day of the last delivered report, dedupe guard
}

func New(cfg Config) *Scheduler {
	if cfg.Expr == "" {
		cfg.Expr = "0 * * * *"
	}
	return &Scheduler{
		cron:     cron.New(),
		expr:     cfg.Expr,
		resolver: cfg.Resolver,
		reporter: cfg.Reporter,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Start registers the cron entry and begins ticking. Runs until ctx is
// canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.expr, func() { s.tick(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("report scheduler started", "expr", s.expr)

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("report scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	loc := time.UTC
	if tz := s.resolver.Get(ctx, config.KeyReportTimezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			s.logger.Warn("invalid report timezone, using UTC", "tz", tz)
		}
	}

	local := s.now().In(loc)
	targetHour := s.resolver.GetInt(ctx, config.KeyReportHour, 8)
	if local.Hour() != targetHour {
		return
	}
	day := local.Format("2006-01-02")
	if day == s.lastRun {
		return
	}

	chatID := s.resolver.Get(ctx, config.KeyTelegramChatID)
	if chatID == "" {
		s.logger.Warn("daily report skipped, no chat configured")
		return
	}

	s.logger.Info("running daily report", "day", day, "hour", targetHour)
	if err := s.reporter.DailyReport(ctx, chatID); err != nil {
		s.logger.Error("daily report failed", "day", day, "err", err)
		return
	}
	s.lastRun = day
	metrics.ReportsSent.Inc()
}
