package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ouramate/internal/config"
	"ouramate/internal/domain"
	"ouramate/internal/metrics"
	"ouramate/internal/oura"
)

const helpText = `🔮 <b>OuraMate — AI Health Analyzer</b>

📋 <b>Available Commands:</b>
/today — AI health analysis
/sleep — Detailed sleep data
/activity — Activity summary
/week — Trailing trend dump
/ask — Ask about your health
/help — Show this message`

const askUsageText = "💡 Usage: /ask <your question>\n\nExample: /ask How is my sleep quality trending?"

// analysisCache stores generated daily summaries for later inspection.
type analysisCache interface {
	SaveAnalysis(ctx context.Context, day, content, model string) error
}

// Dispatcher is the protocol state machine: each inbound message runs one
// Authorize → Classify → Execute → Reply cycle with no state carried
// between cycles.
type Dispatcher struct {
	resolver *config.Resolver
	source   domain.HealthSource
	analyzer domain.Analyzer
	sender   domain.Messenger
	cache    analysisCache // optional

	freeFormAsk bool
	historyDays int
	parseMode   string
	logger      *slog.Logger
	now         func() time.Time
}

type DispatcherConfig struct {
	Resolver    *config.Resolver
	Source      domain.HealthSource
	Analyzer    domain.Analyzer
	Sender      domain.Messenger
	Cache       analysisCache
	FreeFormAsk bool
	HistoryDays int
	ParseMode   string
	Logger      *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 7
	}
	return &Dispatcher{
		resolver:    cfg.Resolver,
		source:      cfg.Source,
		analyzer:    cfg.Analyzer,
		sender:      cfg.Sender,
		cache:       cfg.Cache,
		freeFormAsk: cfg.FreeFormAsk,
		historyDays: cfg.HistoryDays,
		parseMode:   cfg.ParseMode,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Handle processes one inbound message to completion. Failures inside a
// handler are converted into an error reply; they never escape, so the
// next message always starts from a clean slate.
func (d *Dispatcher) Handle(ctx context.Context, msg domain.InboundMessage) {
	if strings.TrimSpace(msg.Text) == "" {
		metrics.UpdatesIgnored.Inc()
		return
	}

	allowed := strings.TrimSpace(d.resolver.Get(ctx, config.KeyTelegramChatID))
	if allowed != "" && strings.TrimSpace(msg.ChatID) != allowed {
		metrics.Unauthorized.Inc()
		d.logger.Warn("unauthorized chat", "chat_id", msg.ChatID, "sender", msg.Sender)
		d.reply(ctx, msg.ChatID, fmt.Sprintf("⛔ Unauthorized. Your chat ID is %s.", msg.ChatID))
		return
	}

	cmd := ParseCommand(msg.Text)
	metrics.CommandsHandled.Inc()

	if err := d.execute(ctx, msg.ChatID, cmd); err != nil {
		metrics.CommandErrors.Inc()
		d.logger.Error("command failed", "command", cmd.Command, "chat_id", msg.ChatID, "err", err)
		// Best effort: a failure while reporting the failure is only logged.
		d.reply(ctx, msg.ChatID, fmt.Sprintf("⚠️ Error: %v", err))
	}
}

func (d *Dispatcher) execute(ctx context.Context, chatID string, cmd ParsedCommand) error {
	switch cmd.Command {
	case "/start", "/help":
		return d.send(ctx, chatID, helpText)
	case "/today":
		return d.handleToday(ctx, chatID)
	case "/sleep":
		return d.handleSleep(ctx, chatID)
	case "/activity":
		return d.handleActivity(ctx, chatID)
	case "/week":
		return d.handleWeek(ctx, chatID)
	case "/ask":
		return d.handleAsk(ctx, chatID, cmd.Args)
	case "":
		if d.freeFormAsk {
			return d.handleAsk(ctx, chatID, cmd.Args)
		}
		return d.send(ctx, chatID, "❓ Unknown command. Send /help for available commands.")
	default:
		return d.send(ctx, chatID, "❓ Unknown command. Send /help for available commands.")
	}
}

func (d *Dispatcher) today() string {
	return d.now().Format("2006-01-02")
}

func (d *Dispatcher) handleToday(ctx context.Context, chatID string) error {
	// Interim notice: the fetch plus analysis takes several seconds and
	// the transport has no partial-progress mechanism.
	d.reply(ctx, chatID, "🔄 Analyzing health data...")

	analysis, _, err := d.analyze(ctx)
	if err != nil {
		return err
	}
	return d.send(ctx, chatID, analysis)
}

// DailyReport runs the daily-analysis flow for the scheduled report: same
// pipeline as /today but with a dated header and no interim notice.
func (d *Dispatcher) DailyReport(ctx context.Context, chatID string) error {
	analysis, today, err := d.analyze(ctx)
	if err != nil {
		return err
	}
	return d.send(ctx, chatID, fmt.Sprintf("📅 <b>Daily Health Report — %s</b>\n\n%s", today, analysis))
}

// analyze fetches today's record plus the trailing window, summarizes and
// caches the result.
func (d *Dispatcher) analyze(ctx context.Context) (analysis, today string, err error) {
	today = d.today()
	record, err := d.source.FetchDay(ctx, today)
	if err != nil {
		return "", today, fmt.Errorf("fetch day: %w", err)
	}
	history, err := d.source.FetchRange(ctx, d.historyDays)
	if err != nil {
		return "", today, fmt.Errorf("fetch range: %w", err)
	}

	metrics.AIRequests.Inc()
	analysis, err = d.analyzer.Summarize(ctx, record, history)
	if err != nil {
		return "", today, fmt.Errorf("summarize: %w", err)
	}
	if d.cache != nil {
		if err := d.cache.SaveAnalysis(ctx, today, analysis, d.resolver.Get(ctx, config.KeyAIModel)); err != nil {
			d.logger.Warn("cannot cache analysis", "day", today, "err", err)
		}
	}
	return analysis, today, nil
}

func (d *Dispatcher) handleSleep(ctx context.Context, chatID string) error {
	today := d.today()
	record, err := d.source.FetchDay(ctx, today)
	if err != nil {
		return fmt.Errorf("fetch day: %w", err)
	}
	if record == nil || record.Sleep == nil {
		return d.send(ctx, chatID, "❌ No sleep data for today.")
	}
	excerpt := domain.HealthRecord{Day: today, Sleep: record.Sleep}
	return d.send(ctx, chatID, fmt.Sprintf("💤 <b>Sleep Data — %s</b>\n\n%s", today, oura.ToSummary(excerpt)))
}

func (d *Dispatcher) handleActivity(ctx context.Context, chatID string) error {
	today := d.today()
	record, err := d.source.FetchDay(ctx, today)
	if err != nil {
		return fmt.Errorf("fetch day: %w", err)
	}
	if record == nil || record.Activity == nil {
		return d.send(ctx, chatID, "❌ No activity data for today.")
	}
	excerpt := domain.HealthRecord{Day: today, Activity: record.Activity}
	return d.send(ctx, chatID, fmt.Sprintf("🏃 <b>Activity — %s</b>\n\n%s", today, oura.ToSummary(excerpt)))
}

func (d *Dispatcher) handleWeek(ctx context.Context, chatID string) error {
	d.reply(ctx, chatID, fmt.Sprintf("🔄 Analyzing %d-day trend...", d.historyDays))

	history, err := d.source.FetchRange(ctx, d.historyDays)
	if err != nil {
		return fmt.Errorf("fetch range: %w", err)
	}
	if len(history) == 0 {
		return d.send(ctx, chatID, "❌ No data available.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>%d-Day Health Trend</b>\n\n", d.historyDays)
	for _, h := range history {
		sb.WriteString(oura.ToContext(h))
		sb.WriteString("\n\n")
	}
	return d.send(ctx, chatID, strings.TrimRight(sb.String(), "\n"))
}

func (d *Dispatcher) handleAsk(ctx context.Context, chatID, question string) error {
	if question == "" {
		return d.send(ctx, chatID, askUsageText)
	}

	d.reply(ctx, chatID, "🤔 Thinking...")

	record, err := d.source.FetchDay(ctx, d.today())
	if err != nil {
		return fmt.Errorf("fetch day: %w", err)
	}
	history, err := d.source.FetchRange(ctx, d.historyDays)
	if err != nil {
		return fmt.Errorf("fetch range: %w", err)
	}

	metrics.AIRequests.Inc()
	answer, err := d.analyzer.Answer(ctx, question, record, history)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	return d.send(ctx, chatID, answer)
}

// send delivers a reply and propagates delivery failure to the caller.
func (d *Dispatcher) send(ctx context.Context, chatID, text string) error {
	return d.sender.Send(ctx, chatID, text, d.parseMode)
}

// reply delivers a notice where a delivery failure must not abort the
// surrounding flow (interim notices, unauthorized/error replies).
func (d *Dispatcher) reply(ctx context.Context, chatID, text string) {
	if err := d.sender.Send(ctx, chatID, text, d.parseMode); err != nil {
		d.logger.Warn("reply delivery failed", "chat_id", chatID, "err", err)
	}
}
