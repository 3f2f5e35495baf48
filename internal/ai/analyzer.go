// Package ai generates health summaries and answers through an LLM
// provider. The provider implementation is picked once, at construction,
// from the configured model name, and spoken to over plain HTTP in the
// provider's native JSON dialect.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ouramate/internal/config"
	"ouramate/internal/domain"
	"ouramate/internal/oura"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	defaultMaxTokens   = 8192
	defaultTemperature = 0.7
)

// ProviderKind is the enumerated provider tag. It is resolved once from
// the model name when the analyzer is built, never re-sniffed per call.
type ProviderKind int

const (
	KindOpenAI ProviderKind = iota // any OpenAI-compatible endpoint
	KindAnthropic
	KindGemini
)

func (k ProviderKind) String() string {
	switch k {
	case KindAnthropic:
		return "anthropic"
	case KindGemini:
		return "gemini"
	default:
		return "openai"
	}
}

// ClassifyModel maps a model name to its provider tag.
func ClassifyModel(model string) ProviderKind {
	switch {
	case strings.HasPrefix(model, "gemini"):
		return KindGemini
	case strings.HasPrefix(model, "claude"):
		return KindAnthropic
	default:
		return KindOpenAI
	}
}

// completer is the minimal provider contract: one system-plus-prompt
// completion in, text out.
type completer interface {
	complete(ctx context.Context, system, prompt string) (string, error)
}

// Analyzer implements domain.Analyzer. Provider failures degrade into a
// user-readable fallback message instead of propagating: the chat reply
// must never be lost to an upstream model hiccup.
type Analyzer struct {
	kind     ProviderKind
	model    string
	resolver *config.Resolver
	prompts  *PromptSet
	provider completer
	logger   *slog.Logger
}

type AnalyzerConfig struct {
	Resolver *config.Resolver
	Prompts  *PromptSet // nil = defaults
	BaseURL  string     // override for tests; "" = provider default
	Logger   *slog.Logger
}

func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	ctx := context.Background()
	model := cfg.Resolver.Get(ctx, config.KeyAIModel)
	apiKey := cfg.Resolver.Get(ctx, config.KeyAIAPIKey)
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = cfg.Resolver.Get(ctx, config.KeyAIBaseURL)
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	kind := ClassifyModel(model)
	client := &http.Client{Timeout: defaultHTTPTimeout}

	var provider completer
	switch kind {
	case KindGemini:
		provider = newGemini(geminiConfig{APIKey: apiKey, Model: model, BaseURL: baseURL, Client: client})
	case KindAnthropic:
		provider = newAnthropic(anthropicConfig{APIKey: apiKey, Model: model, BaseURL: baseURL, Client: client})
	default:
		provider = newOpenAI(openAIConfig{APIKey: apiKey, Model: model, BaseURL: baseURL, Client: client})
	}

	return &Analyzer{
		kind:     kind,
		model:    model,
		resolver: cfg.Resolver,
		prompts:  prompts,
		provider: provider,
		logger:   cfg.Logger,
	}
}

// Model returns the configured model name.
func (a *Analyzer) Model() string { return a.model }

// Kind returns the resolved provider tag.
func (a *Analyzer) Kind() ProviderKind { return a.kind }

func (a *Analyzer) language(ctx context.Context) string {
	return a.prompts.LanguageName(a.resolver.Get(ctx, config.KeyLanguage))
}

// Summarize produces the daily analysis. On provider failure it returns a
// degraded reply carrying the raw data, never an error.
func (a *Analyzer) Summarize(ctx context.Context, today *domain.HealthRecord, history []domain.HealthRecord) (string, error) {
	todayData := "No data for today."
	if today != nil {
		todayData = oura.ToContext(*today)
	}
	trendData := "No historical data available."
	if len(history) > 1 {
		var parts []string
		for _, h := range history {
			parts = append(parts, oura.ToContext(h))
		}
		trendData = strings.Join(parts, "\n\n") + "\n\n--- Trailing Averages ---\n" + computeAverages(history)
	}

	prompt := a.prompts.DailyPrompt(a.language(ctx), todayData, trendData)
	text, err := a.provider.complete(ctx, a.prompts.System, prompt)
	if err != nil {
		a.logger.Error("ai summarize failed", "provider", a.kind.String(), "model", a.model, "err", err)
		return fmt.Sprintf("⚠️ AI analysis failed: %v\n\nRaw data:\n%s", err, todayData), nil
	}
	return text, nil
}

// Answer responds to a free-form question over the user's data. Provider
// failures degrade the same way Summarize does.
func (a *Analyzer) Answer(ctx context.Context, question string, today *domain.HealthRecord, history []domain.HealthRecord) (string, error) {
	var sb strings.Builder
	sb.WriteString("Today's health data:\n")
	if today != nil {
		sb.WriteString(oura.ToContext(*today))
	} else {
		sb.WriteString("(none)")
	}
	if len(history) > 0 {
		sb.WriteString("\n\nRecent history:\n")
		for i, h := range history {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(oura.ToContext(h))
		}
	}

	system := a.prompts.AskSystem(a.language(ctx))
	prompt := fmt.Sprintf("My health data:\n%s\n\nQuestion: %s", sb.String(), question)

	text, err := a.provider.complete(ctx, system, prompt)
	if err != nil {
		a.logger.Error("ai answer failed", "provider", a.kind.String(), "model", a.model, "err", err)
		return fmt.Sprintf("⚠️ AI response failed: %v", err), nil
	}
	return text, nil
}

// computeAverages folds the history window into per-metric means for the
// prompt's trend section. Days missing a metric are skipped, not zeroed.
func computeAverages(history []domain.HealthRecord) string {
	var sleepScores, activityScores, readinessScores, steps, hrv, rhr []int
	for _, h := range history {
		if h.Sleep != nil {
			if h.Sleep.Score != nil {
				sleepScores = append(sleepScores, *h.Sleep.Score)
			}
			if h.Sleep.AvgHRV != nil {
				hrv = append(hrv, *h.Sleep.AvgHRV)
			}
		}
		if h.Activity != nil {
			if h.Activity.Score != nil {
				activityScores = append(activityScores, *h.Activity.Score)
			}
			if h.Activity.Steps != nil {
				steps = append(steps, *h.Activity.Steps)
			}
		}
		if h.Readiness != nil {
			if h.Readiness.Score != nil {
				readinessScores = append(readinessScores, *h.Readiness.Score)
			}
			if h.Readiness.RestingHR != nil {
				rhr = append(rhr, *h.Readiness.RestingHR)
			}
		}
	}

	var parts []string
	appendAvg := func(label, unit string, vals []int) {
		if len(vals) == 0 {
			return
		}
		sum := 0
		for _, v := range vals {
			sum += v
		}
		parts = append(parts, fmt.Sprintf("%s: %d%s", label, sum/len(vals), unit))
	}
	appendAvg("Avg Sleep Score", "", sleepScores)
	appendAvg("Avg Activity Score", "", activityScores)
	appendAvg("Avg Readiness Score", "", readinessScores)
	appendAvg("Avg Steps", "", steps)
	appendAvg("Avg HRV", "ms", hrv)
	appendAvg("Avg Resting HR", "bpm", rhr)

	if len(parts) == 0 {
		return "Insufficient data for averages."
	}
	return strings.Join(parts, "\n")
}
