// Package server exposes the HTTP surface: the Telegram webhook endpoint,
// the external cron trigger, the Oura OAuth flow, the config API and the
// operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ouramate/internal/config"
	"ouramate/internal/domain"
	"ouramate/internal/metrics"
	"ouramate/internal/telegram"
)

const maxBodySize = 1 << 20 // 1MB

// commandHandler is the slice of the dispatcher the server needs.
type commandHandler interface {
	Handle(ctx context.Context, msg domain.InboundMessage)
	DailyReport(ctx context.Context, chatID string) error
}

// secretStore is the store surface the server needs: the key/value slots
// plus the config-API password.
type secretStore interface {
	domain.SecretStore
	Password(ctx context.Context) (string, error)
	SetPassword(ctx context.Context, password string) error
}

// oauthClient is the slice of the Oura client the OAuth endpoints need.
type oauthClient interface {
	AuthCodeURL(ctx context.Context, redirectURL, state string) string
	Exchange(ctx context.Context, redirectURL, code string) error
	Authorized(ctx context.Context) bool
}

// Config configures the HTTP server.
type Config struct {
	Host            string
	Port            int
	CronSecret      string
	Metrics         bool
	MetricsURL      string // exposition path, e.g. /metrics
	PublicURL       string // externally reachable base URL, for OAuth redirects
	OuraRedirectURL string // explicit OAuth redirect override; "" derives from PublicURL

	Resolver   *config.Resolver
	Store      secretStore
	Dispatcher commandHandler
	Oura       oauthClient
	Logger     *slog.Logger
}

// Server is the HTTP front of the bot.
type Server struct {
	cfg    Config
	logger *slog.Logger
	server *http.Server
	now    func() time.Time
}

func New(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.MetricsURL == "" {
		cfg.MetricsURL = "/metrics"
	}
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// Routes builds the handler. Split out from Start so tests can drive it
// through httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/telegram/webhook", s.handleTelegramWebhook)
	mux.HandleFunc("/cron/daily", s.handleCronDaily)
	mux.HandleFunc("/oura/connect", s.handleOuraConnect)
	mux.HandleFunc("/oura/callback", s.handleOuraCallback)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.cfg.Metrics {
		mux.Handle(s.cfg.MetricsURL, metrics.Collector.Handler())
	}
	return mux
}

// Start runs the server until ctx is canceled, then drains it.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// handleTelegramWebhook accepts Telegram's push delivery. Updates without
// a text message are acknowledged and dropped: this bot only speaks text.
func (s *Server) handleTelegramWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	metrics.UpdatesReceived.Inc()

	// Telegram retries on non-200, so even ignored updates are
	// acknowledged; otherwise the same noise comes back forever.
	if update.Message == nil || update.Message.Text == "" {
		metrics.UpdatesIgnored.Inc()
		writeJSON(rw, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	msg := domain.InboundMessage{
		ChatID: fmt.Sprintf("%d", update.Message.Chat.ID),
		Text:   update.Message.Text,
	}
	if update.Message.From != nil {
		msg.Sender = update.Message.From.UserName
	}

	s.cfg.Dispatcher.Handle(r.Context(), msg)
	writeJSON(rw, http.StatusOK, map[string]bool{"ok": true})
}

// handleCronDaily is the external scheduler hook. It is designed to be hit
// hourly: the report only fires in the configured hour of the configured
// timezone, every other call is a cheap no-op.
func (s *Server) handleCronDaily(rw http.ResponseWriter, r *http.Request) {
	if s.cfg.CronSecret != "" {
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.CronSecret {
			http.Error(rw, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	ctx := r.Context()

	loc := time.UTC
	if tz := s.cfg.Resolver.Get(ctx, config.KeyReportTimezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			s.logger.Warn("invalid report timezone, using UTC", "tz", tz)
		}
	}
	targetHour := s.cfg.Resolver.GetInt(ctx, config.KeyReportHour, 8)
	nowHour := s.now().In(loc).Hour()
	if nowHour != targetHour {
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "skipped": true, "hour": nowHour, "target": targetHour})
		return
	}

	chatID := s.cfg.Resolver.Get(ctx, config.KeyTelegramChatID)
	if chatID == "" {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "no chat configured"})
		return
	}

	if err := s.cfg.Dispatcher.DailyReport(ctx, chatID); err != nil {
		s.logger.Error("daily report failed", "err", err)
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	metrics.ReportsSent.Inc()
	writeJSON(rw, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleHealthz(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"ok":             true,
		"ouraAuthorized": s.cfg.Oura != nil && s.cfg.Oura.Authorized(r.Context()),
		"uptimeSeconds":  int64(metrics.Collector.Uptime().Seconds()),
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

var _ commandHandler = (*telegram.Dispatcher)(nil)
