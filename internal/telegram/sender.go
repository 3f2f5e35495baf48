package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ouramate/internal/domain"
	"ouramate/internal/metrics"
)

const (
	// Held below Telegram's 4096 hard cap: sanitization can grow a chunk
	// by escaping, and the headroom absorbs it.
	maxMessageLen = 4000

	// Store slot for the most recent delivery failure. Overwrite-only,
	// non-historical.
	lastErrorKey = "telegram:last_error"
)

// botAPI is the slice of the bot client the sender needs.
type botAPI interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sender delivers text to a chat: chunk, sanitize per chunk when rich
// markup is requested, then transmit strictly in order.
type Sender struct {
	bot    botAPI
	store  domain.SecretStore
	maxLen int
	logger *slog.Logger
	now    func() time.Time
}

func NewSender(bot botAPI, store domain.SecretStore, logger *slog.Logger) *Sender {
	return &Sender{
		bot:    bot,
		store:  store,
		maxLen: maxMessageLen,
		logger: logger,
		now:    time.Now,
	}
}

// Send implements domain.Messenger. On a chunk failure the remaining
// chunks are not sent: readers must never see the narrative out of order
// or with a hole in the middle.
func (s *Sender) Send(ctx context.Context, chatID, text, parseMode string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}

	chunks := SplitMessage(text, s.maxLen)
	for i, chunk := range chunks {
		out := chunk
		if parseMode == tgbotapi.ModeHTML {
			out = Sanitize(chunk)
		}

		msg := tgbotapi.NewMessage(id, out)
		msg.ParseMode = parseMode

		if _, err := s.bot.Request(msg); err != nil {
			metrics.SendFailures.Inc()
			s.recordFailure(ctx, "sendMessage", chatID, err)
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		metrics.MessagesSent.Inc()
	}
	return nil
}

// deliveryFailure is the persisted last-error snapshot.
type deliveryFailure struct {
	Method string `json:"method"`
	ChatID string `json:"chatId"`
	Error  string `json:"error"`
	Time   string `json:"time"`
}

// recordFailure overwrites the single last-failure slot. A store error
// here is only logged: delivery diagnostics must not mask the delivery
// error itself.
func (s *Sender) recordFailure(ctx context.Context, method, chatID string, sendErr error) {
	if s.store == nil {
		return
	}
	snapshot, err := json.Marshal(deliveryFailure{
		Method: method,
		ChatID: chatID,
		Error:  sendErr.Error(),
		Time:   s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, lastErrorKey, string(snapshot)); err != nil {
		s.logger.Warn("cannot record delivery failure", "err", err)
	}
}
