// Package push delivers notifications to users outside the app.
package push

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/tradeflow/internal/ports/secondary"
)

// Sender is the subset of *tgbotapi.BotAPI the sink needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink sends notifications to the Telegram chat registered for
// each recipient. Recipients with no chat are skipped.
type TelegramSink struct {
	sender     Sender
	recipients map[string]int64
	logger     *slog.Logger
}

// NewTelegramBot connects to the Bot API with the given token. Every API
// call is bounded by timeout.
func NewTelegramBot(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	slog.Info("telegram bot connected", "username", bot.Self.UserName)
	return bot, nil
}

// NewTelegramSink creates a sink. recipients maps user ID to chat ID.
func NewTelegramSink(sender Sender, recipients map[string]string, logger *slog.Logger) (*TelegramSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	chats := make(map[string]int64, len(recipients))
	for userID, chat := range recipients {
		chatID, err := parseInt64(chat)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q for %s: %w", chat, userID, err)
		}
		chats[normalizeUser(userID)] = chatID
	}
	return &TelegramSink{sender: sender, recipients: chats, logger: logger}, nil
}

// Deliver sends n to the recipient's chat.
func (s *TelegramSink) Deliver(ctx context.Context, n secondary.Notification) error {
	chatID, ok := s.recipients[normalizeUser(n.Recipient)]
	if !ok {
		s.logger.Debug("no telegram chat for recipient", "recipient", n.Recipient)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, renderHTML(n))
	msg.ParseMode = tgbotapi.ModeHTML

	err := s.send(ctx, msg)
	if err != nil && ctx.Err() == nil {
		msg.ParseMode = ""
		msg.Text = renderPlain(n)
		err = s.send(ctx, msg)
	}
	if err != nil {
		return fmt.Errorf("telegram send to %s failed: %w", n.Recipient, err)
	}
	return nil
}

// send returns when the Bot API answers or ctx ends, whichever is first.
// Send itself takes no context.
func (s *TelegramSink) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.sender.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func renderHTML(n secondary.Notification) string {
	title := html.EscapeString(n.Title)
	body := html.EscapeString(n.Body)
	if body == "" {
		return "<b>" + title + "</b>"
	}
	return "<b>" + title + "</b>\n\n" + body
}

func renderPlain(n secondary.Notification) string {
	if n.Body == "" {
		return n.Title
	}
	return n.Title + "\n\n" + n.Body
}

// Config keys pass through viper, which lowercases map keys.
func normalizeUser(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// Ensure TelegramSink implements the interface
var _ secondary.NotificationSink = (*TelegramSink)(nil)
