package push

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/tradeflow/internal/logging"
	"github.com/example/tradeflow/internal/ports/secondary"
)

type fakeSender struct {
	sent     []tgbotapi.MessageConfig
	failHTML bool
	err      error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if f.failHTML && msg.ParseMode == tgbotapi.ModeHTML {
		return tgbotapi.Message{}, errors.New("can't parse entities")
	}
	return tgbotapi.Message{}, nil
}

func TestTelegramSink_DeliversToMappedChat(t *testing.T) {
	sender := &fakeSender{}
	sink, err := NewTelegramSink(sender, map[string]string{"cust-1": "1001"}, logging.Discard())
	if err != nil {
		t.Fatalf("NewTelegramSink failed: %v", err)
	}

	err = sink.Deliver(context.Background(), secondary.Notification{
		Recipient: "cust-1",
		Title:     "New quote",
		Body:      "Quote of 120.00 <incl. parts>",
	})
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.ChatID != 1001 {
		t.Errorf("expected chat 1001, got %d", msg.ChatID)
	}
	if !strings.HasPrefix(msg.Text, "<b>New quote</b>") {
		t.Errorf("expected bold title, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "&lt;incl. parts&gt;") {
		t.Errorf("expected escaped body, got %q", msg.Text)
	}
}

func TestTelegramSink_FallsBackToPlainText(t *testing.T) {
	sender := &fakeSender{failHTML: true}
	sink, _ := NewTelegramSink(sender, map[string]string{"pro-1": "42"}, logging.Discard())

	if err := sink.Deliver(context.Background(), secondary.Notification{Recipient: "pro-1", Title: "Done", Body: "b"}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected retry, got %d sends", len(sender.sent))
	}
	if sender.sent[1].ParseMode != "" || sender.sent[1].Text != "Done\n\nb" {
		t.Errorf("unexpected plain retry %+v", sender.sent[1])
	}
}

func TestTelegramSink_SkipsUnknownRecipient(t *testing.T) {
	sender := &fakeSender{}
	sink, _ := NewTelegramSink(sender, map[string]string{}, logging.Discard())

	if err := sink.Deliver(context.Background(), secondary.Notification{Recipient: "nobody", Title: "x"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no sends, got %d", len(sender.sent))
	}
}

func TestTelegramSink_ReturnsSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("network down")}
	sink, _ := NewTelegramSink(sender, map[string]string{"CUST-1": "7"}, logging.Discard())

	err := sink.Deliver(context.Background(), secondary.Notification{Recipient: "cust-1", Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "network down") {
		t.Errorf("expected wrapped send error, got %v", err)
	}
}

// stalledSender never answers until released.
type stalledSender struct {
	release chan struct{}
	calls   chan struct{}
}

func (s *stalledSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.calls <- struct{}{}
	<-s.release
	return tgbotapi.Message{}, nil
}

func TestTelegramSink_StalledSendHonorsContext(t *testing.T) {
	sender := &stalledSender{release: make(chan struct{}), calls: make(chan struct{}, 2)}
	defer close(sender.release)
	sink, _ := NewTelegramSink(sender, map[string]string{"pro-1": "42"}, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sink.Deliver(ctx, secondary.Notification{Recipient: "pro-1", Title: "New request"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Deliver took %s past its deadline", elapsed)
	}
	if got := len(sender.calls); got != 1 {
		t.Errorf("expected no plain-text retry after the deadline, got %d sends", got)
	}
}

func TestNewTelegramSink_RejectsBadChatID(t *testing.T) {
	if _, err := NewTelegramSink(&fakeSender{}, map[string]string{"cust-1": "abc"}, nil); err == nil {
		t.Error("expected error for non-numeric chat id")
	}
}

func TestLogSink_Deliver(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := sink.Deliver(context.Background(), secondary.Notification{Recipient: "cust-1", Title: "Job complete"}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if !strings.Contains(buf.String(), "recipient=cust-1") {
		t.Errorf("expected recipient in log output, got %q", buf.String())
	}
}
