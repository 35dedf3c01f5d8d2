// Package notify sends pick alerts to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sendInterval spaces messages to one chat under Telegram's rate limit.
const sendInterval = 2 * time.Second

// Pick is a model price that beat the pick threshold.
type Pick struct {
	Sport      string
	EventName  string
	Market     string
	Side       string
	Line       *float64
	ModelOdds  int
	BookOdds   int
	Prob       float64
	StartsAt   time.Time
	Tournament string
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts picks to a chat. The zero value and a nil *Telegram
// drop every message.
type Telegram struct {
	bot    sender
	chatID int64
	logger *zap.Logger

	mu       sync.Mutex
	lastSend time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewTelegram connects the bot. An empty token returns a notifier that
// drops messages.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("telegram")
	if token == "" || chatID == 0 {
		logger.Info("telegram disabled (no token or chat id)")
		return &Telegram{logger: logger}, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	bot.Debug = false
	logger.Info("✓ Telegram notifier initialized", zap.String("bot", bot.Self.UserName), zap.Int64("chat_id", chatID))
	return newTelegram(bot, chatID, logger), nil
}

func newTelegram(bot sender, chatID int64, logger *zap.Logger) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, logger: logger, sleep: sleepCtx}
}

// Enabled reports whether messages are actually sent.
func (t *Telegram) Enabled() bool {
	return t != nil && t.bot != nil
}

// NotifyPick sends a pick alert.
func (t *Telegram) NotifyPick(ctx context.Context, p Pick) error {
	if !t.Enabled() {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if wait := sendInterval - time.Since(t.lastSend); !t.lastSend.IsZero() && wait > 0 {
		if err := t.sleep(ctx, wait); err != nil {
			return err
		}
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatPick(p))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	t.lastSend = time.Now()
	if err != nil {
		return fmt.Errorf("sending pick: %w", err)
	}
	t.logger.Debug("sent pick", zap.String("event", p.EventName), zap.String("market", p.Market))
	return nil
}

// FormatPick renders a pick as a Telegram HTML message.
func FormatPick(p Pick) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s pick</b>: %s\n", strings.ToUpper(p.Sport), html.EscapeString(p.EventName))
	if p.Tournament != "" {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(p.Tournament))
	}
	side := html.EscapeString(p.Side)
	if p.Line != nil {
		side = fmt.Sprintf("%s %+g", side, *p.Line)
	}
	fmt.Fprintf(&b, "%s: <b>%s</b>\n", strings.ReplaceAll(p.Market, "_", " "), side)
	fmt.Fprintf(&b, "model %s (%.1f%%) vs book %s\n", american(p.ModelOdds), p.Prob*100, american(p.BookOdds))
	if !p.StartsAt.IsZero() {
		fmt.Fprintf(&b, "starts %s", p.StartsAt.UTC().Format("Mon Jan 2 15:04 MST"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func american(o int) string {
	if o > 0 {
		return fmt.Sprintf("+%d", o)
	}
	return fmt.Sprintf("%d", o)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
