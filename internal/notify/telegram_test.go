package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, f.err
}

func TestNotifyPickDisabled(t *testing.T) {
	tg, err := NewTelegram("", 0, nil)
	require.NoError(t, err)
	assert.False(t, tg.Enabled())
	assert.NoError(t, tg.NotifyPick(context.Background(), Pick{}))

	var nilTG *Telegram
	assert.NoError(t, nilTG.NotifyPick(context.Background(), Pick{}))
}

func TestNotifyPickSpacesMessages(t *testing.T) {
	bot := &fakeBot{}
	tg := newTelegram(bot, 42, zap.NewNop())
	var waits []time.Duration
	tg.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, tg.NotifyPick(ctx, Pick{Sport: "nba", EventName: "a vs b"}))
	require.NoError(t, tg.NotifyPick(ctx, Pick{Sport: "nba", EventName: "c vs d"}))

	require.Len(t, bot.sent, 2)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, bot.sent[0].ParseMode)
	require.Len(t, waits, 1, "only the second message waits")
	assert.LessOrEqual(t, waits[0], sendInterval)
}

func TestNotifyPickError(t *testing.T) {
	tg := newTelegram(&fakeBot{err: errors.New("429")}, 1, zap.NewNop())
	assert.Error(t, tg.NotifyPick(context.Background(), Pick{}))
}

func TestFormatPick(t *testing.T) {
	line := -3.5
	got := FormatPick(Pick{
		Sport:     "nba",
		EventName: "Boston Celtics vs New York Knicks",
		Market:    "spread",
		Side:      "Boston Celtics",
		Line:      &line,
		ModelOdds: -150,
		BookOdds:  -110,
		Prob:      0.6,
		StartsAt:  time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC),
	})
	assert.Equal(t, "<b>NBA pick</b>: Boston Celtics vs New York Knicks\n"+
		"spread: <b>Boston Celtics -3.5</b>\n"+
		"model -150 (60.0%) vs book -110\n"+
		"starts Fri Mar 1 00:30 UTC", got)

	got = FormatPick(Pick{Sport: "ufc", EventName: "A & B", Market: "moneyline", Side: "A", ModelOdds: 130, BookOdds: -120, Prob: 0.43})
	assert.Contains(t, got, "A &amp; B")
	assert.Contains(t, got, "model +130")
}
