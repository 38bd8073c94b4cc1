package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/lingobot/core/config"
	"github.com/m3rciful/lingobot/core/conversation"
	"github.com/m3rciful/lingobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	update tele.Update
	values map[string]interface{}
}

func newFakeContext(updateID int, chatID int64, text string) *fakeContext {
	return &fakeContext{
		update: tele.Update{
			ID: updateID,
			Message: &tele.Message{
				Text:   text,
				Chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
				Sender: &tele.User{ID: chatID},
			},
		},
		values: map[string]interface{}{},
	}
}

func (f *fakeContext) Update() tele.Update         { return f.update }
func (f *fakeContext) Chat() *tele.Chat            { return f.update.Message.Chat }
func (f *fakeContext) Sender() *tele.User          { return f.update.Message.Sender }
func (f *fakeContext) Text() string                { return f.update.Message.Text }
func (f *fakeContext) Get(k string) interface{}    { return f.values[k] }
func (f *fakeContext) Set(k string, v interface{}) { f.values[k] = v }

type captureHandler struct {
	events []conversation.Event
	ctxs   []context.Context
	err    error
}

func (h *captureHandler) Handle(ctx context.Context, ev conversation.Event) (conversation.Outcome, error) {
	h.events = append(h.events, ev)
	h.ctxs = append(h.ctxs, ctx)
	return conversation.OutcomePrompted, h.err
}

type fakeSender struct {
	to   []tele.Recipient
	what []interface{}
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.to = append(f.to, to)
	f.what = append(f.what, what)
	return &tele.Message{}, f.err
}

func TestTextHandlerBuildsEvent(t *testing.T) {
	h := &captureHandler{}
	c := newFakeContext(7, 4242, "French")

	chain := DefaultMiddlewares(&coreconfig.Config{})
	handler := TextHandler(h)
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i].Use(handler)
	}
	require.NoError(t, handler(c))

	require.Len(t, h.events, 1)
	assert.Equal(t, conversation.Event{SenderID: "4242", Text: "French"}, h.events[0])
	ctx := h.ctxs[0]
	assert.Equal(t, "telegram", logger.PlatformFrom(ctx))
	assert.Equal(t, "4242", logger.SenderFrom(ctx))
	assert.Equal(t, "7:4242:4242", logger.RIDFrom(ctx))
	assert.Equal(t, "tg.text", logger.HandlerFrom(ctx))
}

func TestTextHandlerSwallowsErrors(t *testing.T) {
	h := &captureHandler{err: errors.New("store down")}
	assert.NoError(t, TextHandler(h)(newFakeContext(1, 1, "hi")))
}

func TestRecoverMiddleware(t *testing.T) {
	chain := DefaultMiddlewares(nil)
	require.Equal(t, "recover", chain[0].Name)
	wrapped := chain[0].Use(func(tele.Context) error { panic("boom") })
	assert.NotPanics(t, func() { _ = wrapped(newFakeContext(1, 1, "x")) })
}

func TestDeliverer(t *testing.T) {
	fs := &fakeSender{}
	deliver := Deliverer(fs)

	require.NoError(t, deliver(context.Background(), "-100123", "Translated text: Hallo"))
	assert.Equal(t, tele.ChatID(-100123), fs.to[0])
	assert.Equal(t, "Translated text: Hallo", fs.what[0])

	assert.Error(t, deliver(context.Background(), "psid-abc", "x"))
	assert.Len(t, fs.to, 1)
}

func TestDelivererSkipsExpiredContext(t *testing.T) {
	fs := &fakeSender{}
	deliver := Deliverer(fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, deliver(ctx, "42", "late"), context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	assert.ErrorIs(t, deliver(ctx, "42", "late"), context.DeadlineExceeded)
	assert.Empty(t, fs.to)
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll})
	lp, ok := p.(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, int64(10), int64(lp.Timeout.Seconds()))

	p = BuildPoller(coreconfig.TelegramConfig{
		RunMode:       coreconfig.RunModeWebhook,
		WebhookListen: "0.0.0.0",
		WebhookPort:   8443,
		WebhookURL:    "https://bot.example.com/tg",
	})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://bot.example.com/tg", wh.Endpoint.PublicURL)
}
