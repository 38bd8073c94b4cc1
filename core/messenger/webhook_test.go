package messenger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/lingobot/core/conversation"
	"github.com/m3rciful/lingobot/core/sender"
	"github.com/m3rciful/lingobot/core/session"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []conversation.Event
}

func (h *recordingHandler) Handle(_ context.Context, ev conversation.Event) (conversation.Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	if ev.SenderID == "" {
		return "", conversation.ErrMalformedEvent
	}
	return conversation.OutcomePrompted, nil
}

type replies struct {
	mu   sync.Mutex
	sent []string
}

func (r *replies) Reply(_ context.Context, _ string, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
}

type fixedTranslator string

func (f fixedTranslator) Translate(context.Context, string, string) (string, error) {
	return string(f), nil
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func textEvent(sender, text string) string {
	return `{"object":"page","entry":[{"id":"p1","time":1,"messaging":[{"sender":{"id":"` + sender +
		`"},"recipient":{"id":"p1"},"timestamp":1,"message":{"mid":"m1","text":"` + text + `"}}]}]}`
}

func post(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVerifyChallenge(t *testing.T) {
	wh := NewWebhook(WebhookOptions{VerifyToken: "s3cret", Handler: &recordingHandler{}})

	rec := httptest.NewRecorder()
	wh.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=12345", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	for _, target := range []string{
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1",
		"/webhook?hub.verify_token=s3cret&hub.challenge=1",
		"/webhook",
	} {
		rec = httptest.NewRecorder()
		wh.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
		assert.Empty(t, rec.Body.String())
	}
}

func TestReceiveDispatchesAllEvents(t *testing.T) {
	h := &recordingHandler{}
	wh := NewWebhook(WebhookOptions{VerifyToken: "t", Handler: h})

	body := `{"object":"page","entry":[
		{"id":"p1","messaging":[
			{"sender":{"id":"a"},"message":{"text":"hello"}},
			{"sender":{"id":"p1"},"message":{"text":"echoed","is_echo":true}},
			{"sender":{"id":"b"},"message":{"attachments":[{"type":"image"}]}}
		]},
		{"id":"p1","messaging":[
			{"sender":{"id":"c"},"postback":{"title":"Start","payload":"GET_STARTED"}},
			{"sender":{"id":"d"},"message":{"text":"French"}}
		]}
	]}`
	rec := post(t, wh, body, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []conversation.Event{
		{SenderID: "a", Text: "hello"},
		{SenderID: "b", Text: ""},
		{SenderID: "d", Text: "French"},
	}, h.events)
}

func TestReceiveAcknowledgesHandlerErrors(t *testing.T) {
	h := &recordingHandler{}
	wh := NewWebhook(WebhookOptions{VerifyToken: "t", Handler: h})

	rec := post(t, wh, `{"object":"page","entry":[{"messaging":[{"sender":{},"message":{"text":"x"}}]}]}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, h.events, 1)
}

func TestReceiveRejectsBadBodies(t *testing.T) {
	h := &recordingHandler{}
	wh := NewWebhook(WebhookOptions{VerifyToken: "t", Handler: h})

	assert.Equal(t, http.StatusBadRequest, post(t, wh, `{not json`, nil).Code)
	assert.Equal(t, http.StatusNotFound, post(t, wh, `{"object":"instagram","entry":[]}`, nil).Code)
	assert.Empty(t, h.events)

	rec := httptest.NewRecorder()
	wh.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReceiveChecksSignature(t *testing.T) {
	h := &recordingHandler{}
	wh := NewWebhook(WebhookOptions{VerifyToken: "t", AppSecret: "app-secret", Handler: h})
	body := textEvent("a", "hi")

	assert.Equal(t, http.StatusForbidden, post(t, wh, body, nil).Code)
	assert.Equal(t, http.StatusForbidden, post(t, wh, body, map[string]string{signatureHeader: sign([]byte(body), "other")}).Code)
	assert.Equal(t, http.StatusForbidden, post(t, wh, body, map[string]string{signatureHeader: "sha1=abc"}).Code)
	assert.Empty(t, h.events)

	rec := post(t, wh, body, map[string]string{signatureHeader: sign([]byte(body), "app-secret")})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, h.events, 1)
}

func TestWebhookConversationRoundTrip(t *testing.T) {
	store := session.NewMemoryStore(session.MemoryConfig{})
	rep := &replies{}
	d, err := conversation.NewDispatcher(conversation.Options{
		Store:      store,
		Replier:    rep,
		Translator: fixedTranslator("Hello world"),
		Platform:   platform,
	})
	require.NoError(t, err)
	wh := NewWebhook(WebhookOptions{VerifyToken: "t", Handler: d})

	for _, text := range []string{"hello", "French", "Bonjour le monde"} {
		rec := post(t, wh, textEvent("psid-42", text), nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []string{
		"Please select a language: Arabic, English, Spanish, French, German",
		"Enter the text you want to translate:",
		"Translated text: Hello world",
	}, rep.sent)
	assert.Equal(t, 0, store.Len())
}

type stallingTranslator struct{}

func (stallingTranslator) Translate(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestReceiveAcknowledgesBatchBeforeTranslating(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(session.MemoryConfig{})
	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, store.Put(ctx, session.Session{SenderID: id, State: session.AwaitingText{TargetLanguage: "fr"}}))
	}
	rep := &replies{}
	d, err := conversation.NewDispatcher(conversation.Options{
		Store:            store,
		Replier:          rep,
		Translator:       stallingTranslator{},
		TranslateTimeout: 200 * time.Millisecond,
		Platform:         platform,
	})
	require.NoError(t, err)
	queue := sender.NewOutbox(sender.Options{Workers: 2, MaxDuration: time.Second})
	wh := NewWebhook(WebhookOptions{VerifyToken: "t", Handler: d, Queue: queue})

	srv := httptest.NewUnstartedServer(wh)
	srv.Config.WriteTimeout = 400 * time.Millisecond
	srv.Start()
	defer srv.Close()

	body := `{"object":"page","entry":[{"id":"p1","messaging":[
		{"sender":{"id":"s1"},"message":{"text":"one"}},
		{"sender":{"id":"s2"},"message":{"text":"two"}},
		{"sender":{"id":"s3"},"message":{"text":"three"}}
	]}]}`
	start := time.Now()
	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	queue.Close()
	assert.Equal(t, 0, store.Len())
	rep.mu.Lock()
	defer rep.mu.Unlock()
	assert.Equal(t, []string{
		conversation.TranslationError,
		conversation.TranslationError,
		conversation.TranslationError,
	}, rep.sent)
}

func TestReceiveQueuesEventsInOrderPerSender(t *testing.T) {
	store := session.NewMemoryStore(session.MemoryConfig{})
	rep := &replies{}
	d, err := conversation.NewDispatcher(conversation.Options{
		Store:      store,
		Replier:    rep,
		Translator: fixedTranslator("Hello world"),
		Platform:   platform,
	})
	require.NoError(t, err)
	queue := sender.NewOutbox(sender.Options{Workers: 4})
	wh := NewWebhook(WebhookOptions{VerifyToken: "t", Handler: d, Queue: queue})

	for _, text := range []string{"hello", "French", "Bonjour le monde"} {
		require.Equal(t, http.StatusOK, post(t, wh, textEvent("psid-7", text), nil).Code)
	}
	queue.Close()

	assert.Equal(t, []string{
		"Please select a language: Arabic, English, Spanish, French, German",
		"Enter the text you want to translate:",
		"Translated text: Hello world",
	}, rep.sent)
	assert.Equal(t, 0, store.Len())
}
