package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
	"github.com/CrystalRanch/Payout-Backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	Path string
	Body sendMessageRequest
}

type telegramRecorder struct {
	mu       sync.Mutex
	fail     bool
	messages []sentMessage
}

func (r *telegramRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body sendMessageRequest
		_ = json.NewDecoder(req.Body).Decode(&body)

		r.mu.Lock()
		r.messages = append(r.messages, sentMessage{Path: req.URL.Path, Body: body})
		fail := r.fail
		r.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"ok": false, "description": "chat not found"}`))
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}
}

func (r *telegramRecorder) sent() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

func newTestTelegram(baseURL, opsChat string) *TelegramProvider {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &TelegramProvider{
		HttpClient: &http.Client{Timeout: time.Second * 5},
		Config: &utils.Config{
			TelegramBotToken: "test-token",
			TelegramOpsChat:  opsChat,
		},
		BaseURL: baseURL,
		logger:  &logging.Logger{Logger: l},
	}
}

func TestNotifyRequester(t *testing.T) {
	recorder := &telegramRecorder{}
	srv := httptest.NewServer(recorder.handler())
	defer srv.Close()

	tg := newTestTelegram(srv.URL, "")
	ok := tg.NotifyRequester(context.Background(), "42", decimal.RequireFromString("0.5"), "EQdestination")

	assert.True(t, ok)
	sent := recorder.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "/bottest-token/sendMessage", sent[0].Path)
	assert.Equal(t, "42", sent[0].Body.ChatID)
	assert.Contains(t, sent[0].Body.Text, "0.5")
	assert.Contains(t, sent[0].Body.Text, "EQdestination")
	assert.True(t, sent[0].Body.DisableWebPagePreview)
}

func TestNotifyRequester_DeliveryFailure(t *testing.T) {
	recorder := &telegramRecorder{fail: true}
	srv := httptest.NewServer(recorder.handler())
	defer srv.Close()

	tg := newTestTelegram(srv.URL, "")
	ok := tg.NotifyRequester(context.Background(), "42", decimal.NewFromInt(1), "EQdestination")

	assert.False(t, ok, "a 4xx from Telegram reports failed delivery")
}

func TestNotifyOperations(t *testing.T) {
	recorder := &telegramRecorder{}
	srv := httptest.NewServer(recorder.handler())
	defer srv.Close()

	tg := newTestTelegram(srv.URL, "-100123")
	tg.NotifyOperations(context.Background(), decimal.RequireFromString("0.5"), "EQdestination", "42")

	sent := recorder.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "-100123", sent[0].Body.ChatID)
	assert.Contains(t, sent[0].Body.Text, "42")
}

func TestNotifyOperations_NoOpsChatConfigured(t *testing.T) {
	recorder := &telegramRecorder{}
	srv := httptest.NewServer(recorder.handler())
	defer srv.Close()

	tg := newTestTelegram(srv.URL, "")
	tg.NotifyOperations(context.Background(), decimal.NewFromInt(1), "EQdestination", "42")

	assert.Empty(t, recorder.sent())
}

func TestAlertOperator(t *testing.T) {
	recorder := &telegramRecorder{}
	srv := httptest.NewServer(recorder.handler())
	defer srv.Close()

	tg := newTestTelegram(srv.URL, "-100123")
	tg.AlertOperator(context.Background(), "wallet balance too low")

	sent := recorder.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "-100123", sent[0].Body.ChatID)
	assert.Contains(t, sent[0].Body.Text, "🚨")
	assert.Contains(t, sent[0].Body.Text, "wallet balance too low")
}
