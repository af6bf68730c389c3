package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/follow-scope/fscope/internal/notify"
	"github.com/follow-scope/fscope/internal/tracking"
)

const (
	testBotToken = "test-bot-token"
	testChatID   = "12345"
)

func newTestSink(t *testing.T, handler http.Handler) *notify.TelegramSink {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return notify.NewTelegramSink(notify.TelegramConfig{
		BotToken: testBotToken,
		ChatID:   testChatID,
		BaseURL:  server.URL,
		Client:   server.Client(),
	})
}

func TestNotifyNewCommonFollowSendsMessage(t *testing.T) {
	var receivedPath, receivedChatID, receivedText string
	handler := http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		receivedPath = request.URL.Path
		receivedChatID = request.URL.Query().Get("chat_id")
		receivedText = request.URL.Query().Get("text")
		responseWriter.Write([]byte(`{"ok":true}`))
	})
	sink := newTestSink(t, handler)

	row := tracking.Row{
		ID:             "42",
		Name:           "Target Account",
		FollowedBy:     []string{"alpha", "bravo"},
		FollowersCount: 2,
	}
	if notifyErr := sink.NotifyNewCommonFollow(context.Background(), row); notifyErr != nil {
		t.Fatalf("NotifyNewCommonFollow returned error: %v", notifyErr)
	}

	if receivedPath != "/bot"+testBotToken+"/sendMessage" {
		t.Fatalf("request path = %s, want the bot sendMessage path", receivedPath)
	}
	if receivedChatID != testChatID {
		t.Fatalf("chat_id = %s, want %s", receivedChatID, testChatID)
	}
	for _, wantFragment := range []string{"Target Account", "42", "alpha, bravo"} {
		if !strings.Contains(receivedText, wantFragment) {
			t.Fatalf("message text = %q, want it to contain %q", receivedText, wantFragment)
		}
	}
}

func TestNotifyFirstRunSendsNotice(t *testing.T) {
	var receivedText string
	handler := http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		receivedText = request.URL.Query().Get("text")
		responseWriter.Write([]byte(`{"ok":true}`))
	})
	sink := newTestSink(t, handler)

	if notifyErr := sink.NotifyFirstRun(context.Background()); notifyErr != nil {
		t.Fatalf("NotifyFirstRun returned error: %v", notifyErr)
	}
	if !strings.Contains(receivedText, "first run") {
		t.Fatalf("message text = %q, want the first-run notice", receivedText)
	}
}

func TestSendMessageUnexpectedStatus(t *testing.T) {
	handler := http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.WriteHeader(http.StatusUnauthorized)
	})
	sink := newTestSink(t, handler)

	if notifyErr := sink.NotifyFirstRun(context.Background()); notifyErr == nil {
		t.Fatalf("NotifyFirstRun succeeded on an unauthorized response")
	}
}
