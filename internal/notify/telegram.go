package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/follow-scope/fscope/internal/tracking"
)

const (
	telegramDefaultBaseURL       = "https://api.telegram.org"
	telegramSendMessageURLFormat = "%s/bot%s/sendMessage"
	telegramChatIDParameterName  = "chat_id"
	telegramTextParameterName    = "text"
	telegramDefaultTimeout       = 15 * time.Second
	errMessageTelegramStatus     = "telegram sendMessage returned unexpected status code"
	newCommonFollowMessageFormat = "New common follow found:\nAccount: %s (ID: %s)\nFollowed by: %s\nNumber of followers: %d"
	firstRunMessageText          = "No previous data found. This is the first run."
)

// TelegramConfig configures a TelegramSink. BotToken is an opaque credential.
// BaseURL defaults to the public Telegram Bot API endpoint.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
}

// TelegramSink delivers events as Telegram bot messages.
type TelegramSink struct {
	sendMessageURL string
	chatID         string
	httpClient     *http.Client
}

// NewTelegramSink constructs a TelegramSink from configuration values.
func NewTelegramSink(configuration TelegramConfig) *TelegramSink {
	httpClient := configuration.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: telegramDefaultTimeout}
	}
	baseURL := strings.TrimSuffix(configuration.BaseURL, "/")
	if baseURL == "" {
		baseURL = telegramDefaultBaseURL
	}
	return &TelegramSink{
		sendMessageURL: fmt.Sprintf(telegramSendMessageURLFormat, baseURL, configuration.BotToken),
		chatID:         configuration.ChatID,
		httpClient:     httpClient,
	}
}

// NotifyNewCommonFollow sends the confirmed account details to the chat.
func (sink *TelegramSink) NotifyNewCommonFollow(ctx context.Context, row tracking.Row) error {
	messageText := fmt.Sprintf(newCommonFollowMessageFormat,
		row.Name, row.ID, strings.Join(row.FollowedBy, followedByJoinSeparator), row.FollowersCount)
	return sink.sendMessage(ctx, messageText)
}

// NotifyFirstRun sends the first-run notice to the chat.
func (sink *TelegramSink) NotifyFirstRun(ctx context.Context) error {
	return sink.sendMessage(ctx, firstRunMessageText)
}

func (sink *TelegramSink) sendMessage(ctx context.Context, messageText string) error {
	queryValues := url.Values{}
	queryValues.Set(telegramChatIDParameterName, sink.chatID)
	queryValues.Set(telegramTextParameterName, messageText)

	requestURL := sink.sendMessageURL + "?" + queryValues.Encode()
	httpRequest, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if requestErr != nil {
		return requestErr
	}

	httpResponse, httpErr := sink.httpClient.Do(httpRequest)
	if httpErr != nil {
		return httpErr
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(httpResponse.Body, 1024))
		httpResponse.Body.Close()
	}()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return fmt.Errorf("%s: %d", errMessageTelegramStatus, httpResponse.StatusCode)
	}
	return nil
}
