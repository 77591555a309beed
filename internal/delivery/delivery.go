package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"postback-relay/internal/model"
)

// Sender delivers rendered text to a chat destination.
type Sender interface {
	Send(ctx context.Context, dest model.Destination, text string) error
}

// APIError is a rejection reported by the Telegram Bot API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api: status %d: %s", e.StatusCode, e.Description)
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	MessageThreadID       *int64 `json:"message_thread_id,omitempty"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// TelegramSender calls the Bot API sendMessage method.
type TelegramSender struct {
	endpoint string
	timeout  time.Duration
}

// NewTelegramSender creates a sender for the bot identified by token.
func NewTelegramSender(apiURL, token string, timeout time.Duration) *TelegramSender {
	return &TelegramSender{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(apiURL, "/"), token),
		timeout:  timeout,
	}
}

func (s *TelegramSender) Send(ctx context.Context, dest model.Destination, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout || timeout <= 0 {
			timeout = left
		}
	}

	agent := fiber.Post(s.endpoint)
	agent.JSON(sendMessageRequest{
		ChatID:                dest.ChatID,
		MessageThreadID:       threadID(dest.TopicID),
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if timeout > 0 {
		agent.Timeout(timeout)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("send message: %w", errors.Join(errs...))
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if code >= fiber.StatusOK && code < fiber.StatusMultipleChoices {
			return fmt.Errorf("decode telegram response: %w", err)
		}
		return &APIError{StatusCode: code, Description: strings.TrimSpace(string(body))}
	}
	if !resp.OK || code >= fiber.StatusMultipleChoices {
		return &APIError{StatusCode: code, Description: resp.Description}
	}
	return nil
}

// threadID treats a zero topic as the chat's main thread.
func threadID(topic *int64) *int64 {
	if topic == nil || *topic == 0 {
		return nil
	}
	return topic
}

// LogSender only logs messages. It stands in for Telegram when no bot token
// is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, dest model.Destination, text string) error {
	attrs := []any{"chat_id", dest.ChatID, "text", text}
	if dest.TopicID != nil {
		attrs = append(attrs, "topic_id", *dest.TopicID)
	}
	slog.Info("delivery skipped, no bot token configured", attrs...)
	return nil
}
