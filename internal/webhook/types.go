package webhook

import (
	"context"

	"tdi-telegram-bot/internal/telegram"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusOK      = "ok"

	// TestMessage is what GET /test sends to the chat.
	TestMessage = "✅ Bot đang hoạt động!"

	maxBodyBytes = 1 << 20
)

// Response is the JSON body of every API endpoint.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Sender delivers one message to the configured chat.
type Sender interface {
	Send(ctx context.Context, text string) telegram.Result
}
