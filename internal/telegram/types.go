package telegram

import (
	"encoding/json"
	"net/http"
	"time"
)

// BotConfig configuration of the notifier
type BotConfig struct {
	Token    string
	ChatID   string
	Endpoint string
	Timeout  time.Duration
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// Result is the outcome of a single delivery attempt.
type Result struct {
	// Response is the raw "result" object returned by the Bot API.
	Response json.RawMessage
	// Err is nil when the message was accepted.
	Err error
}

// Delivered reports whether Telegram accepted the message.
func (r Result) Delivered() bool {
	return r.Err == nil
}
