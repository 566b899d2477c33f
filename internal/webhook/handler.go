package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"runtime"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"tdi-telegram-bot/internal/alert"
	"tdi-telegram-bot/internal/metrics"
	"tdi-telegram-bot/internal/telegram"
	"tdi-telegram-bot/internal/types"
	"tdi-telegram-bot/lib/helpers"
	"tdi-telegram-bot/lib/translation"
)

// Handler serves the webhook, the test trigger and the home page.
type Handler struct {
	sender      Sender
	metrics     *metrics.BotMetrics
	formatter   alert.Formatter
	sendTimeout time.Duration
	startedAt   time.Time
	now         func() time.Time
	mux         *http.ServeMux
}

type Option func(*Handler)

// WithClock replaces the wall clock used for timestamps and uptime.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
		h.formatter.Now = now
	}
}

// WithSendTimeout bounds each delivery attempt.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Handler) { h.sendTimeout = d }
}

func New(sender Sender, m *metrics.BotMetrics, opts ...Option) *Handler {
	h := &Handler{
		sender:      sender,
		metrics:     m,
		sendTimeout: 10 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.now()

	h.mux = http.NewServeMux()
	h.mux.HandleFunc("POST /webhook", h.handleWebhook)
	h.mux.HandleFunc("GET /test", h.handleTest)
	h.mux.HandleFunc("GET /{$}", h.handleHome)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", rec, stackTrace)
			writeJSON(w, http.StatusInternalServerError, Response{Status: StatusError, Message: fmt.Sprint(rec)})
		}
	}()
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := types.ParseAlert(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.metrics.PayloadErrors.Inc()
		err = errors.Wrap(err, "invalid alert payload")
		log.Warnf("Rejected webhook: %v", err)
		writeJSON(w, http.StatusInternalServerError, Response{Status: StatusError, Message: err.Error()})
		return
	}

	a := payload.Normalize()
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("Received alert: %s", spew.Sdump(a))
	}
	_, known := alert.LookupKind(a.Type)
	h.metrics.ObserveAlert(a.Type, known)

	result := h.deliver(r.Context(), metrics.EndpointWebhook, h.formatter.Format(a))
	if !result.Delivered() {
		// the cause stays in the log; callers only learn that delivery failed
		writeJSON(w, http.StatusInternalServerError, Response{
			Status:  StatusError,
			Message: translation.Translate("Lỗi gửi Telegram"),
		})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:  StatusSuccess,
		Message: translation.Translate("Đã gửi Telegram"),
	})
}

// handleTest is a reachability check: it reports ok whatever the delivery
// outcome, which is still logged and counted.
func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	result := h.deliver(r.Context(), metrics.EndpointTest, TestMessage)
	if !result.Delivered() {
		log.Warn("Test message was not delivered")
	}
	writeJSON(w, http.StatusOK, Response{Status: StatusOK, Message: "Test message sent"})
}

var homePage = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>TDI Telegram Webhook Bot</title></head>
<body>
<h1>TDI Telegram Webhook Bot</h1>
<p>{{.Running}}</p>
<p>{{.Uptime}}</p>
<ul>
	<li><a href="/test">{{.TestLink}}</a></li>
</ul>
</body>
</html>
`))

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Running  string
		Uptime   string
		TestLink string
	}{
		Running:  translation.Translate("Bot đang chạy!"),
		Uptime:   translation.Translate("Đã chạy được %s", helpers.FormatUptime(h.startedAt, h.now())),
		TestLink: translation.Translate("Test gửi Telegram"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homePage.Execute(w, data); err != nil {
		log.Errorf("Failed to render home page: %v", err)
	}
}

// deliver sends text once. Cancellation of the inbound request does not
// abort the send; only the send timeout does.
func (h *Handler) deliver(ctx context.Context, endpoint, text string) (result telegram.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.sendTimeout)
	defer cancel()

	start := time.Now()
	result = h.sender.Send(ctx, text)
	h.metrics.ObserveDelivery(endpoint, result.Delivered(), time.Since(start))
	return result
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to write response: %v", err)
	}
}
