package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

const testToken = "123456:SECRET-token"

// fakeBotAPI records sendMessage calls and answers with a canned body.
type fakeBotAPI struct {
	mu     sync.Mutex
	calls  []url.Values
	paths  []string
	status int
	body   string
	delay  time.Duration
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(raw))

	f.mu.Lock()
	f.calls = append(f.calls, form)
	f.paths = append(f.paths, r.URL.Path)
	status, body, delay := f.status, f.body, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (f *fakeBotAPI) recorded() ([]url.Values, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.calls...), append([]string(nil), f.paths...)
}

func newFake(t *testing.T, f *fakeBotAPI) string {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv.URL + "/bot%s/%s"
}

func newNotifier(t *testing.T, endpoint, chatID string) *Notifier {
	t.Helper()
	n, err := NewNotifier(BotConfig{
		Token:    testToken,
		ChatID:   chatID,
		Endpoint: endpoint,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	return n
}

func TestSend_Success(t *testing.T) {
	fake := &fakeBotAPI{body: `{"ok":true,"result":{"message_id":7,"text":"hi"}}`}
	n := newNotifier(t, newFake(t, fake), "-100123")

	res := n.Send(context.Background(), "<b>hi</b>")
	if !res.Delivered() {
		t.Fatalf("expected delivery, got %v", res.Err)
	}
	if !strings.Contains(string(res.Response), `"message_id":7`) {
		t.Errorf("raw response not returned: %s", res.Response)
	}

	calls, paths := fake.recorded()
	if len(calls) != 1 {
		t.Fatalf("calls: got %d, want exactly 1", len(calls))
	}
	if paths[0] != "/bot"+testToken+"/sendMessage" {
		t.Errorf("path: got %q", paths[0])
	}
	call := calls[0]
	if call.Get("chat_id") != "-100123" {
		t.Errorf("chat_id: got %q", call.Get("chat_id"))
	}
	if call.Get("text") != "<b>hi</b>" {
		t.Errorf("text: got %q", call.Get("text"))
	}
	if call.Get("parse_mode") != "HTML" {
		t.Errorf("parse_mode: got %q", call.Get("parse_mode"))
	}
}

func TestSend_ChannelUsername(t *testing.T) {
	fake := &fakeBotAPI{body: `{"ok":true,"result":{}}`}
	n := newNotifier(t, newFake(t, fake), "@tdi_signals")

	if res := n.Send(context.Background(), "x"); !res.Delivered() {
		t.Fatalf("expected delivery, got %v", res.Err)
	}
	calls, _ := fake.recorded()
	if got := calls[0].Get("chat_id"); got != "@tdi_signals" {
		t.Errorf("chat_id: got %q", got)
	}
}

func TestSend_APIError(t *testing.T) {
	fake := &fakeBotAPI{
		status: http.StatusBadRequest,
		body:   `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`,
	}
	n := newNotifier(t, newFake(t, fake), "1")

	res := n.Send(context.Background(), "x")
	if res.Delivered() {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Err.Error(), "chat not found") {
		t.Errorf("cause not kept: %v", res.Err)
	}
	if calls, _ := fake.recorded(); len(calls) != 1 {
		t.Errorf("calls: got %d, want exactly 1 (no retry)", len(calls))
	}
}

func TestSend_NonJSONResponse(t *testing.T) {
	fake := &fakeBotAPI{status: http.StatusBadGateway, body: `<html>bad gateway</html>`}
	n := newNotifier(t, newFake(t, fake), "1")

	if res := n.Send(context.Background(), "x"); res.Delivered() {
		t.Fatal("expected failure for non-JSON body")
	}
}

func TestSend_TransportErrorRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/bot%s/%s"
	srv.Close()

	n := newNotifier(t, endpoint, "1")
	res := n.Send(context.Background(), "x")
	if res.Delivered() {
		t.Fatal("expected failure against closed server")
	}
	if strings.Contains(res.Err.Error(), testToken) {
		t.Errorf("token leaked into error: %v", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "<redacted>") {
		t.Errorf("expected redaction marker: %v", res.Err)
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	fake := &fakeBotAPI{body: `{"ok":true,"result":{}}`, delay: 5 * time.Second}
	n := newNotifier(t, newFake(t, fake), "1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := n.Send(ctx, "x")
	if res.Delivered() {
		t.Fatal("expected failure after context deadline")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("Send ignored context deadline, took %s", time.Since(start))
	}
}

func TestNewNotifier_Validation(t *testing.T) {
	cases := map[string]BotConfig{
		"no token":     {ChatID: "1"},
		"no chat":      {Token: testToken},
		"bad chat":     {Token: testToken, ChatID: "my channel"},
		"bad endpoint": {Token: testToken, ChatID: "1", Endpoint: "https://example.com/send"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewNotifier(c); err == nil {
				t.Error("expected error")
			}
		})
	}

	n, err := NewNotifier(BotConfig{Token: testToken, ChatID: "42"})
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if n.endpoint != "https://api.telegram.org/bot%s/%s" {
		t.Errorf("default endpoint: got %q", n.endpoint)
	}
}
