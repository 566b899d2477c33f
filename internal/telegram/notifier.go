package telegram

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"tdi-telegram-bot/lib/helpers"
)

// Notifier delivers messages to a single Telegram chat.
type Notifier struct {
	token    string
	endpoint string
	chatID   int64
	channel  string
	client   *http.Client
}

// NewNotifier creates a notifier for c. Unlike tgbotapi.NewBotAPI it does not
// call getMe, so construction never touches the network.
func NewNotifier(c BotConfig) (*Notifier, error) {
	if c.Token == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	if c.ChatID == "" {
		return nil, errors.New("telegram chat id is empty")
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if strings.Count(endpoint, "%s") != 2 {
		return nil, errors.Errorf("telegram endpoint %q must contain two %%s verbs", endpoint)
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}

	n := &Notifier{
		token:    c.Token,
		endpoint: endpoint,
		client:   client,
	}
	if id, err := strconv.ParseInt(c.ChatID, 10, 64); err == nil {
		n.chatID = id
	} else if strings.HasPrefix(c.ChatID, "@") {
		n.channel = c.ChatID
	} else {
		return nil, errors.New("telegram chat id must be numeric or an @channel username")
	}

	return n, nil
}

// contextClient binds every request made by the bot to ctx.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

func (n *Notifier) bot(ctx context.Context) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  n.token,
		Client: contextClient{ctx: ctx, client: n.client},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(n.endpoint)
	return bot
}

func (n *Notifier) message(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if n.channel != "" {
		msg = tgbotapi.NewMessageToChannel(n.channel, text)
	} else {
		msg = tgbotapi.NewMessage(n.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

// Send makes exactly one sendMessage call. Failures are logged and returned
// in the Result; they are never retried.
func (n *Notifier) Send(ctx context.Context, text string) Result {
	resp, err := n.bot(ctx).Request(n.message(text))
	if err != nil {
		// transport errors embed the request URL, which carries the token
		err = errors.Wrap(errors.New(helpers.RedactSecret(err.Error(), n.token)), "could not send telegram message")
		log.Errorf("Failed to send message: %v", err)
		return Result{Err: err}
	}

	log.Debug("Telegram message delivered")
	return Result{Response: resp.Result}
}
