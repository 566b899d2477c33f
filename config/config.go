package config

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Settings is the process-wide configuration. It is read once at startup
// and passed by value to whatever needs it.
type Settings struct {
	TelegramBotToken string
	TelegramChatID   string
	TelegramEndpoint string
	SendTimeout      time.Duration
	Port             int
	MetricsPort      int
	MetricsDB        string
	LogFile          string
	Debug            bool
	Lang             string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram_chat_id", "TELEGRAM_CHAT_ID")
	v.BindEnv("telegram_api_endpoint", "TELEGRAM_API_ENDPOINT")
	v.BindEnv("send_timeout", "SEND_TIMEOUT")
	v.BindEnv("port", "PORT")
	v.BindEnv("metrics_port", "METRICS_PORT")
	v.BindEnv("metrics_db", "METRICS_DB")
	v.BindEnv("log_file", "LOG_FILE")
	v.BindEnv("debug", "DEBUG")
	v.BindEnv("lang", "BOT_LANG")

	v.SetDefault("telegram_api_endpoint", tgbotapi.APIEndpoint)
	v.SetDefault("send_timeout", 10*time.Second)
	v.SetDefault("port", 5000)
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("debug", false)
	v.SetDefault("lang", "vi")

	return v
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (Settings, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing .env is normal in containers
		_ = godotenv.Load(f)
	}

	v := newViper()
	s := Settings{
		TelegramBotToken: v.GetString("telegram_bot_token"),
		TelegramChatID:   v.GetString("telegram_chat_id"),
		TelegramEndpoint: v.GetString("telegram_api_endpoint"),
		SendTimeout:      v.GetDuration("send_timeout"),
		Port:             v.GetInt("port"),
		MetricsPort:      v.GetInt("metrics_port"),
		MetricsDB:        v.GetString("metrics_db"),
		LogFile:          v.GetString("log_file"),
		Debug:            v.GetBool("debug"),
		Lang:             v.GetString("lang"),
	}

	return s, s.Validate()
}

// Validate checks that the settings can run the bot.
func (s Settings) Validate() error {
	if s.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not set")
	}
	if s.TelegramChatID == "" {
		return errors.New("TELEGRAM_CHAT_ID is not set")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return errors.Errorf("invalid PORT %d", s.Port)
	}
	if s.MetricsPort < 0 || s.MetricsPort > 65535 {
		return errors.Errorf("invalid METRICS_PORT %d", s.MetricsPort)
	}
	if s.SendTimeout <= 0 {
		return errors.Errorf("invalid SEND_TIMEOUT %s", s.SendTimeout)
	}
	return nil
}
