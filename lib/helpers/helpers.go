package helpers

import (
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// EscapeHTML makes text safe for Telegram's HTML parse mode.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

// UpperTag upper-cases a signal tag without depending on the process locale.
func UpperTag(tag string) string {
	return upper.String(tag)
}

// RedactSecret removes every occurrence of secret from text.
func RedactSecret(text, secret string) string {
	if secret == "" {
		return text
	}
	return strings.ReplaceAll(text, secret, "<redacted>")
}

// FormatUptime renders how long ago the process started, e.g. "3 minutes".
func FormatUptime(startedAt, now time.Time) string {
	return strings.TrimSpace(humanize.RelTime(startedAt, now, "", ""))
}
