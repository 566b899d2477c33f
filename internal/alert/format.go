package alert

import (
	"fmt"
	"strings"
	"time"

	"tdi-telegram-bot/internal/types"
	"tdi-telegram-bot/lib/helpers"
)

// TimeLayout renders as hour:minute:second day/month/year.
const TimeLayout = "15:04:05 02/01/2006"

// DefaultEmoji marks signal kinds missing from the kinds table.
const DefaultEmoji = "⚠️"

// Kind is how a signal type is presented in a notification.
type Kind struct {
	Emoji string
	Name  string
}

var kinds = map[string]Kind{
	"bullish_divergence":  {Emoji: "🟢📈", Name: "PHÂN KỲ TĂNG"},
	"bearish_divergence":  {Emoji: "🔴📉", Name: "PHÂN KỲ GIẢM"},
	"bullish_convergence": {Emoji: "🔵⬆️", Name: "HỘI TỤ TĂNG (Fast MA cắt lên)"},
	"bearish_convergence": {Emoji: "🟠⬇️", Name: "HỘI TỤ GIẢM (Fast MA cắt xuống)"},
}

// LookupKind returns the presentation for signalType and whether it is known.
// Unknown types fall back to DefaultEmoji and the upper-cased tag.
func LookupKind(signalType string) (Kind, bool) {
	if k, ok := kinds[signalType]; ok {
		return k, true
	}
	return Kind{Emoji: DefaultEmoji, Name: helpers.UpperTag(signalType)}, false
}

// KnownKinds lists the signal types with a dedicated presentation.
func KnownKinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	return out
}

// Formatter turns alerts into Telegram HTML messages.
type Formatter struct {
	// Now is used for the timestamp line. nil means time.Now.
	Now func() time.Time
}

func (f Formatter) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// Format renders a. The result has no surrounding whitespace.
func (f Formatter) Format(a types.Alert) string {
	kind, _ := LookupKind(a.Type)

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", kind.Emoji, helpers.EscapeHTML(kind.Name))
	fmt.Fprintf(&b, "📊 Cặp: <b>%s</b>\n", helpers.EscapeHTML(a.Symbol))
	fmt.Fprintf(&b, "⏰ Khung: <b>%s</b>\n", helpers.EscapeHTML(a.Timeframe))
	fmt.Fprintf(&b, "💰 Giá: <b>%s</b>\n", helpers.EscapeHTML(a.Price))
	fmt.Fprintf(&b, "🕐 Thời gian: <b>%s</b>\n", f.now().Local().Format(TimeLayout))

	if ma := a.MovingAverages; ma != nil {
		fmt.Fprintf(&b, "\n📉 Fast MA: %s", ma.Fast.StringFixed(2))
		fmt.Fprintf(&b, "\n📈 Slow MA: %s", ma.Slow.StringFixed(2))
	}

	return strings.TrimSpace(b.String())
}

// Format renders a with the wall clock.
func Format(a types.Alert) string {
	return Formatter{}.Format(a)
}
