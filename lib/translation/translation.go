package translation

import (
	"strings"

	"github.com/leonelquinteros/gotext"
)

// Configure loads the catalog for lang from dir. Message ids are the
// Vietnamese strings, so "vi" (or a missing catalog) returns them as-is.
func Configure(dir, lang string) {
	gotext.Configure(dir, strings.ToLower(lang), "default")
}

func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
