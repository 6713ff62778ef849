package aggregator

import "strings"

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape replaces the five XML special characters with entity references.
// Line breaks are kept as is.
func Escape(s string) string {
	return xmlEscaper.Replace(s)
}
