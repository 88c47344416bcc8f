package format

import "strings"

// escaper rewrites the five HTML metacharacters, ampersand first. A
// Replacer works in a single left-to-right pass and never re-matches
// its own output, so ampersands produced by a replacement are not
// escaped again.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// Escape escapes literal text for embedding in markup. It must be the
// final transform applied to leaf text, exactly once: calling it on
// already-built markup would escape the tags themselves.
func Escape(text string) string {
	if text == "" {
		return ""
	}
	return escaper.Replace(text)
}
