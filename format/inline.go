package format

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

var (
	codeSpanRe  = regexp.MustCompile("`([^`]+)`")
	boldStarRe  = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderRe = regexp.MustCompile(`__(.+?)__`)

	// Single-delimiter spans need lookarounds: a lone star left over
	// from the bold pass must not open an italic span, and underscores
	// inside identifiers like shutoff_valve_access are not markup.
	// \x00 is the placeholder sentinel; spans never cross one.
	italStarRe  = regexp2.MustCompile(`(?<!\*)\*([^*\x00]+)\*(?!\*)`, 0)
	italUnderRe = regexp2.MustCompile(`(?<![\w_])_([^_\x00]+)_(?![\w_])`, 0)
)

// RenderInline converts Markdown-lite spans in one line of prose into
// markup: `code`, **bold** or __bold__, *italic* or _italic_. Leaf
// text is escaped before any span is wrapped. Block constructs are
// RenderBlocks' job.
//
// Each consumed span is parked behind a placeholder until all passes
// have run, so a later pass can never match inside an earlier span:
// code spans keep their literal stars, and ***text*** resolves in
// favor of bold.
func RenderInline(text string) string {
	if text == "" {
		return ""
	}

	var spans []string
	stash := func(markup string) string {
		spans = append(spans, markup)
		return fmt.Sprintf("\x00%d\x00", len(spans)-1)
	}

	out := Escape(text)

	out = codeSpanRe.ReplaceAllStringFunc(out, func(m string) string {
		return stash("<code>" + m[1:len(m)-1] + "</code>")
	})

	for _, re := range []*regexp.Regexp{boldStarRe, boldUnderRe} {
		out = re.ReplaceAllStringFunc(out, func(m string) string {
			return stash("<strong>" + m[2:len(m)-2] + "</strong>")
		})
	}

	for _, re := range []*regexp2.Regexp{italStarRe, italUnderRe} {
		out = replaceItalic(re, out, stash)
	}

	// Unwind placeholders highest-first so spans stashed inside later
	// spans (a code span captured by a bold pass) restore correctly.
	for i := len(spans) - 1; i >= 0; i-- {
		out = strings.Replace(out, fmt.Sprintf("\x00%d\x00", i), spans[i], 1)
	}
	return out
}

func replaceItalic(re *regexp2.Regexp, s string, stash func(string) string) string {
	out, err := re.ReplaceFunc(s, func(m regexp2.Match) string {
		return stash("<em>" + m.GroupByNumber(1).String() + "</em>")
	}, -1, -1)
	if err != nil {
		// Replacement over arbitrary text cannot fail in practice;
		// keep the input rather than dropping the message.
		return s
	}
	return out
}
