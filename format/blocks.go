package format

import (
	"regexp"
	"strings"
)

var (
	blankRunRe = regexp.MustCompile(`\n{2,}`)
	bulletRe   = regexp.MustCompile(`^\s*[•\-\*]\s+(.*)$`)
	numberedRe = regexp.MustCompile(`^\s*\d+\.\s+(.*)$`)
	langTagRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+#.-]*$`)
)

// RenderBlocks converts a block of text into a sequence of
// self-contained markup fragments: fenced code, bullet or numbered
// lists, and paragraphs with single line breaks preserved.
func RenderBlocks(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	for _, candidate := range blankRunRe.Split(text, -1) {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		switch {
		case strings.Contains(candidate, "```"):
			renderFenced(&b, candidate)
		case hasListLine(candidate):
			renderList(&b, candidate)
		default:
			renderParagraph(&b, candidate)
		}
	}
	return b.String()
}

func hasListLine(candidate string) bool {
	for _, line := range strings.Split(candidate, "\n") {
		if bulletRe.MatchString(line) || numberedRe.MatchString(line) {
			return true
		}
	}
	return false
}

// renderFenced splits a candidate on triple-backtick delimiters.
// Odd-indexed segments are code, even-indexed segments are prose.
func renderFenced(b *strings.Builder, candidate string) {
	for i, seg := range strings.Split(candidate, "```") {
		if i%2 == 1 {
			b.WriteString(renderCodeBlock(seg))
			continue
		}
		if strings.TrimSpace(seg) == "" {
			continue
		}
		renderParagraph(b, strings.Trim(seg, "\n"))
	}
}

func renderCodeBlock(seg string) string {
	lines := strings.Split(seg, "\n")
	// A bare language tag on the opening fence line is not code.
	if len(lines) > 1 && langTagRe.MatchString(lines[0]) {
		lines = lines[1:]
	}
	code := strings.Trim(strings.Join(lines, "\n"), "\n")
	return "<pre><code>" + Escape(code) + "</code></pre>"
}

func renderParagraph(b *strings.Builder, candidate string) {
	lines := strings.Split(candidate, "\n")
	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		rendered = append(rendered, RenderInline(line))
	}
	b.WriteString("<p>" + strings.Join(rendered, "<br>") + "</p>")
}

// List rendering walks line by line through an explicit state machine
// so the open container is always closed before the tag type changes
// or a prose line interrupts the list. Mixed candidates therefore
// never produce unclosed or nested list tags.
type listState int

const (
	noList listState = iota
	inUnordered
	inOrdered
)

func renderList(b *strings.Builder, candidate string) {
	state := noList
	closeList := func() {
		switch state {
		case inUnordered:
			b.WriteString("</ul>")
		case inOrdered:
			b.WriteString("</ol>")
		}
		state = noList
	}

	for _, line := range strings.Split(candidate, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			if state != inUnordered {
				closeList()
				b.WriteString("<ul>")
				state = inUnordered
			}
			b.WriteString("<li>" + RenderInline(m[1]) + "</li>")
			continue
		}
		if m := numberedRe.FindStringSubmatch(line); m != nil {
			if state != inOrdered {
				closeList()
				b.WriteString("<ol>")
				state = inOrdered
			}
			b.WriteString("<li>" + RenderInline(m[1]) + "</li>")
			continue
		}
		closeList()
		b.WriteString("<p>" + RenderInline(line) + "</p>")
	}
	closeList()
}
