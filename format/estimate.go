package format

import (
	"regexp"
	"strings"
)

// Extraction patterns for the job-estimate template. Evaluated as an
// ordered table on every render; extraction is total, so a pattern
// that fails to match leaves its field empty instead of erroring.
var (
	timeRe        = regexp.MustCompile(`(?i)estimated time:[ \t]*(.*)`)
	confidenceRe  = regexp.MustCompile(`(?i)confidence:[ \t]*(.*)`)
	summaryHdrRe  = regexp.MustCompile(`(?i)schedule summary:`)
	questionHdrRe = regexp.MustCompile(`(?i)to improve this estimate[^:\n]*:`)
)

// Estimate holds the fields extracted from a job-estimate reply. It is
// derived at render time and never stored.
type Estimate struct {
	Time         string
	Confidence   string
	SummaryItems []string
	FollowUps    []string
}

// IsEstimate reports whether text follows the job-estimate template.
// All three markers are required; anything less renders generically.
func IsEstimate(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "estimated time:") &&
		strings.Contains(lower, "confidence:") &&
		strings.Contains(lower, "schedule summary:")
}

func parseEstimate(text string) Estimate {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var est Estimate
	if m := timeRe.FindStringSubmatch(text); m != nil {
		est.Time = strings.TrimSpace(m[1])
	}
	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		est.Confidence = strings.TrimSpace(m[1])
	}

	lines := strings.Split(text, "\n")
	est.SummaryItems = bulletsAfter(lines, summaryHdrRe)
	est.FollowUps = bulletsAfter(lines, questionHdrRe)
	return est
}

// bulletsAfter collects the run of "- " lines immediately following
// the first line matching header. The run ends at the first line that
// is not a bullet.
func bulletsAfter(lines []string, header *regexp.Regexp) []string {
	start := -1
	for i, line := range lines {
		if header.MatchString(line) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	var items []string
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- ") {
			break
		}
		items = append(items, strings.TrimSpace(trimmed[2:]))
	}
	return items
}

// confidenceBadge classifies free-form confidence text into a badge
// style by substring. Anything neither low nor high gets the default
// badge.
func confidenceBadge(confidence string) string {
	lower := strings.ToLower(confidence)
	switch {
	case strings.Contains(lower, "low"):
		return "confidence-low"
	case strings.Contains(lower, "high"):
		return "confidence-high"
	default:
		return "confidence-unspecified"
	}
}

// RenderEstimate renders a job-estimate reply as a structured layout:
// time and confidence header, schedule summary, follow-up questions.
// Sections whose source fields are entirely absent are omitted, so a
// reply that merely quotes the template markers degrades to an empty
// fragment rather than erroring.
func RenderEstimate(text string) string {
	est := parseEstimate(text)

	var b strings.Builder
	if est.Time != "" || est.Confidence != "" {
		b.WriteString(`<div class="estimate-header">`)
		if est.Time != "" {
			b.WriteString(`<span class="time-row">⏱️ ` + Escape(est.Time) + `</span>`)
		}
		if est.Confidence != "" {
			b.WriteString(`<span class="confidence-badge ` + confidenceBadge(est.Confidence) + `">` + Escape(est.Confidence) + `</span>`)
		}
		b.WriteString(`</div>`)
	}

	if len(est.SummaryItems) > 0 {
		// Summary bullets collapse into one comma-joined item.
		// TODO: confirm with product whether the collapsing is wanted;
		// the follow-up questions below render one item per bullet.
		b.WriteString(`<div class="summary-section"><div class="section-label">📋 Schedule Summary</div><ul class="summary-list"><li>`)
		b.WriteString(Escape(strings.Join(est.SummaryItems, ", ")))
		b.WriteString(`</li></ul></div>`)
	}

	if len(est.FollowUps) > 0 {
		b.WriteString(`<div class="questions-section"><div class="section-label">❓ To improve this estimate</div><ul class="question-list">`)
		for _, q := range est.FollowUps {
			b.WriteString(`<li>` + Escape(q) + `</li>`)
		}
		b.WriteString(`</ul></div>`)
	}
	return b.String()
}
