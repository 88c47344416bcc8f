// Package format converts chat message text into the markup fragments
// the page embeds inside a message bubble. Formatting is a pure
// function of the input text: job-estimate replies render as a
// structured layout, everything else goes through the Markdown-lite
// block formatter. The output never includes a top-level wrapper; the
// page supplies the bubble element itself.
package format

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Messages are append-only: the page
// either appends to the transcript or clears it whole.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response renders assistant text to markup.
func Response(text string) string {
	if IsEstimate(text) {
		return RenderEstimate(text)
	}
	return RenderBlocks(text)
}

// MessageMarkup renders one transcript entry. Only assistant messages
// are probed for the estimate template; user text always renders
// generically.
func MessageMarkup(m Message) string {
	if m.Role == RoleUser {
		return RenderBlocks(m.Content)
	}
	return Response(m.Content)
}
