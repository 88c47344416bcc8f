package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"handychat/format"
)

// RequestTelemetry holds telemetry data for one request
type RequestTelemetry struct {
	RequestID    string
	Method       string
	Path         string
	UserAgent    string
	RemoteAddr   string
	Query        string
	InputHash    string
	OutputHash   string
	InputTokens  int
	OutputTokens int
	Model        string
	ResponseType string
	Status       int
	StartTime    time.Time
	Duration     time.Duration
}

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
    <title>Ace Handyman Services Chat</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        @import url('https://fonts.googleapis.com/css2?family=DM+Sans:wght@400;500;700&display=swap');

        body {
            font-family: 'DM Sans', sans-serif;
            background-color: #F9F7F4;
            color: #1B3139;
            margin: 2rem auto;
            max-width: 700px;
            padding: 0 1rem 140px 1rem;
        }

        .chat-title {
            font-size: 24px;
            font-weight: 700;
            color: #1B3139;
            text-align: center;
            margin-bottom: 20px;
        }

        .info-note {
            background-color: #EEEDE9;
            border-left: 4px solid #1B3139;
            padding: 12px 16px;
            margin: 15px 0;
            border-radius: 6px;
            font-size: 14px;
        }

        .chat-message {
            padding: 10px 15px;
            border-radius: 20px;
            margin: 10px 0;
            font-size: 16px;
            line-height: 1.4;
            max-width: 80%;
        }

        .user-message {
            background-color: #FF3621;
            color: white;
            margin-left: auto;
            margin-right: 0;
        }

        .assistant-message {
            background-color: #1B3139;
            color: white;
            margin-left: 0;
            margin-right: auto;
        }

        .assistant-message p { margin: 0 0 8px 0; }
        .assistant-message p:last-child { margin-bottom: 0; }
        .assistant-message pre {
            background-color: #2D4550;
            border-radius: 8px;
            padding: 10px;
            overflow-x: auto;
        }
        .assistant-message code { font-family: monospace; }
        .assistant-message ul, .assistant-message ol { margin: 4px 0; padding-left: 22px; }

        .estimate-header {
            display: flex;
            align-items: center;
            gap: 10px;
            margin-bottom: 8px;
        }
        .time-row { font-weight: 500; }
        .confidence-badge {
            padding: 2px 10px;
            border-radius: 12px;
            font-size: 13px;
            font-weight: 700;
        }
        .confidence-high { background-color: #00A972; color: white; }
        .confidence-low { background-color: #FF3621; color: white; }
        .confidence-unspecified { background-color: #EEEDE9; color: #1B3139; }
        .section-label { font-weight: 700; margin-top: 8px; }
        .summary-list, .question-list { margin: 4px 0; padding-left: 22px; }

        .typing-indicator {
            background-color: #2D4550;
            color: #EEEDE9;
            padding: 10px 15px;
            border-radius: 20px;
            margin: 10px 0;
            font-style: italic;
        }

        .feedback-container {
            margin-top: 10px;
            padding: 10px;
            border-radius: 10px;
        }
        .feedback-container button {
            border-radius: 20px;
            border: 1px solid #EEEDE9;
            background: white;
            padding: 6px 14px;
            cursor: pointer;
            margin-right: 8px;
        }
        .feedback-container textarea, .feedback-container select {
            display: block;
            width: 100%;
            margin: 8px 0;
            border-radius: 8px;
            border: 1px solid #EEEDE9;
            padding: 8px;
            font-family: inherit;
        }
        .feedback-thankyou {
            color: #00A972;
            font-weight: bold;
            margin-top: 8px;
        }

        .fixed-bottom-input {
            position: fixed;
            bottom: 0;
            left: 0;
            right: 0;
            background-color: #F9F7F4;
            padding: 15px 20px;
            border-top: 2px solid #EEEDE9;
            box-shadow: 0 -4px 12px rgba(0,0,0,0.1);
        }
        .input-row {
            display: flex;
            gap: .5rem;
            max-width: 700px;
            margin: 0 auto;
        }
        .input-row input[type="text"] {
            flex: 1;
            padding: 12px 16px;
            font-size: 1rem;
            border: 2px solid #1B3139;
            border-radius: 12px;
            outline: none;
        }
        .input-row button {
            padding: 12px 24px;
            font-weight: 600;
            background: #FF3621;
            color: white;
            border: none;
            border-radius: 10px;
            cursor: pointer;
        }
        .input-row button.clear {
            background: #EEEDE9;
            color: #1B3139;
        }
    </style>
</head>
<body>
`

const htmlFooter = `</div>
    <div class="fixed-bottom-input">
        <form id="chat-form" class="input-row">
            <input type="text" id="query-input" placeholder="Type your message here... (Press Enter to send)" autofocus>
            <button type="submit" id="send-button">Send</button>
            <button type="button" class="clear" id="clear-button">Clear</button>
        </form>
    </div>

    <script>
        var conversationId = localStorage.getItem('conversation_id') || '';
        var transcript = [];

        function bubble(cls) {
            var div = document.createElement('div');
            div.className = 'chat-message ' + cls;
            document.getElementById('chat').appendChild(div);
            return div;
        }

        function saveConversation() {
            localStorage.setItem('chat_transcript', JSON.stringify(transcript));
            localStorage.setItem('conversation_id', conversationId);
        }

        function loadConversation() {
            var saved = localStorage.getItem('chat_transcript');
            if (!saved) return;
            try { transcript = JSON.parse(saved); } catch (e) { transcript = []; return; }
            for (var i = 0; i < transcript.length; i++) {
                var m = transcript[i];
                if (m.role === 'user') {
                    bubble('user-message').textContent = m.content;
                } else {
                    bubble('assistant-message').innerHTML = m.markup || '';
                }
            }
            attachFeedback();
        }

        function removeFeedback() {
            var old = document.querySelector('.feedback-container');
            if (old) old.remove();
        }

        // Feedback widget on the latest assistant bubble only.
        function attachFeedback() {
            removeFeedback();
            var bubbles = document.querySelectorAll('.assistant-message');
            if (bubbles.length === 0) return;
            var last = bubbles[bubbles.length - 1];

            var box = document.createElement('div');
            box.className = 'feedback-container';
            var up = document.createElement('button');
            up.textContent = '👍';
            var down = document.createElement('button');
            down.textContent = '👎';
            box.appendChild(up);
            box.appendChild(down);
            up.onclick = function () { showFeedbackForm(box, 'thumbs-up'); };
            down.onclick = function () { showFeedbackForm(box, 'thumbs-down'); };
            last.insertAdjacentElement('afterend', box);
        }

        function showFeedbackForm(box, value) {
            var old = box.querySelector('form');
            if (old) old.remove();

            var form = document.createElement('form');
            var select = null;
            if (value === 'thumbs-down') {
                select = document.createElement('select');
                ['inaccurate', 'outdated', 'too long', 'too short', 'other'].forEach(function (opt) {
                    var o = document.createElement('option');
                    o.value = opt;
                    o.textContent = opt;
                    select.appendChild(o);
                });
                form.appendChild(select);
            }
            var comment = document.createElement('textarea');
            comment.placeholder = 'Share your thoughts about this response...';
            form.appendChild(comment);
            var submit = document.createElement('button');
            submit.type = 'submit';
            submit.textContent = 'Submit Feedback';
            form.appendChild(submit);
            box.appendChild(form);

            form.onsubmit = function (event) {
                event.preventDefault();
                var params = new URLSearchParams();
                params.append('feedback', value);
                params.append('comment', comment.value);
                params.append('category', select ? select.value : '');
                params.append('conversation_id', conversationId);
                params.append('message', JSON.stringify(transcript));
                fetch('/feedback', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                    body: params.toString()
                });
                box.innerHTML = '<div class="feedback-thankyou">Thank you for the feedback!</div>';
            };
        }

        async function sendMessage(event) {
            event.preventDefault();
            var input = document.getElementById('query-input');
            var query = input.value.trim();
            if (!query) return;

            input.disabled = true;
            document.getElementById('send-button').disabled = true;
            removeFeedback();

            bubble('user-message').textContent = query;
            var typing = bubble('typing-indicator');
            typing.textContent = 'Generating response...';

            var history = transcript.map(function (m) {
                return {role: m.role, content: m.content};
            });
            transcript.push({role: 'user', content: query});

            var params = new URLSearchParams();
            params.append('q', query);
            params.append('h', JSON.stringify(history));
            params.append('conversation_id', conversationId);

            try {
                var response = await fetch('/', {
                    method: 'POST',
                    headers: {
                        'X-Requested-With': 'XMLHttpRequest',
                        'Content-Type': 'application/x-www-form-urlencoded'
                    },
                    body: params.toString()
                });
                if (!response.ok) throw new Error('status ' + response.status);
                var result = await response.json();
                conversationId = result.conversation_id;
                typing.remove();
                var answer = bubble('assistant-message');
                answer.innerHTML = result.markup;
                transcript.push({role: 'assistant', content: result.content, markup: result.markup});
                saveConversation();
                attachFeedback();
            } catch (error) {
                typing.remove();
                bubble('assistant-message').textContent = 'Error: ' + error.message;
            } finally {
                input.value = '';
                input.disabled = false;
                input.focus();
                document.getElementById('send-button').disabled = false;
            }
        }

        function clearChat() {
            transcript = [];
            conversationId = '';
            localStorage.removeItem('chat_transcript');
            localStorage.removeItem('conversation_id');
            document.getElementById('chat').innerHTML = '';
            removeFeedback();
        }

        document.getElementById('chat-form').addEventListener('submit', sendMessage);
        document.getElementById('clear-button').addEventListener('click', clearChat);
        window.addEventListener('DOMContentLoaded', loadConversation);
    </script>
</body>
</html>`

func StartHTTPServer(port int) error {
	http.HandleFunc("/", handleRoot)
	http.HandleFunc("/feedback", handleFeedback)
	http.HandleFunc("/health", handleHealth)

	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}

func StartHTTPSServer(port int, certFile, keyFile string) error {
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServeTLS(addr, certFile, keyFile, nil)
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	telemetry := &RequestTelemetry{
		RequestID:  generateRequestID(),
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.Header.Get("User-Agent"),
		StartTime:  time.Now(),
	}

	beacon("request_start", map[string]interface{}{
		"request_id":  telemetry.RequestID,
		"method":      telemetry.Method,
		"path":        telemetry.Path,
		"remote_addr": telemetry.RemoteAddr,
		"user_agent":  telemetry.UserAgent,
	})

	w.Header().Set("Access-Control-Allow-Origin", "*")
	if !rateLimitAllow(r.RemoteAddr) {
		beacon("rate_limit_exceeded", map[string]interface{}{
			"remote_addr": r.RemoteAddr,
		})
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		renderChatPage(w)
		completeTelemetry(telemetry, "html_page", http.StatusOK)
	case http.MethodPost:
		handleChatTurn(w, r, telemetry)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func renderChatPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'unsafe-inline'; object-src 'none'; base-uri 'none'; style-src 'unsafe-inline' fonts.googleapis.com; font-src fonts.gstatic.com")

	title := "Ace Handyman Services Estimation Rep"
	note := "Ask the rep below for handyman job information and estimates."
	if settings != nil {
		if settings.Chat.Title != "" {
			title = settings.Chat.Title
		}
		if settings.Chat.Note != "" {
			note = settings.Chat.Note
		}
	}

	fmt.Fprint(w, htmlHeader)
	fmt.Fprintf(w, "    <h2 class=\"chat-title\">%s</h2>\n", format.Escape(title))
	fmt.Fprintf(w, "    <div class=\"info-note\">\U0001F4AC %s</div>\n", format.Escape(note))
	fmt.Fprint(w, "    <div id=\"chat\">\n")
	fmt.Fprint(w, htmlFooter)
}

// chatTurnReply is the AJAX response for one message exchange.
type chatTurnReply struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	Markup         string `json:"markup"`
}

// handleChatTurn runs one exchange: append the user message to the
// request's transcript, call the endpoint, format the reply, and log
// the conversation in the background. Endpoint failures become an
// assistant-styled error message (and still get logged) rather than a
// failed request - the page always has something to show.
func handleChatTurn(w http.ResponseWriter, r *http.Request, telemetry *RequestTelemetry) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	query := strings.TrimSpace(r.FormValue("q"))
	if query == "" {
		http.Error(w, "Empty message", http.StatusBadRequest)
		return
	}

	history := r.FormValue("h")
	// Limit history size to ensure compatibility
	if len(history) > 65536 {
		history = ""
	}

	conversationID := r.FormValue("conversation_id")
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	transcript := parseHistory(history)
	transcript = append(transcript, format.Message{Role: format.RoleUser, Content: query})

	replyText := ""
	llmResp, err := queryEndpoint(withSystemPrompt(transcript))
	if err != nil {
		log.Printf("[CHAT] endpoint error: %v", err)
		replyText = "Error: " + err.Error()
	} else {
		replyText = llmResp.Content
		telemetry.InputHash = llmResp.InputHash
		telemetry.OutputHash = llmResp.OutputHash
		telemetry.InputTokens = llmResp.InputTokens
		telemetry.OutputTokens = llmResp.OutputTokens
		telemetry.Model = llmResp.Model
	}

	transcript = append(transcript, format.Message{Role: format.RoleAssistant, Content: replyText})

	responseCount := 0
	for _, m := range transcript {
		if m.Role == format.RoleAssistant {
			responseCount++
		}
	}
	UpsertConversationLog(conversationID, transcript, responseCount)

	reply := chatTurnReply{
		ConversationID: conversationID,
		Content:        replyText,
		Markup:         format.Response(replyText),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		log.Printf("[CHAT] failed to write response: %v", err)
	}

	telemetry.Query = query
	completeTelemetry(telemetry, "chat_turn", http.StatusOK)
}

// parseHistory decodes the transcript the browser sends along with
// each turn. Malformed history degrades to an empty transcript; the
// turn still works, it just loses context.
func parseHistory(history string) []format.Message {
	if history == "" {
		return nil
	}
	var raw []format.Message
	if err := json.Unmarshal([]byte(history), &raw); err != nil {
		log.Printf("[CHAT] discarding malformed history: %v", err)
		return nil
	}
	messages := make([]format.Message, 0, len(raw))
	for _, m := range raw {
		if m.Role != format.RoleUser && m.Role != format.RoleAssistant {
			continue
		}
		messages = append(messages, m)
	}
	return messages
}

func withSystemPrompt(transcript []format.Message) []format.Message {
	if settings == nil || settings.Chat.SystemPrompt == "" {
		return transcript
	}
	messages := make([]format.Message, 0, len(transcript)+1)
	messages = append(messages, format.Message{Role: "system", Content: settings.Chat.SystemPrompt})
	return append(messages, transcript...)
}

func handleFeedback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if !rateLimitAllow(r.RemoteAddr) {
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	value := r.FormValue("feedback")
	if value != "thumbs-up" && value != "thumbs-down" {
		http.Error(w, "Invalid feedback value", http.StatusBadRequest)
		return
	}

	StoreFeedback(FeedbackEntry{
		Message:  r.FormValue("message"),
		Feedback: value,
		Comment:  r.FormValue("comment"),
		Category: r.FormValue("category"),
	})

	beacon("feedback_submitted", map[string]interface{}{
		"feedback":        value,
		"category":        r.FormValue("category"),
		"has_comment":     r.FormValue("comment") != "",
		"conversation_id": r.FormValue("conversation_id"),
	})

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"recorded"}`)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"healthy"}`)
}

func completeTelemetry(telemetry *RequestTelemetry, responseType string, status int) {
	telemetry.Duration = time.Since(telemetry.StartTime)
	telemetry.Status = status
	telemetry.ResponseType = responseType

	beacon("request_complete", map[string]interface{}{
		"request_id":    telemetry.RequestID,
		"status":        telemetry.Status,
		"duration_ms":   telemetry.Duration.Milliseconds(),
		"has_query":     telemetry.Query != "",
		"query_hash":    generateSignature(telemetry.Query),
		"response_type": telemetry.ResponseType,
		"input_hash":    telemetry.InputHash,
		"output_hash":   telemetry.OutputHash,
		"input_tokens":  telemetry.InputTokens,
		"output_tokens": telemetry.OutputTokens,
		"total_tokens":  telemetry.InputTokens + telemetry.OutputTokens,
		"model":         telemetry.Model,
	})
}
