package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"handychat/format"
)

// LLMResponse contains the reply and metadata from an endpoint call.
type LLMResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	InputHash    string
	OutputHash   string
	Model        string
}

// queryEndpoint posts the transcript to the model-serving endpoint
// and extracts the reply. The endpoint is opaque: depending on how
// the model is hosted the reply arrives as chat choices, as
// predictions, or as a bare content field, so each shape is tried in
// turn before falling back to the raw body.
func queryEndpoint(messages []format.Message) (*LLMResponse, error) {
	if settings == nil || settings.Endpoint.URL == "" {
		return nil, fmt.Errorf("endpoint URL not configured")
	}

	requestBody := map[string]interface{}{
		"messages":    messages,
		"max_tokens":  settings.Endpoint.MaxTokens,
		"temperature": settings.Endpoint.Temperature,
	}
	if settings.Endpoint.Model != "" {
		requestBody["model"] = settings.Endpoint.Model
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", settings.Endpoint.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if settings.Endpoint.Token != "" {
		req.Header.Set("Authorization", "Bearer "+settings.Endpoint.Token)
	}

	client := &http.Client{Timeout: settings.Endpoint.TimeoutDuration()}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("endpoint error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	content, model, usage := extractReply(body)
	llmResp := &LLMResponse{
		Content:    content,
		Model:      model,
		InputHash:  generateSignature(string(jsonBody)),
		OutputHash: generateSignature(content),
	}
	if usage != nil {
		llmResp.InputTokens = usage.input
		llmResp.OutputTokens = usage.output
	} else {
		var promptText strings.Builder
		for _, m := range messages {
			promptText.WriteString(m.Content)
			promptText.WriteString("\n")
		}
		llmResp.InputTokens = countTokens(promptText.String())
		llmResp.OutputTokens = countTokens(content)
	}
	return llmResp, nil
}

type usageCounts struct {
	input  int
	output int
}

// extractReply walks the known endpoint response shapes in order:
// chat choices, predictions, bare content, then the body itself.
func extractReply(body []byte) (string, string, *usageCounts) {
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		// Not JSON at all - some hosts return the reply as plain text.
		return strings.TrimSpace(string(body)), "", nil
	}

	model, _ := result["model"].(string)
	usage := parseUsage(result["usage"])

	if choices, ok := result["choices"].([]interface{}); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]interface{}); ok {
			if message, ok := choice["message"].(map[string]interface{}); ok {
				if content, ok := message["content"].(string); ok {
					return content, model, usage
				}
			}
		}
	}

	if predictions, ok := result["predictions"].([]interface{}); ok && len(predictions) > 0 {
		if content, ok := predictions[0].(string); ok {
			return content, model, usage
		}
	}

	if content, ok := result["content"].(string); ok {
		return content, model, usage
	}

	return string(body), model, usage
}

func parseUsage(v interface{}) *usageCounts {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	u := &usageCounts{}
	if n, ok := m["prompt_tokens"].(float64); ok {
		u.input = int(n)
	}
	if n, ok := m["completion_tokens"].(float64); ok {
		u.output = int(n)
	}
	if u.input == 0 && u.output == 0 {
		return nil
	}
	return u
}

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

// countTokens estimates the token count of text for telemetry when
// the endpoint omits usage numbers. Encoder setup can fail (the
// encoding tables may be unreachable from the deploy environment), in
// which case the rough 4-chars-per-token heuristic is good enough.
func countTokens(text string) int {
	tokenizerOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Printf("[TOKENS] encoder unavailable, using estimates: %v", err)
			return
		}
		tokenizer = enc
	})
	if tokenizer == nil {
		return (len(text) + 3) / 4
	}
	return len(tokenizer.Encode(text, nil, nil))
}
