package main

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// beacon emits one structured telemetry event as a JSON log line.
// Events are observational only; a failed beacon never affects the
// request.
func beacon(event string, fields map[string]interface{}) {
	payload, err := json.Marshal(fields)
	if err != nil {
		log.Printf("[BEACON] %s (fields not serializable: %v)", event, err)
		return
	}
	log.Printf("[BEACON] %s %s", event, payload)
}

// generateRequestID returns a compact unique id for request tracking.
func generateRequestID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// generateSignature creates a hash signature for content
// Used for deduplication and tracking in telemetry
func generateSignature(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)[:16] // First 16 chars of hash
}
