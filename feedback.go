package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"handychat/format"
)

var (
	feedbackDB      *sql.DB
	feedbackDBOnce  sync.Once
	feedbackEnabled = true
)

// DisableFeedbackStore turns off all feedback persistence.
func DisableFeedbackStore() {
	feedbackEnabled = false
	log.Println("[FEEDBACK] feedback persistence DISABLED")
}

// FeedbackEntry is one row in the handyman_feedback table. The
// conversation log shares the table: its feedback column is fixed to
// "Conversation_Log" and its id is the conversation id, so repeated
// saves of the same conversation replace the row.
type FeedbackEntry struct {
	ID        string
	Timestamp time.Time
	Message   string
	Feedback  string
	Comment   string
	Category  string
}

// InitFeedbackDB opens the SQLite sink for feedback rows and
// conversation logs. Safe to call more than once; only the first call
// opens anything.
func InitFeedbackDB(path string) error {
	if settings != nil && !settings.Feedback.Enabled {
		DisableFeedbackStore()
		return nil
	}

	var err error
	feedbackDBOnce.Do(func() {
		feedbackDB, err = openFeedbackDB(path)
		if err != nil {
			log.Printf("[FEEDBACK] failed to open feedback database: %v", err)
			return
		}
		log.Println("[FEEDBACK] feedback database initialized")
	})
	return err
}

func openFeedbackDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS handyman_feedback (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		message TEXT NOT NULL,
		feedback TEXT NOT NULL,
		comment TEXT,
		category TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_timestamp ON handyman_feedback(timestamp);
	CREATE INDEX IF NOT EXISTS idx_feedback_kind ON handyman_feedback(feedback);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// StoreFeedback writes one feedback row in the background. Failures
// are logged and swallowed: feedback must never block or break a chat
// turn.
func StoreFeedback(entry FeedbackEntry) {
	if !feedbackEnabled || feedbackDB == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	go func() {
		if err := insertFeedback(feedbackDB, entry); err != nil {
			log.Printf("[FEEDBACK] could not store feedback: %v", err)
		}
	}()
}

func insertFeedback(db *sql.DB, entry FeedbackEntry) error {
	_, err := db.Exec(`
		INSERT INTO handyman_feedback (id, timestamp, message, feedback, comment, category)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.Format(time.RFC3339),
		entry.Message,
		entry.Feedback,
		entry.Comment,
		entry.Category,
	)
	return err
}

// UpsertConversationLog saves the whole transcript under the
// conversation id in the background, replacing any earlier save of
// the same conversation.
func UpsertConversationLog(conversationID string, transcript []format.Message, responseCount int) {
	if !feedbackEnabled || feedbackDB == nil || conversationID == "" {
		return
	}

	serialized, err := json.Marshal(transcript)
	if err != nil {
		log.Printf("[FEEDBACK] could not serialize transcript: %v", err)
		return
	}

	go func() {
		if err := upsertConversation(feedbackDB, conversationID, string(serialized), responseCount); err != nil {
			log.Printf("[FEEDBACK] could not upsert conversation: %v", err)
		}
	}()
}

func upsertConversation(db *sql.DB, conversationID, transcript string, responseCount int) error {
	_, err := db.Exec(`
		INSERT INTO handyman_feedback (id, timestamp, message, feedback, comment, category)
		VALUES (?, ?, ?, 'Conversation_Log', ?, '')
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			message = excluded.message,
			comment = excluded.comment`,
		conversationID,
		time.Now().UTC().Format(time.RFC3339),
		transcript,
		fmt.Sprintf("Response(s): %d", responseCount),
	)
	return err
}
