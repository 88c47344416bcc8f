package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInsertFeedback(t *testing.T) {
	db, err := openFeedbackDB(filepath.Join(t.TempDir(), "feedback.db"))
	if err != nil {
		t.Fatalf("openFeedbackDB: %v", err)
	}
	defer db.Close()

	entry := FeedbackEntry{
		ID:        "fb-1",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Message:   `[{"role":"user","content":"hi"}]`,
		Feedback:  "thumbs-down",
		Comment:   "too vague",
		Category:  "too short",
	}
	if err := insertFeedback(db, entry); err != nil {
		t.Fatalf("insertFeedback: %v", err)
	}

	var feedback, comment, category string
	row := db.QueryRow(`SELECT feedback, comment, category FROM handyman_feedback WHERE id = ?`, "fb-1")
	if err := row.Scan(&feedback, &comment, &category); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if feedback != "thumbs-down" || comment != "too vague" || category != "too short" {
		t.Errorf("stored row = %q/%q/%q", feedback, comment, category)
	}
}

func TestUpsertConversationReplacesRow(t *testing.T) {
	db, err := openFeedbackDB(filepath.Join(t.TempDir(), "feedback.db"))
	if err != nil {
		t.Fatalf("openFeedbackDB: %v", err)
	}
	defer db.Close()

	if err := upsertConversation(db, "conv-1", `[{"role":"user","content":"hi"}]`, 1); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	longer := `[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"},{"role":"user","content":"more"}]`
	if err := upsertConversation(db, "conv-1", longer, 2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM handyman_feedback`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row after re-saving the conversation, got %d", count)
	}

	var feedback, message, comment string
	row := db.QueryRow(`SELECT feedback, message, comment FROM handyman_feedback WHERE id = ?`, "conv-1")
	if err := row.Scan(&feedback, &message, &comment); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if feedback != "Conversation_Log" {
		t.Errorf("feedback = %q, want Conversation_Log", feedback)
	}
	if message != longer {
		t.Errorf("message not replaced: %q", message)
	}
	if comment != "Response(s): 2" {
		t.Errorf("comment = %q, want \"Response(s): 2\"", comment)
	}
}

func TestFeedbackAndConversationsShareTable(t *testing.T) {
	db, err := openFeedbackDB(filepath.Join(t.TempDir(), "feedback.db"))
	if err != nil {
		t.Fatalf("openFeedbackDB: %v", err)
	}
	defer db.Close()

	if err := insertFeedback(db, FeedbackEntry{ID: "fb-1", Timestamp: time.Now().UTC(), Feedback: "thumbs-up"}); err != nil {
		t.Fatalf("insertFeedback: %v", err)
	}
	if err := upsertConversation(db, "conv-1", "[]", 0); err != nil {
		t.Fatalf("upsertConversation: %v", err)
	}

	rows, err := db.Query(`SELECT feedback FROM handyman_feedback ORDER BY feedback`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	var kinds []string
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			t.Fatalf("scan: %v", err)
		}
		kinds = append(kinds, kind)
	}
	if strings.Join(kinds, ",") != "Conversation_Log,thumbs-up" {
		t.Errorf("kinds = %v", kinds)
	}
}
