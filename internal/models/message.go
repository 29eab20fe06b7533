package models

import "github.com/lib/pq"

// ChatMessage is one entry in a meal's append-only chat log.
// Timestamp is wall-clock milliseconds and the display sort key;
// ID is the server-assigned insertion key used as a stable tiebreak.
type ChatMessage struct {
	ID         int64          `db:"id" json:"id"`
	MealID     string         `db:"meal_id" json:"meal_id"`
	SenderID   string         `db:"sender_id" json:"sender_id"`
	SenderName string         `db:"sender_name" json:"sender_name"`
	Text       string         `db:"content" json:"text"`
	Timestamp  int64          `db:"sent_at" json:"timestamp"`
	ReadBy     pq.StringArray `db:"read_by" json:"read_by"`
}

// ChatEvent is broadcasted through chat-room websockets.
type ChatEvent struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message,omitempty"`
}
