package models

import (
	"time"

	"github.com/lib/pq"
)

// Meal types as shown in the app's list tabs.
const (
	MealTypeBuddy      = "Meal Buddy"
	MealTypeOpenToMore = "Open to More"
)

// Meal represents a shared-dining event with a capacity and membership set.
// The creator is never part of JoinedIDs; creator access is implicit.
type Meal struct {
	ID        string         `db:"id" json:"id"`
	Title     string         `db:"title" json:"title"`
	MealType  string         `db:"meal_type" json:"meal_type"`
	Location  string         `db:"location" json:"location"`
	Cuisine   string         `db:"cuisine" json:"cuisine"`
	Budget    string         `db:"budget" json:"budget"`
	Date      string         `db:"meal_date" json:"date"`
	Time      string         `db:"meal_time" json:"time"`
	Max       int            `db:"max_guests" json:"max"`
	CreatorID string         `db:"creator_id" json:"creator_id"`
	Vibes     pq.StringArray `db:"vibes" json:"vibes"`
	JoinedIDs []string       `db:"-" json:"joined_ids"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// MealUpdate carries a partial field merge for creator-only edits.
// Nil fields are left untouched. ID, CreatorID and membership are
// immutable through this path.
type MealUpdate struct {
	Title    *string   `json:"title"`
	MealType *string   `json:"meal_type"`
	Location *string   `json:"location"`
	Cuisine  *string   `json:"cuisine"`
	Budget   *string   `json:"budget"`
	Date     *string   `json:"date"`
	Time     *string   `json:"time"`
	Max      *int      `json:"max"`
	Vibes    *[]string `json:"vibes"`
}

// Empty reports whether the update would change nothing.
func (u MealUpdate) Empty() bool {
	return u.Title == nil && u.MealType == nil && u.Location == nil &&
		u.Cuisine == nil && u.Budget == nil && u.Date == nil &&
		u.Time == nil && u.Max == nil && u.Vibes == nil
}

// MealChatSummary is the chat-overview view of a meal for one user.
type MealChatSummary struct {
	Meal
	LastMessage *ChatMessage `json:"last_message"`
	UnreadCount int          `json:"unread_count"`
}

// MealFeedEvent is emitted over the meal-feed WebSocket.
type MealFeedEvent struct {
	Type   string `json:"type"`
	Meal   *Meal  `json:"meal,omitempty"`
	MealID string `json:"meal_id,omitempty"`
}
