package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"chopmeet-service/internal/models"
)

// InMemoryMessageRepo implements repositories.MessageRepository with the
// same contract as the SQL implementation: the sender is marked as reader
// at append time, mark-all-read is idempotent and only ever adds, and the
// log is ordered by timestamp with the insertion key as tiebreak. Used to
// drive read-receipt behavior tests without a database.
type InMemoryMessageRepo struct {
	mu     sync.Mutex
	nextID int64
	logs   map[string][]*models.ChatMessage
}

func NewInMemoryMessageRepo() *InMemoryMessageRepo {
	return &InMemoryMessageRepo{logs: make(map[string][]*models.ChatMessage)}
}

func (r *InMemoryMessageRepo) CreateMessage(ctx context.Context, mealID string, senderID string, senderName string, text string) (models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg := &models.ChatMessage{
		ID:         r.nextID,
		MealID:     mealID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
		ReadBy:     pq.StringArray{senderID},
	}
	r.logs[mealID] = append(r.logs[mealID], msg)
	return snapshotMessage(msg), nil
}

func (r *InMemoryMessageRepo) ListMessages(ctx context.Context, mealID string) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[mealID]
	out := make([]models.ChatMessage, 0, len(log))
	for _, msg := range log {
		out = append(out, snapshotMessage(msg))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *InMemoryMessageRepo) MarkAllRead(ctx context.Context, mealID string, viewerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.logs[mealID] {
		if !contains(msg.ReadBy, viewerID) {
			msg.ReadBy = append(msg.ReadBy, viewerID)
		}
	}
	return nil
}

func (r *InMemoryMessageRepo) UnreadCount(ctx context.Context, mealID string, viewerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, msg := range r.logs[mealID] {
		if msg.SenderID != viewerID && !contains(msg.ReadBy, viewerID) {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryMessageRepo) LastMessage(ctx context.Context, mealID string) (*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *models.ChatMessage
	for _, msg := range r.logs[mealID] {
		if last == nil || msg.Timestamp > last.Timestamp ||
			(msg.Timestamp == last.Timestamp && msg.ID > last.ID) {
			last = msg
		}
	}
	if last == nil {
		return nil, nil
	}
	out := snapshotMessage(last)
	return &out, nil
}

func (r *InMemoryMessageRepo) dropMeal(mealID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.logs, mealID)
}

func snapshotMessage(msg *models.ChatMessage) models.ChatMessage {
	out := *msg
	out.ReadBy = append(pq.StringArray(nil), msg.ReadBy...)
	return out
}
