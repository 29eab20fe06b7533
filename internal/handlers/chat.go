package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chopmeet-service/internal/models"
	"chopmeet-service/internal/repositories"
	"chopmeet-service/internal/telemetry"
	"chopmeet-service/internal/ws"
)

// userProvider resolves user ids to accounts for sender-name denormalization.
type userProvider interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
}

// ChatHandler manages chat-log and read-receipt endpoints.
type ChatHandler struct {
	mealRepo    repositories.MealRepository
	messageRepo repositories.MessageRepository
	users       userProvider
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(mealRepo repositories.MealRepository, messageRepo repositories.MessageRepository, users userProvider, hub *ws.Hub, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		mealRepo:    mealRepo,
		messageRepo: messageRepo,
		users:       users,
		hub:         hub,
		audit:       audit,
	}
}

// requireParticipant loads the membership check shared by all chat routes.
func (h *ChatHandler) requireParticipant(c *gin.Context, mealID string, userID string) bool {
	participant, err := h.mealRepo.IsParticipant(c.Request.Context(), mealID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return false
	}
	if !participant {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return false
	}
	return true
}

// GetMessages returns the meal's chat log ordered by timestamp.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	mealID := c.Param("meal_id")
	userID := c.GetString("userID")

	if !h.requireParticipant(c, mealID, userID) {
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), mealID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage appends a message to the meal's chat log and broadcasts it.
// The sender's display name is captured at send time and not updated if
// the profile changes later.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	mealID := c.Param("meal_id")
	userID := c.GetString("userID")

	if !h.requireParticipant(c, mealID, userID) {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message text is empty"})
		return
	}

	senderName := ""
	if h.users != nil {
		if user, err := h.users.GetUser(c.Request.Context(), userID); err == nil {
			senderName = user.DisplayName
		}
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), mealID, userID, senderName, text)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	if h.hub != nil {
		h.hub.BroadcastChatMessage(mealID, msg)
	}
	h.emitAudit(c, "INFO", "Chat message sent")
	c.JSON(http.StatusCreated, msg)
}

// MarkRead adds the viewer to the read set of every message in the log.
// Called by clients when the chat view opens; safe to repeat.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	mealID := c.Param("meal_id")
	userID := c.GetString("userID")

	if !h.requireParticipant(c, mealID, userID) {
		return
	}

	if err := h.messageRepo.MarkAllRead(c.Request.Context(), mealID, userID); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListChats returns the caller's chat overview: each meal they created or
// joined with its last message and unread badge count.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetString("userID")

	meals, err := h.mealRepo.ListMealsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	chats := make([]models.MealChatSummary, 0, len(meals))
	for _, meal := range meals {
		last, err := h.messageRepo.LastMessage(c.Request.Context(), meal.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
			return
		}
		unread, err := h.messageRepo.UnreadCount(c.Request.Context(), meal.ID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
			return
		}
		chats = append(chats, models.MealChatSummary{Meal: meal, LastMessage: last, UnreadCount: unread})
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), telemetry.Entry{
		Level:     level,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c),
		MealID:    c.Param("meal_id"),
	})
}
