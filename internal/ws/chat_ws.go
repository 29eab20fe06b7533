package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chopmeet-service/internal/middleware"
	"chopmeet-service/internal/observability"
	"chopmeet-service/internal/repositories"
)

// ChatWebSocketHandler handles per-meal chat subscriptions.
type ChatWebSocketHandler struct {
	hub       *Hub
	mealRepo  repositories.MealRepository
	validator middleware.TokenValidator
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, mealRepo repositories.MealRepository, validator middleware.TokenValidator) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, mealRepo: mealRepo, validator: validator}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client in the meal's
// chat room. The registration is removed when the connection closes, so a
// viewer navigating away stops receiving pushes.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	mealID := c.Param("meal_id")
	if mealID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meal id"})
		return
	}

	ctx, span := otel.Tracer("chopmeet-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := validateWSToken(ctx, h.validator, c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	participant, err := h.mealRepo.IsParticipant(ctx, mealID, userID)
	if err != nil || !participant {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for meal chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := connInfoFromRequest(c, userID, span.SpanContext().TraceID().String())
	h.hub.AddChatClient(mealID, conn, info)
	emitWSLifecycle(ctx, "chat", mealID, info, "ws_connect", 0, "")
	observability.IncWSActive("chat")

	go func() {
		// The handshake context is canceled when the handler returns,
		// so lifecycle events from this goroutine use a fresh one.
		var closeReason string
		defer func() {
			h.hub.RemoveChatClient(mealID, conn)
			observability.DecWSActive("chat")
			emitWSLifecycle(context.Background(), "chat", mealID, info, "ws_disconnect", time.Since(info.ConnectedAt), closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					emitWSLifecycle(context.Background(), "chat", mealID, info, "ws_error", time.Since(info.ConnectedAt), closeReason)
				}
				return
			}
		}
	}()
}

func validateWSToken(ctx context.Context, validator middleware.TokenValidator, c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); token != "" {
			header = "Bearer " + token
		}
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid token")
	}
	return validator.ValidateToken(ctx, parts[1])
}

func connInfoFromRequest(c *gin.Context, userID string, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

func emitWSLifecycle(ctx context.Context, kind, resourceID string, info ConnInfo, event string, duration time.Duration, reason string) {
	observability.IncWSEvent(kind, event)
	_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   wsEventPayload(kind, resourceID, info, event, duration, reason),
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
