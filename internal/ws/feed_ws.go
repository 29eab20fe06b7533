package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chopmeet-service/internal/middleware"
	"chopmeet-service/internal/observability"
)

// FeedWebSocketHandler handles meal-registry feed subscriptions. Any
// authenticated client may watch the feed; it mirrors what the mobile
// app's always-on meal list listener saw.
type FeedWebSocketHandler struct {
	hub       *Hub
	validator middleware.TokenValidator
}

// NewFeedWebSocketHandler constructs a FeedWebSocketHandler.
func NewFeedWebSocketHandler(hub *Hub, validator middleware.TokenValidator) *FeedWebSocketHandler {
	return &FeedWebSocketHandler{hub: hub, validator: validator}
}

// Handle upgrades the connection and registers the client on the feed.
func (h *FeedWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chopmeet-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := validateWSToken(ctx, h.validator, c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := connInfoFromRequest(c, userID, span.SpanContext().TraceID().String())
	h.hub.AddFeedClient(conn, info)
	emitWSLifecycle(ctx, "feed", "", info, "ws_connect", 0, "")
	observability.IncWSActive("feed")

	go func() {
		// The handshake context is canceled when the handler returns,
		// so lifecycle events from this goroutine use a fresh one.
		var closeReason string
		defer func() {
			h.hub.RemoveFeedClient(conn)
			observability.DecWSActive("feed")
			emitWSLifecycle(context.Background(), "feed", "", info, "ws_disconnect", time.Since(info.ConnectedAt), closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					emitWSLifecycle(context.Background(), "feed", "", info, "ws_error", time.Since(info.ConnectedAt), closeReason)
				}
				return
			}
		}
	}()
}
