package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chopmeet-service/internal/models"
	"chopmeet-service/internal/observability"
)

// Hub maintains the live subscriptions: one room per meal chat and one
// global feed room mirroring the meal registry.
type Hub struct {
	chatRooms    map[string]map[*websocket.Conn]bool
	chatConnInfo map[string]map[*websocket.Conn]ConnInfo
	feedClients  map[*websocket.Conn]bool
	feedConnInfo map[*websocket.Conn]ConnInfo
	mu           sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		chatRooms:    make(map[string]map[*websocket.Conn]bool),
		chatConnInfo: make(map[string]map[*websocket.Conn]ConnInfo),
		feedClients:  make(map[*websocket.Conn]bool),
		feedConnInfo: make(map[*websocket.Conn]ConnInfo),
	}
}

// AddChatClient registers a websocket connection to a meal's chat room.
func (h *Hub) AddChatClient(mealID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chatRooms[mealID]; !ok {
		h.chatRooms[mealID] = make(map[*websocket.Conn]bool)
	}
	h.chatRooms[mealID][conn] = true
	if _, ok := h.chatConnInfo[mealID]; !ok {
		h.chatConnInfo[mealID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.chatConnInfo[mealID][conn] = info
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(mealID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.chatRooms[mealID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.chatRooms, mealID)
		}
	}
	if infos, ok := h.chatConnInfo[mealID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.chatConnInfo, mealID)
		}
	}
}

// BroadcastChatMessage pushes a message event to every subscriber of the
// meal's chat room. Arrival order over the wire is not a delivery
// guarantee; clients re-sort by timestamp.
func (h *Hub) BroadcastChatMessage(mealID string, msg models.ChatMessage) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.chatRooms[mealID]))
	for conn := range h.chatRooms[mealID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	event := models.ChatEvent{Type: "message", Message: &msg}
	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			info := h.chatInfo(mealID, conn)
			h.RemoveChatClient(mealID, conn)
			h.publishWSError("chat", mealID, info, err)
		}
	}
}

// AddFeedClient registers a websocket connection to the meal feed.
func (h *Hub) AddFeedClient(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feedClients[conn] = true
	h.feedConnInfo[conn] = info
}

// RemoveFeedClient removes a feed websocket connection.
func (h *Hub) RemoveFeedClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.feedClients, conn)
	delete(h.feedConnInfo, conn)
}

// BroadcastFeedEvent pushes a registry change to every feed subscriber.
func (h *Hub) BroadcastFeedEvent(event models.MealFeedEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.feedClients))
	for conn := range h.feedClients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			info := h.feedInfo(conn)
			h.RemoveFeedClient(conn)
			h.publishWSError("feed", event.MealID, info, err)
		}
	}
}

func (h *Hub) chatInfo(mealID string, conn *websocket.Conn) ConnInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.chatConnInfo[mealID]; ok {
		return infos[conn]
	}
	return ConnInfo{}
}

func (h *Hub) feedInfo(conn *websocket.Conn) ConnInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.feedConnInfo[conn]
}

func (h *Hub) publishWSError(kind, resourceID string, info ConnInfo, err error) {
	if info.ConnID == "" {
		return
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   wsEventPayload(kind, resourceID, info, "ws_error", time.Since(info.ConnectedAt), err.Error()),
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func wsRoutingKey(kind string) string {
	if kind == "feed" {
		return "ws_events.feed"
	}
	return "ws_events.chats"
}

func wsEventPayload(kind, resourceID string, info ConnInfo, event string, duration time.Duration, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"resource_id": resourceID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": duration.Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
