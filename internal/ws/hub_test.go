package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chopmeet-service/internal/models"
	"chopmeet-service/internal/observability"
)

func TestHubAddAndRemoveChatClient(t *testing.T) {
	hub := NewHub()

	hub.AddChatClient("meal-1", nil, ConnInfo{ConnID: "c1", UserID: "u1"})
	if len(hub.chatRooms) != 1 {
		t.Fatalf("expected chat room to be created")
	}
	if info := hub.chatInfo("meal-1", nil); info.UserID != "u1" {
		t.Fatalf("expected conn info to be tracked, got %+v", info)
	}

	hub.RemoveChatClient("meal-1", nil)
	if len(hub.chatRooms) != 0 {
		t.Fatalf("expected chat room to be removed")
	}
	if len(hub.chatConnInfo) != 0 {
		t.Fatalf("expected conn info to be removed")
	}
}

func TestHubAddAndRemoveFeedClient(t *testing.T) {
	hub := NewHub()

	hub.AddFeedClient(nil, ConnInfo{ConnID: "c2", UserID: "u2"})
	if len(hub.feedClients) != 1 {
		t.Fatalf("expected feed client to be registered")
	}
	if info := hub.feedInfo(nil); info.ConnID != "c2" {
		t.Fatalf("expected conn info to be tracked, got %+v", info)
	}

	hub.RemoveFeedClient(nil)
	if len(hub.feedClients) != 0 {
		t.Fatalf("expected feed client to be removed")
	}
	if len(hub.feedConnInfo) != 0 {
		t.Fatalf("expected conn info to be removed")
	}
}

// newChatRoomServer upgrades incoming connections and registers them in
// the meal's chat room with the given conn info.
func newChatRoomServer(hub *Hub, info ConnInfo, serverConns chan<- *websocket.Conn) *httptest.Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/:meal_id", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		hub.AddChatClient(c.Param("meal_id"), conn, info)
		if serverConns != nil {
			serverConns <- conn
		}
	})
	return httptest.NewServer(router)
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestBroadcastChatMessageDuringJoins(t *testing.T) {
	hub := NewHub()
	srv := newChatRoomServer(hub, ConnInfo{ConnID: "c1", UserID: "u1", ConnectedAt: time.Now()}, nil)
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.BroadcastChatMessage("meal-1", models.ChatMessage{MealID: "meal-1", SenderID: "u1", Text: "hello"})
		}
	}()

	clients := make([]*websocket.Conn, 0, 10)
	for i := 0; i < 10; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/meal-1"), nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		clients = append(clients, conn)
	}

	<-done
	for _, conn := range clients {
		conn.Close()
	}
}

type capturingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []observability.EventEnvelope
}

func (p *capturingPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	if envelope, ok := message.(observability.EventEnvelope); ok {
		p.events = append(p.events, envelope)
	}
	return nil
}

func TestBroadcastChatMessagePublishesWriteError(t *testing.T) {
	hub := NewHub()
	serverConns := make(chan *websocket.Conn, 1)
	srv := newChatRoomServer(hub, ConnInfo{ConnID: "c1", UserID: "u1", ConnectedAt: time.Now()}, serverConns)
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/meal-1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverConns:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server connection")
	}
	serverConn.Close()

	publisher := &capturingPublisher{}
	observability.SetPublisher(publisher)
	defer observability.SetPublisher(nil)

	hub.BroadcastChatMessage("meal-1", models.ChatMessage{MealID: "meal-1", SenderID: "u1", Text: "hello"})

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	if publisher.keys[0] != "ws_events.chats" {
		t.Fatalf("unexpected routing key %q", publisher.keys[0])
	}
	event := publisher.events[0]
	if event.EventName != "ws_error" {
		t.Fatalf("unexpected event name %q", event.EventName)
	}
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected payload type %T", event.Payload)
	}
	wsPart, ok := payload["ws"].(map[string]interface{})
	if !ok || wsPart["conn_id"] != "c1" {
		t.Fatalf("expected conn id in payload, got %+v", payload)
	}

	hub.mu.RLock()
	rooms := len(hub.chatRooms)
	hub.mu.RUnlock()
	if rooms != 0 {
		t.Fatalf("expected failing connection to be removed from room")
	}
}
