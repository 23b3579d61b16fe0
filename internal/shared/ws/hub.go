package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pawfect/internal/shared/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// authTimeout: the client MUST send its token within 5 seconds of
	// connecting, otherwise the connection is dropped.
	authTimeout = 5 * time.Second

	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second

	maxMessageSize = 8192
	writeWait      = 10 * time.Second
)

// Topic names. Every connected session lives in zero or more topic rooms;
// publishing to a room with no subscribers is a no-op, never an error.
const (
	TopicAvailableOrders = "available_orders"
)

func RiderTopic(riderID string) string   { return "rider:" + riderID }
func SellerTopic(sellerID string) string { return "seller:" + sellerID }
func BuyerTopic(buyerID string) string   { return "buyer:" + buyerID }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the web client moves off localhost
		return true
	},
}

// AuthFunc validates the token from the first client message.
type AuthFunc func(token string) (userID, role string, err error)

// MessageHandler is invoked for every parsed inbound client message.
type MessageHandler func(client *Client, messageType string, data json.RawMessage) error

// PresenceFunc is invoked when a user's first connection authenticates
// (online=true) and when their last connection goes away (online=false).
type PresenceFunc func(userID, role string, online bool)

// Client is a single WebSocket connection.
type Client struct {
	ID     string // unique connection id
	UserID string // from the JWT
	Role   string // BUYER | SELLER | RIDER | ADMIN
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	log    *logger.Logger
}

// Hub owns every live connection and the topic subscription registry.
// Connection lifecycle (subscribe on connect, unsubscribe on disconnect) is
// the only mutation path for the registry; nothing else touches it.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connection id -> client
	topics  map[string]map[string]*Client // topic -> connection id -> client

	register   chan *Client
	unregister chan *Client

	authFunc       AuthFunc
	messageHandler MessageHandler
	presenceFunc   PresenceFunc
	log            *logger.Logger
}

func NewHub(authFunc AuthFunc, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		topics:     make(map[string]map[string]*Client),
		register:   make(chan *Client, 10),
		unregister: make(chan *Client, 10),
		authFunc:   authFunc,
		log:        log,
	}
}

// SetMessageHandler installs the handler for inbound client messages.
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.messageHandler = handler
}

// SetPresenceHandler installs the online/offline callback.
func (h *Hub) SetPresenceHandler(fn PresenceFunc) {
	h.presenceFunc = fn
}

// Run is the hub main loop; start it in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.log.Info(logger.Entry{Action: "hub_stopped", Message: "websocket hub stopped"})
			return

		case client := <-h.register:
			first := h.addClient(client)
			h.log.Info(logger.Entry{
				Action:  "client_registered",
				Message: client.ID,
				Additional: map[string]any{
					"user_id": client.UserID,
					"role":    client.Role,
				},
			})
			if first && h.presenceFunc != nil {
				h.presenceFunc(client.UserID, client.Role, true)
			}

		case client := <-h.unregister:
			last := h.removeClient(client)
			h.log.Info(logger.Entry{
				Action:  "client_unregistered",
				Message: client.ID,
				Additional: map[string]any{
					"user_id": client.UserID,
				},
			})
			if last && h.presenceFunc != nil {
				h.presenceFunc(client.UserID, client.Role, false)
			}
		}
	}
}

// addClient registers the connection and auto-subscribes it to the rooms its
// role implies. Returns true if this is the user's first live connection.
func (h *Hub) addClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	first := !h.hasUserLocked(client.UserID)
	h.clients[client.ID] = client

	switch client.Role {
	case "RIDER":
		h.subscribeLocked(client, RiderTopic(client.UserID))
		h.subscribeLocked(client, TopicAvailableOrders)
	case "SELLER":
		h.subscribeLocked(client, SellerTopic(client.UserID))
	case "BUYER":
		h.subscribeLocked(client, BuyerTopic(client.UserID))
	}

	return first
}

// removeClient drops the connection from every topic room. Returns true if it
// was the user's last live connection.
func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	delete(h.clients, client.ID)
	close(client.send)

	for topic, members := range h.topics {
		if _, ok := members[client.ID]; ok {
			delete(members, client.ID)
			if len(members) == 0 {
				delete(h.topics, topic)
			}
		}
	}

	return !h.hasUserLocked(client.UserID)
}

func (h *Hub) hasUserLocked(userID string) bool {
	for _, c := range h.clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) subscribeLocked(client *Client, topic string) {
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[string]*Client)
		h.topics[topic] = members
	}
	members[client.ID] = client
}

// Subscribe adds a connection to a topic room.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	h.subscribeLocked(client, topic)
}

// Unsubscribe removes a connection from a topic room.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(members, client.ID)
	if len(members) == 0 {
		delete(h.topics, topic)
	}
}

// Publish sends an event to every connection subscribed to topic. Delivery is
// best-effort per connection: a full send buffer drops the message for that
// connection only.
func (h *Hub) Publish(topic, event string, payload any) error {
	msg, err := json.Marshal(map[string]any{
		"type": event,
		"data": payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.topics[topic] {
		select {
		case client.send <- msg:
		default:
			h.log.Warn(logger.Entry{
				Action:  "publish_dropped",
				Message: topic,
				Additional: map[string]any{
					"event":     event,
					"client_id": client.ID,
					"user_id":   client.UserID,
				},
			})
		}
	}

	return nil
}

// SubscriberCount reports how many connections are in a topic room.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// IsUserConnected reports whether a user has at least one live connection.
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.hasUserLocked(userID)
}

// SendToUser sends an event to every live connection of one user, regardless
// of topic membership.
func (h *Hub) SendToUser(userID, event string, payload any) error {
	msg, err := json.Marshal(map[string]any{
		"type": event,
		"data": payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.send <- msg:
		default:
			h.log.Warn(logger.Entry{
				Action:  "send_to_user_dropped",
				Message: userID,
				Additional: map[string]any{
					"event":     event,
					"client_id": client.ID,
				},
			})
		}
	}

	return nil
}

// ServeWS upgrades an HTTP request into a hub-managed connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(logger.Entry{
			Action:  "ws_upgrade_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		log:  h.log,
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))

	var authMsg struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&authMsg); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "auth timeout"))
		_ = conn.Close()
		h.log.Warn(logger.Entry{
			Action:  "ws_auth_failed",
			Message: "no auth message received",
		})
		return
	}

	userID, role, err := h.authFunc(authMsg.Token)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.Close()
		h.log.Warn(logger.Entry{
			Action:  "ws_auth_invalid_token",
			Message: err.Error(),
		})
		return
	}

	client.UserID = userID
	client.Role = role

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	h.register <- client

	_ = conn.WriteJSON(map[string]string{"status": "authenticated", "user_id": userID})

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error(logger.Entry{
					Action:  "ws_read_error",
					Message: c.ID,
					Error:   &logger.ErrObj{Msg: err.Error()},
				})
			}
			break
		}

		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data,omitempty"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Warn(logger.Entry{
				Action:  "ws_parse_message_error",
				Message: err.Error(),
				Additional: map[string]any{
					"client_id": c.ID,
					"raw":       string(message),
				},
			})
			continue
		}

		if c.hub.messageHandler != nil {
			if err := c.hub.messageHandler(c, msg.Type, msg.Data); err != nil {
				c.log.Error(logger.Entry{
					Action:  "ws_handle_message_error",
					Message: err.Error(),
					Error:   &logger.ErrObj{Msg: err.Error()},
					Additional: map[string]any{
						"client_id": c.ID,
						"msg_type":  msg.Type,
					},
				})
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues a typed event on this single connection.
func (c *Client) Send(event string, payload any) error {
	msg, err := json.Marshal(map[string]any{
		"type": event,
		"data": payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("send buffer full for client %s", c.ID)
	}
}
