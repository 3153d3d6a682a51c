package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/trungle-dev/relaychat/internal/model"
)

const redisChannel = "relaychat:events"

// Hub manages WebSocket connections for the realtime notification stream.
// It uses Redis Pub/Sub so any instance can deliver an event to a user
// connected elsewhere.
type Hub struct {
	// Map of userID -> set of client connections (one user can have multiple tabs/devices)
	clients map[uuid.UUID]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	rdb *redis.Client
}

// NewHub creates a new WebSocket Hub
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
	}
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	go h.subscribeRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true
	log.Printf("✅ Stream client connected: %s (connections: %d)", client.UserID, len(h.clients[client.UserID]))
}

// removeClient is the single place a client leaves the hub and its send
// channel gets closed. An evicted client unregisters again when its
// ReadPump exits, so removal must tolerate repeats.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.UserID)
	}
	client.closeSend()
	log.Printf("❌ Stream client disconnected: %s", client.UserID)
}

// SendToUser sends an event to a specific user (all their connections, on
// any instance)
func (h *Hub) SendToUser(userID uuid.UUID, event *model.WSEvent) {
	h.publishToRedis(&TargetedEvent{
		TargetUserID: userID,
		Event:        event,
	})
}

// SendToUsers sends an event to multiple users
func (h *Hub) SendToUsers(userIDs []uuid.UUID, event *model.WSEvent) {
	for _, userID := range userIDs {
		h.SendToUser(userID, event)
	}
}

// sendToLocalUser delivers to a user's connections on this instance only.
// Clients whose send buffer is full are evicted, but never mutated here:
// removeClient owns the map and the channel close.
func (h *Hub) sendToLocalUser(userID uuid.UUID, event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		log.Printf("⚠️ Evicting slow stream client: %s", userID)
		h.removeClient(client)
	}
}

// IsUserConnected checks if a user has any active connections on this instance
func (h *Hub) IsUserConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ========== Redis Pub/Sub for Horizontal Scaling ==========

// TargetedEvent wraps an event with its target user for Redis Pub/Sub
type TargetedEvent struct {
	TargetUserID uuid.UUID      `json:"target_user_id"`
	Event        *model.WSEvent `json:"event"`
}

func (h *Hub) publishToRedis(data *TargetedEvent) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling for Redis: %v", err)
		return
	}
	if err := h.rdb.Publish(context.Background(), redisChannel, jsonData).Err(); err != nil {
		log.Printf("Error publishing to Redis: %v", err)
	}
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.Println("📡 Redis Pub/Sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			var targeted TargetedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &targeted); err != nil {
				log.Printf("Error unmarshaling Redis message: %v", err)
				continue
			}
			if targeted.TargetUserID != uuid.Nil && targeted.Event != nil {
				h.sendToLocalUser(targeted.TargetUserID, targeted.Event)
			}
		}
	}
}
