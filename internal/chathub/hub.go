package chathub

import (
	"log"
	"sync"
	"time"

	"pulsechat/backend/internal/call"
	"pulsechat/backend/internal/chat"
	"pulsechat/backend/internal/models"
	"pulsechat/backend/internal/presence"
	"pulsechat/backend/internal/storage"
)

// Hub is the connection gateway: it binds authenticated connections into the
// presence registry, fans inbound events out to the chat pipeline and call
// engine, and owns the outbound push primitive.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client

	Registry *presence.Registry
	Storage  storage.Storage

	pipeline *chat.Service
	engine   *call.Engine
}

func NewHub(s storage.Storage, reg *presence.Registry) *Hub {
	return &Hub{
		clients:  make(map[string]Client),
		Registry: reg,
		Storage:  s,
	}
}

// SetServices wires the chat pipeline and call engine after construction;
// both take the hub as their Pusher, so they cannot exist before it.
func (h *Hub) SetServices(pipeline *chat.Service, engine *call.Engine) {
	h.pipeline = pipeline
	h.engine = engine
}

// Register binds a freshly authenticated client. A second connection for the
// same user replaces the first; the presence entry keeps its open
// conversation set across the swap.
func (h *Hub) Register(client Client) {
	userID := client.GetUserID()

	h.mu.Lock()
	if old, ok := h.clients[userID]; ok && old != client {
		old.Close()
	}
	h.clients[userID] = client
	h.mu.Unlock()

	h.Registry.SetOnline(userID, client.GetConnectionID())
	if err := h.Storage.MirrorPresence(userID, true, time.Now()); err != nil {
		log.Printf("ERROR: Failed to mirror presence for %s: %v", userID, err)
	}

	h.Push(userID, models.NewEvent(models.EvAuthenticated, models.AuthenticatedPayload{UserID: userID}))
	h.broadcastPresence(userID, true, time.Time{})
	log.Printf("Client registered: %s (conn %s)", userID, client.GetConnectionID())
}

// Unregister tears down a dead connection. Both the presence transition and
// the call-engine disconnect hook run here; skipping either leaves stale
// state (a busy flag with no owner, or presence claiming online).
func (h *Hub) Unregister(client Client) {
	userID := client.GetUserID()

	h.mu.Lock()
	current, ok := h.clients[userID]
	if !ok || current != client {
		// Already replaced by a newer connection; nothing to transition.
		h.mu.Unlock()
		return
	}
	delete(h.clients, userID)
	h.mu.Unlock()

	lastOnline, existed := h.Registry.SetOffline(userID)
	if existed {
		if err := h.Storage.UpdateUserLastOnline(userID, lastOnline); err != nil {
			log.Printf("ERROR: Failed to flush last online for %s: %v", userID, err)
		}
		if err := h.Storage.MirrorPresence(userID, false, lastOnline); err != nil {
			log.Printf("ERROR: Failed to mirror presence for %s: %v", userID, err)
		}
	}

	h.engine.HandleDisconnect(userID)
	h.broadcastPresence(userID, false, lastOnline)
	log.Printf("Client unregistered: %s", userID)
}

// Push delivers an event to a user. Locally connected users get it on their
// send channel; everyone else goes over the Redis bridge in case a sibling
// instance owns their socket.
func (h *Hub) Push(userID string, event models.Event) {
	if h.pushLocal(userID, event) {
		return
	}
	if err := h.Storage.PublishEvent(userID, event); err != nil {
		log.Printf("ERROR: Failed to bridge event %s for %s: %v", event.Event, userID, err)
	}
}

// pushLocal delivers to a locally connected client only. Used by the pub/sub
// listener, which must never republish. The read lock is held across the send
// so a concurrent Register cannot close the channel mid-send.
func (h *Hub) pushLocal(userID string, event models.Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[userID]
	if !ok {
		return false
	}

	select {
	case client.GetSendChannel() <- event:
	default:
		// Slow client; drop rather than block the caller.
		log.Printf("WARNING: Dropping event %s for slow client %s", event.Event, userID)
	}
	return true
}

// broadcastPresence tells connected clients that share an open conversation
// with the user about a presence change. Presence never fans out wider than
// that audience.
func (h *Hub) broadcastPresence(userID string, isOnline bool, lastOnline time.Time) {
	event := models.NewEvent(models.EvPresenceUpdate, models.PresenceUpdatePayload{
		UserID:     userID,
		IsOnline:   isOnline,
		LastOnline: lastOnline,
	})

	h.mu.RLock()
	defer h.mu.RUnlock()
	for uid, client := range h.clients {
		if uid == userID || !h.Registry.SharesOpenConversation(userID, uid) {
			continue
		}
		select {
		case client.GetSendChannel() <- event:
		default:
		}
	}
}
