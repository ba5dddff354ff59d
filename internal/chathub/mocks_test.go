package chathub_test

import (
	"encoding/json"
	"sync"
	"time"

	"pulsechat/backend/internal/call"
	"pulsechat/backend/internal/chat"
	"pulsechat/backend/internal/chathub"
	"pulsechat/backend/internal/models"
	"pulsechat/backend/internal/presence"
	"pulsechat/backend/internal/ratelimit"
	"pulsechat/backend/internal/storage/storagetest"
)

// mockClient is a test double for the chathub.Client interface.
type mockClient struct {
	userID string
	connID string
	send   chan models.Event

	mu     sync.Mutex
	closed bool
}

func newMockClient(userID, connID string) *mockClient {
	return &mockClient{
		userID: userID,
		connID: connID,
		send:   make(chan models.Event, 32), // Buffered to prevent blocking in tests
	}
}

func (c *mockClient) GetUserID() string                   { return c.userID }
func (c *mockClient) GetConnectionID() string             { return c.connID }
func (c *mockClient) GetSendChannel() chan<- models.Event { return c.send }
func (c *mockClient) Run()                                {}

func (c *mockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *mockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain collects everything currently queued on the send channel.
func (c *mockClient) drain() []models.Event {
	var events []models.Event
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func (c *mockClient) received(name string) []models.Event {
	var out []models.Event
	for _, ev := range c.drain() {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

// newTestHub wires a hub with real services over in-memory storage.
func newTestHub() (*chathub.Hub, *storagetest.MemStorage, *presence.Registry) {
	store := storagetest.New()
	reg := presence.NewRegistry()
	hub := chathub.NewHub(store, reg)

	limiter := ratelimit.NewLimiter(100, time.Minute)
	pipeline := chat.NewService(store, reg, limiter, hub, 24*time.Hour)
	engine := call.NewEngine(store, reg, hub, 30*time.Second)
	hub.SetServices(pipeline, engine)

	return hub, store, reg
}

func mustEvent(name string, payload any) models.Event {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return models.Event{Event: name, Data: data}
}
