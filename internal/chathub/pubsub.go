package chathub

import (
	"encoding/json"
	"log"

	"pulsechat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RunPubSubListener consumes the Redis bridge channel and delivers events
// targeted at users whose sockets this instance owns. Delivery here is
// strictly local; republishing would loop.
func (h *Hub) RunPubSubListener(pubsub *redis.PubSub) {
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var remote models.RemoteEvent
		if err := json.Unmarshal([]byte(msg.Payload), &remote); err != nil {
			log.Printf("Error unmarshalling bridged event: %v", err)
			continue
		}
		h.pushLocal(remote.UserID, remote.Event)
	}
}
