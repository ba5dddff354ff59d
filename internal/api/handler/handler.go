package handler

import (
	"pulsechat/backend/internal/chat"
	"pulsechat/backend/internal/chathub"
	"pulsechat/backend/internal/storage"
)

// Handler bundles the HTTP-facing dependencies.
type Handler struct {
	Hub       *chathub.Hub
	Pipeline  *chat.Service
	Storage   storage.Storage
	JWTSecret []byte
}

func NewHandler(hub *chathub.Hub, pipeline *chat.Service, s storage.Storage, jwtSecret []byte) *Handler {
	return &Handler{
		Hub:       hub,
		Pipeline:  pipeline,
		Storage:   s,
		JWTSecret: jwtSecret,
	}
}
