package chathub

import "pulsechat/backend/internal/models"

// Client is the interface for one live connection. It abstracts the
// transport so the hub can manage connection types uniformly.
type Client interface {
	// GetUserID returns the authenticated user identity bound to the client.
	GetUserID() string
	// GetConnectionID returns the opaque per-connection handle, valid only
	// while the connection is live.
	GetConnectionID() string

	// GetSendChannel returns the channel the hub writes outbound events to.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the client down and releases its send channel.
	Close()
}
