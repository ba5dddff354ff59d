package models

import (
	"encoding/json"
	"time"
)

// Event is the wire envelope for the bidirectional websocket channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into an Event envelope. Marshal failures are
// programming errors (all payloads are plain structs), so they panic.
func NewEvent(name string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		panic("realtime: unmarshalable payload for " + name)
	}
	return Event{Event: name, Data: data}
}

// RemoteEvent wraps an event with its target user for the cross-instance
// Redis bridge.
type RemoteEvent struct {
	UserID string `json:"userId"`
	Event  Event  `json:"event"`
}

// Client -> server event names.
const (
	EvMessageSend       = "message:send"
	EvMessageRead       = "message:read"
	EvTypingStart       = "typing:start"
	EvTypingStop        = "typing:stop"
	EvConversationOpen  = "conversation:open"
	EvConversationClose = "conversation:close"
	EvCallInitiate      = "call:initiate"
	EvCallAccept        = "call:accept"
	EvCallDecline       = "call:decline"
	EvCallEnd           = "call:end"
	EvWebRTCOffer       = "webrtc:offer"
	EvWebRTCAnswer      = "webrtc:answer"
	EvWebRTCICE         = "webrtc:ice-candidate"
)

// Server -> client event names.
const (
	EvAuthenticated  = "authenticated"
	EvError          = "error"
	EvMessageNew     = "message:new"
	EvMessageStatus  = "message:status"
	EvTypingUpdate   = "typing:update"
	EvPresenceUpdate = "presence:update"
	EvCallInitiated  = "call:initiated"
	EvCallRinging    = "call:ringing"
	EvCallAccepted   = "call:accepted"
	EvCallDeclined   = "call:declined"
	EvCallEnded      = "call:ended"
	EvCallError      = "call:error"
)

// Inbound payloads.

type MessageSendPayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

type MessageReadPayload struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds,omitempty"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type CallInitiatePayload struct {
	RecipientID string   `json:"recipientId"`
	CallType    CallType `json:"callType"`
}

type CallAcceptPayload struct {
	CallID string          `json:"callId"`
	Answer json.RawMessage `json:"answer"`
}

type CallIDPayload struct {
	CallID string `json:"callId"`
}

type WebRTCOfferPayload struct {
	CallID      string          `json:"callId"`
	RecipientID string          `json:"recipientId"`
	Offer       json.RawMessage `json:"offer"`
}

type WebRTCAnswerPayload struct {
	CallID   string          `json:"callId"`
	CallerID string          `json:"callerId"`
	Answer   json.RawMessage `json:"answer"`
}

type ICECandidatePayload struct {
	CallID      string          `json:"callId"`
	RecipientID string          `json:"recipientId"`
	Candidate   json.RawMessage `json:"candidate"`
}

// Outbound payloads.

type AuthenticatedPayload struct {
	UserID string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type MessageNewPayload struct {
	Message      *Message      `json:"message"`
	Conversation *Conversation `json:"conversation"`
}

type MessageStatusPayload struct {
	MessageID string        `json:"messageId"`
	Status    MessageStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

type TypingUpdatePayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type PresenceUpdatePayload struct {
	UserID     string    `json:"userId"`
	IsOnline   bool      `json:"isOnline"`
	LastOnline time.Time `json:"lastOnline"`
}

type CallInitiatedPayload struct {
	CallID      string   `json:"callId"`
	RecipientID string   `json:"recipientId"`
	CallType    CallType `json:"callType"`
}

type CallRingingPayload struct {
	CallID   string   `json:"callId"`
	CallerID string   `json:"caller"`
	CallType CallType `json:"callType"`
}

type CallAcceptedPayload struct {
	CallID   string          `json:"callId"`
	CallerID string          `json:"callerId,omitempty"`
	Answer   json.RawMessage `json:"answer,omitempty"`
}

type CallEndedPayload struct {
	CallID  string `json:"callId"`
	EndedBy string `json:"endedBy,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type CallErrorPayload struct {
	CallID  string `json:"callId,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
