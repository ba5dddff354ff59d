package chathub

import (
	"encoding/json"
	"log"

	"pulsechat/backend/internal/models"
	apperrors "pulsechat/backend/pkg/errors"
)

// HandleEvent routes one inbound event from a client's read pump. Action
// errors are reported back to the originating connection only; they never
// crash the connection or leak to other users.
func (h *Hub) HandleEvent(c Client, ev models.Event) {
	userID := c.GetUserID()

	switch ev.Event {
	case models.EvMessageSend:
		var p models.MessageSendPayload
		if !h.decode(c, ev, &p) {
			return
		}
		if _, err := h.pipeline.Send(userID, p.ConversationID, p.Content); err != nil {
			h.sendError(c, err)
		}

	case models.EvMessageRead:
		var p models.MessageReadPayload
		if !h.decode(c, ev, &p) {
			return
		}
		if _, err := h.pipeline.MarkRead(userID, p.ConversationID, p.MessageIDs); err != nil {
			h.sendError(c, err)
		}

	case models.EvTypingStart, models.EvTypingStop:
		var p models.ConversationPayload
		if !h.decode(c, ev, &p) {
			return
		}
		h.broadcastTyping(c, p.ConversationID, ev.Event == models.EvTypingStart)

	case models.EvConversationOpen:
		var p models.ConversationPayload
		if !h.decode(c, ev, &p) {
			return
		}
		h.Registry.TrackOpenConversation(userID, p.ConversationID)
		if _, err := h.pipeline.DeliverOfflineBacklog(userID, p.ConversationID); err != nil {
			h.sendError(c, err)
		}

	case models.EvConversationClose:
		var p models.ConversationPayload
		if !h.decode(c, ev, &p) {
			return
		}
		h.Registry.UntrackOpenConversation(userID, p.ConversationID)

	case models.EvCallInitiate:
		var p models.CallInitiatePayload
		if !h.decode(c, ev, &p) {
			return
		}
		if _, err := h.engine.Initiate(userID, p.RecipientID, p.CallType); err != nil {
			h.sendCallError(c, "", err)
		}

	case models.EvCallAccept:
		var p models.CallAcceptPayload
		if !h.decode(c, ev, &p) {
			return
		}
		if err := h.engine.Accept(userID, p.CallID, p.Answer); err != nil {
			h.sendCallError(c, p.CallID, err)
		}

	case models.EvCallDecline:
		var p models.CallIDPayload
		if !h.decode(c, ev, &p) {
			return
		}
		if err := h.engine.Decline(userID, p.CallID); err != nil {
			h.sendCallError(c, p.CallID, err)
		}

	case models.EvCallEnd:
		var p models.CallIDPayload
		if !h.decode(c, ev, &p) {
			return
		}
		if err := h.engine.End(userID, p.CallID); err != nil {
			h.sendCallError(c, p.CallID, err)
		}

	case models.EvWebRTCOffer:
		var p models.WebRTCOfferPayload
		if !h.decode(c, ev, &p) {
			return
		}
		if err := h.engine.RelayOffer(userID, p.CallID, p.Offer); err != nil {
			h.sendCallError(c, p.CallID, err)
		}

	case models.EvWebRTCAnswer:
		var p models.WebRTCAnswerPayload
		if !h.decode(c, ev, &p) {
			return
		}
		if err := h.engine.RelayAnswer(userID, p.CallID, p.Answer); err != nil {
			h.sendCallError(c, p.CallID, err)
		}

	case models.EvWebRTCICE:
		var p models.ICECandidatePayload
		if !h.decode(c, ev, &p) {
			return
		}
		if err := h.engine.RelayICECandidate(userID, p.CallID, p.Candidate); err != nil {
			h.sendCallError(c, p.CallID, err)
		}

	default:
		log.Printf("Unknown event %q from client %s", ev.Event, userID)
		h.sendError(c, apperrors.InvalidArg("unknown event: "+ev.Event))
	}
}

// broadcastTyping forwards a typing indicator to the other participant if
// they currently have the conversation open.
func (h *Hub) broadcastTyping(c Client, conversationID string, isTyping bool) {
	userID := c.GetUserID()
	conv, err := h.Storage.GetConversationByID(conversationID)
	if err != nil {
		h.sendError(c, err)
		return
	}
	if !conv.HasParticipant(userID) {
		h.sendError(c, apperrors.ErrNotParticipant)
		return
	}

	other := conv.OtherParticipant(userID)
	if h.Registry.HasOpenConversation(other, conversationID) {
		h.Push(other, models.NewEvent(models.EvTypingUpdate, models.TypingUpdatePayload{
			ConversationID: conversationID,
			UserID:         userID,
			IsTyping:       isTyping,
		}))
	}
}

func (h *Hub) decode(c Client, ev models.Event, dst any) bool {
	if err := json.Unmarshal(ev.Data, dst); err != nil {
		log.Printf("Error decoding %s payload from client %s: %v", ev.Event, c.GetUserID(), err)
		h.sendError(c, apperrors.InvalidArg("malformed "+ev.Event+" payload"))
		return false
	}
	return true
}

func (h *Hub) sendError(c Client, err error) {
	h.pushLocal(c.GetUserID(), models.NewEvent(models.EvError, models.ErrorPayload{
		Message: err.Error(),
		Code:    string(apperrors.CodeOf(err)),
	}))
}

func (h *Hub) sendCallError(c Client, callID string, err error) {
	h.pushLocal(c.GetUserID(), models.NewEvent(models.EvCallError, models.CallErrorPayload{
		CallID:  callID,
		Message: err.Error(),
		Code:    string(apperrors.CodeOf(err)),
	}))
}
