package chat

import (
	"log"
	"time"
	"unicode/utf8"

	"pulsechat/backend/internal/models"
	"pulsechat/backend/internal/presence"
	"pulsechat/backend/internal/ratelimit"
	"pulsechat/backend/internal/storage"
	apperrors "pulsechat/backend/pkg/errors"
)

// Pusher delivers a server event to a user's live connection. Implemented by
// the connection gateway; delivery to offline users is a no-op there.
type Pusher interface {
	Push(userID string, event models.Event)
}

// Service is the message delivery pipeline: validation, persistence, status
// progression and fan-out.
type Service struct {
	storage   storage.Storage
	registry  *presence.Registry
	limiter   *ratelimit.Limiter
	pusher    Pusher
	retention time.Duration
}

func NewService(s storage.Storage, reg *presence.Registry, lim *ratelimit.Limiter, p Pusher, retention time.Duration) *Service {
	return &Service{
		storage:   s,
		registry:  reg,
		limiter:   lim,
		pusher:    p,
		retention: retention,
	}
}

// Send validates, persists and fans out a chat message. If the recipient is
// online the message is upgraded to delivered before either party sees it.
func (s *Service) Send(senderID, conversationID, content string) (*models.Message, error) {
	conv, err := s.storage.GetConversationByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, apperrors.ErrNotParticipant
	}
	// Limits are character counts, not bytes.
	if n := utf8.RuneCountInString(content); n < models.MinContentLen || n > models.MaxContentLen {
		return nil, apperrors.ErrEmptyContent
	}
	if !s.limiter.Allow(senderID) {
		return nil, apperrors.ErrRateLimited
	}

	now := time.Now()
	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Status:         models.MessageSent,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.retention),
	}
	if err := s.storage.CreateMessage(msg); err != nil {
		return nil, err
	}
	if err := s.storage.RecordLastMessage(conv, msg); err != nil {
		return nil, err
	}

	recipient := conv.OtherParticipant(senderID)
	if s.registry.IsOnline(recipient) {
		deliveredAt := time.Now()
		ok, err := s.storage.AdvanceMessageStatus(msg.ID, models.MessageDelivered, deliveredAt)
		if err != nil {
			return nil, err
		}
		if ok {
			msg.Status = models.MessageDelivered
			msg.DeliveredAt = &deliveredAt
		}
	}

	payload := models.MessageNewPayload{Message: msg, Conversation: conv}
	s.pusher.Push(recipient, models.NewEvent(models.EvMessageNew, payload))
	s.pusher.Push(senderID, models.NewEvent(models.EvMessageNew, payload))
	return msg, nil
}

// MarkRead batch-transitions unseen messages addressed to readerID to seen,
// resets the reader's unread counter and notifies each original sender.
// Returns the number of messages transitioned; zero qualifying messages is a
// no-op, not an error.
func (s *Service) MarkRead(readerID, conversationID string, messageIDs []string) (int, error) {
	conv, err := s.storage.GetConversationByID(conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(readerID) {
		return 0, apperrors.ErrNotParticipant
	}

	msgs, err := s.storage.ListUnseenMessages(conversationID, readerID, messageIDs)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	now := time.Now()
	count := 0
	for _, msg := range msgs {
		ok, err := s.storage.AdvanceMessageStatus(msg.ID, models.MessageSeen, now)
		if err != nil {
			return count, err
		}
		if !ok {
			continue
		}
		count++
		if s.registry.IsOnline(msg.SenderID) {
			s.pusher.Push(msg.SenderID, models.NewEvent(models.EvMessageStatus, models.MessageStatusPayload{
				MessageID: msg.ID,
				Status:    models.MessageSeen,
				Timestamp: now,
			}))
		}
	}

	if count > 0 {
		if err := s.storage.ResetUnread(conversationID, readerID); err != nil {
			return count, err
		}
	}
	return count, nil
}

// DeliverOfflineBacklog reconciles messages composed while userID was
// offline. Invoked when the user opens a conversation view: every message
// still in status=sent is bulk-upgraded to delivered, pushed to the user and
// its sender is notified.
func (s *Service) DeliverOfflineBacklog(userID, conversationID string) (int, error) {
	conv, err := s.storage.GetConversationByID(conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(userID) {
		return 0, apperrors.ErrNotParticipant
	}

	msgs, err := s.storage.ListUndeliveredMessages(conversationID, userID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	delivered := 0
	for _, msg := range msgs {
		ok, err := s.storage.AdvanceMessageStatus(msg.ID, models.MessageDelivered, now)
		if err != nil {
			return delivered, err
		}
		if !ok {
			// Raced with another delivery path; already past sent.
			continue
		}
		delivered++
		msg.Status = models.MessageDelivered
		msg.DeliveredAt = &now

		s.pusher.Push(userID, models.NewEvent(models.EvMessageNew, models.MessageNewPayload{
			Message:      &msg,
			Conversation: conv,
		}))
		if s.registry.IsOnline(msg.SenderID) {
			s.pusher.Push(msg.SenderID, models.NewEvent(models.EvMessageStatus, models.MessageStatusPayload{
				MessageID: msg.ID,
				Status:    models.MessageDelivered,
				Timestamp: now,
			}))
		}
	}
	if delivered > 0 {
		log.Printf("Delivered offline backlog of %d messages to %s in conversation %s", delivered, userID, conversationID)
	}
	return delivered, nil
}

// TickDisplay maps a message status to its UI tick indicator. The recipient
// online flag is accepted for API symmetry with callers but the status alone
// determines the tick.
func TickDisplay(status models.MessageStatus, isRecipientOnline bool) string {
	switch status {
	case models.MessageDelivered:
		return "double"
	case models.MessageSeen:
		return "blue"
	default:
		return "single"
	}
}
